package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления batch-задачами.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage batch jobs",
	}

	cmd.AddCommand(
		newJobRequeueCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobRequeueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue ID",
		Short: "Return a finished job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.RequeueJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job requeued: %s", job.ID))
			out.Print(
				[]string{"ID", "KIND", "STATUS", "RETRIES", "UPDATED"},
				[][]string{{job.ID, job.Kind, job.Status, strconv.Itoa(job.RetryCount), job.UpdatedAt}},
				job,
			)
			return nil
		},
	}
}
