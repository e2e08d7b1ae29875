package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для инспекции render runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect render runs",
	}

	cmd.AddCommand(
		newRunShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details with variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"RUN_ID", "STATUS", "SUCCEEDED", "FAILED", "TIMED_OUT", "FINISHED"},
				[][]string{{
					run.RunID, run.Status,
					strconv.Itoa(run.Succeeded), strconv.Itoa(run.Failed), strconv.Itoa(run.TimedOut),
					run.FinishedAt,
				}},
				run,
			)

			// В JSON-режиме варианты уже внутри run.
			if len(run.Variants) > 0 && !out.IsJSON() {
				headers := []string{"VARIANT", "STATUS", "LATENCY_MS", "ERROR"}
				rows := make([][]string, len(run.Variants))
				for i, v := range run.Variants {
					rows[i] = []string{v.ID, v.Status, strconv.FormatInt(v.LatencyMS, 10), v.ErrorMessage}
				}
				out.Table(headers, rows)
			}
			return nil
		},
	}
}
