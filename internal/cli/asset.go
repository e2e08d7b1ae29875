package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewAssetCmd создаёт группу команд для управления product assets.
func NewAssetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage product assets",
	}

	cmd.AddCommand(
		newAssetImportCmd(clientFn, outputFn),
		newAssetShowCmd(clientFn, outputFn),
		newAssetPrepareCmd(clientFn, outputFn),
	)

	return cmd
}

func newAssetImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tenantID string
	var sourceKey string
	var cardFile string

	cmd := &cobra.Command{
		Use:   "import PRODUCT_ID",
		Short: "Import a product and queue its preparation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			card := json.RawMessage(`{}`)
			if cardFile != "" {
				data, err := os.ReadFile(cardFile)
				if err != nil {
					return fmt.Errorf("read card file: %w", err)
				}
				card = data
			}

			asset, err := client.CreateAsset(CreateAssetRequest{
				TenantID:       tenantID,
				ProductID:      args[0],
				SourceImageKey: sourceKey,
				Card:           card,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Asset created: %s", asset.ID))
			printAsset(out, asset)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant-id", "", "Tenant UUID (required)")
	cmd.Flags().StringVar(&sourceKey, "source-key", "", "Object storage key of the product image (required)")
	cmd.Flags().StringVar(&cardFile, "card", "", "Path to a JSON file with the product card")
	cmd.MarkFlagRequired("tenant-id")
	cmd.MarkFlagRequired("source-key")

	return cmd
}

func newAssetShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show asset preparation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			asset, err := client.GetAsset(args[0])
			if err != nil {
				return err
			}

			printAsset(out, asset)
			return nil
		},
	}
}

func newAssetPrepareCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare ID",
		Short: "Re-run preparation for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			asset, err := client.PrepareAsset(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Preparation queued for asset %s", asset.ID))
			printAsset(out, asset)
			return nil
		},
	}
}

func printAsset(out *Output, asset *AssetResponse) {
	out.Print(
		[]string{"ID", "PRODUCT_ID", "STATUS", "RETRIES", "ERROR", "UPDATED"},
		[][]string{{asset.ID, asset.ProductID, asset.Status, strconv.Itoa(asset.RetryCount), asset.Error, asset.UpdatedAt}},
		asset,
	)
}
