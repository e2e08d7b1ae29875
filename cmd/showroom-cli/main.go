// Showroom CLI — инструмент командной строки бэк-офиса:
// импорт товаров, контроль подготовки, инспекция render runs
// и управление batch-задачами через HTTP API.
//
// Использование:
//
//	showroom [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	asset  Управление product assets
//	run    Инспекция render runs
//	job    Управление batch-задачами
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Showroom/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "showroom",
		Short:         "Showroom CLI — product render back office",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewAssetCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
