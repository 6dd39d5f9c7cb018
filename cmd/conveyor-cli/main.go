// Conveyor CLI — публикация сообщений и просмотр очередей через HTTP API.
//
// Использование:
//
//	conveyor [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	publish      Опубликовать сообщение
//	log          Записать строку в журнал воркеров
//	logs         Последние строки журнала
//	queues       Топология очередей
//	show-config  Конфигурация сервера из окружения (YAML)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — asset platform work queue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("CONVEYOR_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPublishCmd(clientFn, outputFn),
		cli.NewLogCmd(clientFn, outputFn),
		cli.NewLogsCmd(clientFn, outputFn),
		cli.NewQueuesCmd(clientFn, outputFn),
		cli.NewShowConfigCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
