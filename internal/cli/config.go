package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/config"
)

// NewShowConfigCmd создаёт команду вывода конфигурации сервера.
// Конфигурация читается из окружения, как при старте conveyor-worker.
func NewShowConfigCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Print the effective server configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}

			out.Raw(data)
			return nil
		},
	}
}
