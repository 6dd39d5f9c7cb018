package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewQueuesCmd создаёт команду просмотра топологии очередей.
func NewQueuesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "Show the exchange, queues and message types",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			topology, err := client.ListQueues()
			if err != nil {
				return err
			}

			headers := []string{"QUEUE", "MESSAGE TYPES", "RETRY QUEUE"}
			rows := make([][]string, 0, len(topology.Queues)+1)
			for _, q := range topology.Queues {
				rows = append(rows, []string{q.Name, strings.Join(q.MessageTypes, ","), q.DelayQueue})
			}
			if topology.DeadLetter != "" {
				rows = append(rows, []string{topology.DeadLetter, "-", "-"})
			}

			if !out.jsonMode {
				out.Success("Exchange: " + topology.Exchange)
			}
			out.Print(headers, rows, topology)
			return nil
		},
	}
}
