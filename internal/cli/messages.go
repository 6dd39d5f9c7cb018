package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewPublishCmd создаёт команду публикации сообщения.
func NewPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var msgType, payload, queue string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message to its queue",
		Example: `  conveyor publish --type subdefCreation --payload '{"recordId":10,"databoxId":3}'
  conveyor publish --type webhook --payload @event.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			raw, err := readPayload(payload)
			if err != nil {
				return err
			}

			resp, err := client.Publish(PublishRequest{
				MessageType: msgType,
				Payload:     raw,
				Queue:       queue,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Message %s published to %s", resp.MessageType, resp.Queue))
			if out.jsonMode {
				out.JSON(resp)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&msgType, "type", "", "Message type (required)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "Payload JSON, or @file to read it from a file")
	cmd.Flags().StringVar(&queue, "queue", "", "Target queue (default: the queue of the message type)")
	cmd.MarkFlagRequired("type")

	return cmd
}

// NewLogCmd создаёт команду записи строки в журнал воркеров.
func NewLogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "log MESSAGE",
		Short: "Push a line to the worker log queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if _, err := client.PushLog(strings.Join(args, " ")); err != nil {
				return err
			}

			out.Success("Log line published")
			return nil
		},
	}
}

// NewLogsCmd создаёт команду просмотра журнала воркеров.
func NewLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent worker log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.ListLogs(limit)
			if err != nil {
				return err
			}

			headers := []string{"CREATED", "MESSAGE"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e.CreatedAt, e.Message}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of lines")

	return cmd
}

// readPayload возвращает JSON payload из строки или файла (@path).
func readPayload(s string) (json.RawMessage, error) {
	data := []byte(s)
	if strings.HasPrefix(s, "@") {
		var err error
		data, err = os.ReadFile(strings.TrimPrefix(s, "@"))
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.New("payload must be a JSON object")
	}
	return json.RawMessage(data), nil
}
