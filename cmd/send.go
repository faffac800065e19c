package cmd

import (
	"fmt"
	"io"
	"strings"

	"ragbridge/pkg/channel/artemis"

	"github.com/spf13/cobra"
)

var sendBody string

var sendCmd = &cobra.Command{
	Use:   "send <queue> [body]",
	Short: "Publish one message to a broker queue",
	Long:  "Sends a single message to the named broker queue. The body comes from --body, the remaining arguments, or stdin when it is \"-\".",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := resolveSendBody(sendBody, args[1:], cmd.InOrStdin())
		if err != nil {
			return err
		}

		rt, err := loadRuntime("send")
		if err != nil {
			return err
		}

		producer, err := artemis.NewOneShotProducer(rt.cfg.Broker, rt.log)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		queue := args[0]
		if err := producer.Send(ctx, queue, body); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", len(body), queue)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendBody, "body", "b", "", "message body")
}

func resolveSendBody(flag string, args []string, stdin io.Reader) (string, error) {
	if value := strings.TrimSpace(flag); value != "" {
		return value, nil
	}

	value := strings.TrimSpace(strings.Join(args, " "))
	if value != "-" {
		return value, nil
	}

	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read body from stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
