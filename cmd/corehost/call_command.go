package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/lydakis/corehost/internal/ipc"
	"github.com/lydakis/corehost/internal/pkg/json"
	"github.com/spf13/cobra"
)

func newCallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <service> <method> [message-json|-]",
		Short: "Send one request to the core through the daemon",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := parseMessage(args[2:], cmd.InOrStdin())
			if err != nil {
				return err
			}

			client, err := connectFn()
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := roundTrip(client, &ipc.Request{Service: args[0], Method: args[1], Message: msg})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newSubscribeCommand() *cobra.Command {
	var maxMessages int

	cmd := &cobra.Command{
		Use:   "subscribe <service> <method> [message-json|-]",
		Short: "Open a subscription and print each pushed item as a JSON line",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := parseMessage(args[2:], cmd.InOrStdin())
			if err != nil {
				return err
			}

			client, err := connectFn()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			stopClose := context.AfterFunc(ctx, func() { _ = client.Close() })
			defer stopClose()

			return streamItems(ctx, client, &ipc.Request{
				Service:     args[0],
				Method:      args[1],
				Message:     msg,
				Streaming:   true,
				MaxMessages: maxMessages,
			}, maxMessages, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVarP(&maxMessages, "max", "n", 0, "Stop after this many items (0 = until interrupted)")
	return cmd
}

// streamItems subscribes with req and writes every item for it to out.
// Items may arrive before the acknowledgement.
func streamItems(ctx context.Context, client *ipc.Client, req *ipc.Request, max int, out, status io.Writer) error {
	enc := json.NewEncoder(out)
	count := 0
	var writeErr error
	item := func(f *ipc.Frame) {
		if !f.IsStreaming || f.RequestID != req.RequestID || (max > 0 && count >= max) {
			return
		}
		count++
		if err := enc.Encode(f.Message); err != nil && writeErr == nil {
			writeErr = err
		}
	}

	ack, err := client.Call(req, item)
	if err != nil {
		return err
	}
	if err := ack.Err(); err != nil {
		return err
	}
	if id := subscriptionID(ack.Message); id != "" {
		fmt.Fprintf(status, "subscribed %s\n", id)
	}

	for writeErr == nil && (max == 0 || count < max) {
		f, err := client.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		item(f)
	}
	return writeErr
}

func subscriptionID(msg any) string {
	m, ok := msg.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["subscription_id"].(string)
	return id
}

// parseMessage decodes the optional message argument. "-" reads stdin.
func parseMessage(args []string, stdin io.Reader) (any, error) {
	if len(args) == 0 || args[0] == "" {
		return map[string]any{}, nil
	}
	raw := []byte(args[0])
	if args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading message from stdin: %w", err)
		}
		raw = b
	}
	var msg any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("message is not valid JSON: %w", err)
	}
	return msg, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
