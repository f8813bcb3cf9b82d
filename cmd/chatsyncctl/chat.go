package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/engine"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/spf13/cobra"
)

func newConversationsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, eng *engine.Engine) error {
				convs, err := eng.FetchConversations(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					outputJSON(convs)
					return nil
				}
				if len(convs) == 0 {
					fmt.Println("No conversations.")
					return nil
				}
				for _, c := range convs {
					last := ""
					if c.LastMessage != nil {
						last = preview(c.LastMessage.Content)
					}
					fmt.Printf("%-24s %-20s %3d  %s\n", c.Peer.ID, c.Peer.Username, c.UnreadCount, last)
				}
				return nil
			})
		},
	}
}

func newMessagesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "open <peer-id>",
		Aliases: []string{"messages"},
		Short:   "Open a conversation and print its history; unread messages are acknowledged",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, eng *engine.Engine) error {
				msgs, err := eng.OpenConversation(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.json {
					outputJSON(msgs)
					return nil
				}
				for _, m := range msgs {
					printMessage(m, args[0])
				}
				return nil
			})
		},
	}
}

func newSendCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer-id> <text...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, eng *engine.Engine) error {
				msg, err := eng.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if opts.json {
					outputJSON(msg)
					return nil
				}
				fmt.Printf("Sent %s\n", msg.ID)
				return nil
			})
		},
	}
}

func newReadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <message-id>...",
		Short: "Acknowledge messages as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, eng *engine.Engine) error {
				for _, id := range args {
					eng.MarkRead(ctx, id)
				}
				// Receipts are best-effort; only a rejected credential is reported.
				if ce := eng.Error(); ce != nil {
					return ce
				}
				return nil
			})
		},
	}
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect the push channel and print state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.timeout = duration
			return withEngine(cmd, opts, func(ctx context.Context, eng *engine.Engine) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				events, unsub := eng.Bus().Subscribe("", 256)
				defer unsub()

				if _, err := eng.FetchConversations(ctx); err != nil {
					return err
				}
				eng.Connect(ctx)

				for {
					select {
					case <-ctx.Done():
						return nil
					case evt := <-events:
						printEvent(opts, evt)
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func printEvent(opts *rootOptions, evt bus.Event) {
	if opts.json {
		outputJSON(map[string]any{"kind": evt.Kind, "ts": evt.Timestamp, "payload": evt.Payload})
		return
	}
	fmt.Printf("%s %-26s %v\n", evt.Timestamp.Format(time.TimeOnly), evt.Kind, evt.Payload)
}

func printMessage(m model.Message, peerID string) {
	who := "me"
	if m.SenderID == peerID {
		who = peerID
	}
	mark := " "
	if !m.Read {
		mark = "*"
	}
	fmt.Printf("%s %s %-20s %s\n", m.Timestamp.Format(time.DateTime), mark, who, m.Content)
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return s
}
