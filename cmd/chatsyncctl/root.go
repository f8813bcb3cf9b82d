package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatsync/internal/daemon"
	"github.com/matheus3301/chatsync/internal/engine"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

type rootOptions struct {
	profile string
	json    bool
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "chatsyncctl",
		Short:         "Inspect and drive a chatsync profile",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.profile = session.Resolve(opts.profile)
			return session.ValidateName(opts.profile)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile name (overrides "+session.EnvProfile+")")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall command timeout")

	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newConversationsCommand(opts))
	cmd.AddCommand(newMessagesCommand(opts))
	cmd.AddCommand(newSendCommand(opts))
	cmd.AddCommand(newReadCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

// withEngine builds an engine for the profile without taking the daemon lock,
// runs fn and waits for background receipts before returning.
func withEngine(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, eng *engine.Engine) error) error {
	var eng *engine.Engine
	app := fx.New(
		daemon.Providers(daemon.Params{Profile: opts.profile, SkipLock: true}),
		fx.Populate(&eng),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}
	defer eng.Close()

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	return fn(ctx, eng)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
