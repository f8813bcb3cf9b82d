package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/spf13/cobra"
)

var envLookup = os.Getenv

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the profile configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(session.ConfigPath(opts.profile))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, environment overrides applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(session.ConfigPath(opts.profile))
			if err != nil {
				return err
			}
			cfg.ApplyEnv(envLookup)
			if cfg.Auth.Token != "" {
				cfg.Auth.Token = maskToken(cfg.Auth.Token)
			}
			if opts.json {
				outputJSON(cfg)
				return nil
			}
			return toml.NewEncoder(os.Stdout).Encode(cfg)
		},
	})

	var token, apiURL string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file for the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := session.ConfigPath(opts.profile)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg := config.Default()
			cfg.Auth.Token = token
			if apiURL != "" {
				cfg.Server.APIBaseURL = apiURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&token, "token", "", "bearer token for the chat server")
	initCmd.Flags().StringVar(&apiURL, "api-url", "", "REST base URL")
	cmd.AddCommand(initCmd)

	return cmd
}

func maskToken(tok string) string {
	if len(tok) <= 12 {
		return "****"
	}
	return tok[:6] + "..." + tok[len(tok)-4:]
}
