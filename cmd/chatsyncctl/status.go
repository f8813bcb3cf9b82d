package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/spf13/cobra"
)

type statusReport struct {
	Profile   string    `json:"profile"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	Since     time.Time `json:"since,omitzero"`
	APIURL    string    `json:"apiUrl"`
	PushURL   string    `json:"pushUrl"`
	UserID    string    `json:"userId,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon runs and which credentials the profile uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := buildStatus(opts.profile)
			if err != nil {
				return err
			}
			if opts.json {
				outputJSON(report)
				return nil
			}
			printStatus(report)
			return nil
		},
	}
}

func buildStatus(profile string) (statusReport, error) {
	report := statusReport{Profile: profile, Token: "none"}

	lk, err := lock.Acquire(session.LockPath(profile), profile)
	var held *lock.HeldError
	switch {
	case errors.As(err, &held):
		report.Running = true
		report.PID = held.Holder.PID
		report.Since = held.Holder.Since
	case err != nil:
		return report, err
	default:
		_ = lk.Release()
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath(profile))
	if err != nil {
		return report, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv(envLookup)
	report.APIURL = cfg.Server.APIBaseURL
	report.PushURL = cfg.ResolvedPushURL()

	if cfg.Auth.Token == "" {
		return report, nil
	}
	tokens, err := auth.NewTokenSession(cfg.Auth.Token)
	if err != nil {
		report.Token = "invalid (" + err.Error() + ")"
		return report, nil
	}
	report.UserID = tokens.CurrentUserID()
	report.ExpiresAt = tokens.ExpiresAt()
	if tokens.IsAuthenticated() {
		report.Token = "valid"
	} else {
		report.Token = "expired"
	}
	return report, nil
}

func printStatus(r statusReport) {
	fmt.Printf("Profile:  %s\n", r.Profile)
	if r.Running {
		fmt.Printf("Daemon:   running (pid %d since %s)\n", r.PID, r.Since.Format(time.RFC3339))
	} else {
		fmt.Println("Daemon:   stopped")
	}
	fmt.Printf("API:      %s\n", r.APIURL)
	fmt.Printf("Push:     %s\n", r.PushURL)
	if r.UserID != "" {
		fmt.Printf("User:     %s\n", r.UserID)
	}
	if !r.ExpiresAt.IsZero() {
		fmt.Printf("Token:    %s (expires %s)\n", r.Token, r.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Printf("Token:    %s\n", r.Token)
	}
}
