package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/profilekeeper/internal/client/cli"
	"github.com/dmitrijs2005/profilekeeper/internal/config"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/records"
	"github.com/dmitrijs2005/profilekeeper/internal/session"
	"github.com/spf13/cobra"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var log logging.Logger

	shell := func(cmd *cobra.Command, args []string) error {
		app, err := cli.NewApp(cmd.Context(), cfg, log, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		defer app.Close()
		return app.Run(cmd.Context())
	}

	root := &cobra.Command{
		Use:          "profilekeeper",
		Short:        "Manage your profile from the terminal",
		SilenceUsage: true,
		RunE:         shell,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
		if err != nil {
			return err
		}
		log = l
		return nil
	}
	config.BindFlags(root.PersistentFlags(), cfg)

	root.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Open the interactive profile editor (default)",
		RunE:  shell,
	})

	root.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cli.NewApp(cmd.Context(), cfg, log, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Login(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply record store and session migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := records.OpenPostgres(ctx, cfg.DatabaseDSN)
			if err != nil {
				return fmt.Errorf("record store: %w", err)
			}
			defer db.Close()

			s, err := session.Open(ctx, cfg.SessionDBPath, cfg.SessionKeyPath, log)
			if err != nil {
				return fmt.Errorf("session: %w", err)
			}
			defer s.Close()

			log.Info(ctx, "migrations applied")
			return nil
		},
	})

	return root
}
