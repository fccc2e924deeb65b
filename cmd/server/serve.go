package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/chatd/pkg/server"
	"github.com/NicolasHaas/chatd/pkg/store"
	"github.com/NicolasHaas/chatd/pkg/version"
)

var serveOpts struct {
	listen        string
	maxClients    int
	metrics       string
	reuseport     bool
	owner         string
	ownerPassword string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long: `Start the chat server

Usage
	chatd serve --listen :9500 --owner root --owner-password secret

The owner account is created only when the user database is empty.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyServeFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := store.New(cfg.DBPath)
		if err != nil {
			return err
		}
		if _, err := store.Bootstrap(st, cfg.Owner, cfg.OwnerPassword); err != nil {
			_ = st.Close()
			return err
		}

		slog.Info("starting chatd", "version", version.String(), "listen", cfg.ListenAddr, "db", cfg.DBPath)
		srv := server.New(cfg, server.Dependencies{Store: st})
		return srv.Run(ctx)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVarP(&serveOpts.listen, "listen", "l", "", "TCP bind address (e.g. :9500)")
	flags.IntVar(&serveOpts.maxClients, "max-clients", 0, "Maximum number of online sessions")
	flags.StringVar(&serveOpts.metrics, "metrics", "", "HTTP bind address for /metrics (empty string disables)")
	flags.BoolVar(&serveOpts.reuseport, "reuseport", false, "Bind the listener with SO_REUSEPORT")
	flags.StringVar(&serveOpts.owner, "owner", "", "Owner account to create on first start")
	flags.StringVar(&serveOpts.ownerPassword, "owner-password", "", "Password for the owner account")
}

func applyServeFlags(cmd *cobra.Command, cfg *server.Config) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.ListenAddr = serveOpts.listen
	}
	if flags.Changed("max-clients") {
		cfg.MaxClients = serveOpts.maxClients
	}
	if flags.Changed("metrics") {
		cfg.MetricsAddr = serveOpts.metrics
	}
	if flags.Changed("reuseport") {
		cfg.Reuseport = serveOpts.reuseport
	}
	if flags.Changed("owner") {
		cfg.Owner = serveOpts.owner
	}
	if flags.Changed("owner-password") {
		cfg.OwnerPassword = serveOpts.ownerPassword
	}
}
