package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/monitordev/monitor/internal/accounts"
	"github.com/monitordev/monitor/internal/actions"
	"github.com/monitordev/monitor/internal/api"
	"github.com/monitordev/monitor/internal/config"
	"github.com/monitordev/monitor/internal/periphery"
	"github.com/monitordev/monitor/internal/provision"
	"github.com/monitordev/monitor/internal/resources"
	"github.com/monitordev/monitor/internal/search"
	"github.com/monitordev/monitor/internal/statuscache"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/updates"
	"github.com/monitordev/monitor/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the core API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	logger := util.Slog()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	client := periphery.NewClient(
		cfg.Periphery.Passkey,
		cfg.Periphery.BuildTimeout,
		cfg.Periphery.RequestTimeout,
		cfg.Periphery.ProbeTimeout,
	)

	status := statuscache.NewCache()
	refresher := statuscache.NewRefresher(st, client, status, cfg.Monitor.StatsInterval, cfg.Monitor.Workers)
	go refresher.Run(ctx)

	ledger := updates.NewLedger(st)
	sweeper := updates.NewSweeper(ledger, cfg.Updates.SweepInterval, cfg.Updates.StaleCutoff)
	go sweeper.Run(ctx)

	var provisioner actions.Provisioner
	if aws, err := provision.NewAwsProvisioner(ctx, cfg.Aws.Region); err != nil {
		logger.Warn("aws provisioner unavailable, aws builders will fail", "err", err)
	} else {
		provisioner = aws
	}

	manager := resources.NewManager(st, ledger, client, status)
	dispatcher := actions.NewDispatcher(st, ledger, client, provisioner)
	searcher := search.NewSearcher(st, status)
	resolver := accounts.NewResolver(st, client,
		lo.Keys(cfg.GithubAccounts), lo.Keys(cfg.DockerAccounts))

	server := api.NewServer(st, manager, dispatcher, searcher, resolver)
	logger.Info("core listening", "address", cfg.Listen)
	return server.Run(ctx, cfg.Listen)
}
