package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/tablegate/internal/server"
	"github.com/koustreak/tablegate/internal/service"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openSnapshotStore(ctx); err != nil {
		return err
	}
	if err := a.openConnections(ctx); err != nil {
		return err
	}

	svc := service.New(a.reg, a.cache(), a.cfg.Query, a.log)

	srvCfg := a.cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}
	return server.New(svc, &srvCfg, a.log).Run(ctx)
}
