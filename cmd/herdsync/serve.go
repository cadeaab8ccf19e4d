package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"herdsync/internal/api"
	"herdsync/internal/connectivity"
	"herdsync/internal/live"
	"herdsync/internal/logging"
	"herdsync/internal/notify"
	"herdsync/internal/repository"
	"herdsync/internal/store"
	"herdsync/internal/syncqueue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine and its local REST/websocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default 127.0.0.1:8090)")
	must(viper.BindPFlag("listen.addr", serveCmd.Flags().Lookup("listen")))
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	logging.Init(logging.Options{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		File:   viper.GetString("log.file"),
	})
	log := logging.Component("agent")

	s, err := store.Open(viper.GetString("data.dir"))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return err
	}

	client, err := api.New(api.Config{
		BaseURL: viper.GetString("api.base_url"),
		Token:   viper.GetString("api.token"),
	})
	if err != nil {
		return err
	}

	broker := live.NewBroker()
	s.SetChangeListener(broker.Publish)

	hub := notify.NewHub()
	monitor := connectivity.New(client, viper.GetDuration("connectivity.probe_interval"))
	repo := repository.New(s, client, monitor, hub)
	processor := syncqueue.New(s, client, monitor, hub, repo,
		syncqueue.WithRetriggerDelay(viper.GetDuration("sync.retrigger_delay")))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Every offline->online edge drains whatever queued up, then
	// refreshes the cache from the server.
	monitor.OnOnline(func() {
		go func() {
			if err := processor.Drain(ctx); err != nil {
				log.WithError(err).Warn("reconnect drain failed")
			}
			repo.RefreshAnimals(ctx)
			repo.RefreshTasks(ctx)
		}()
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	srv := &http.Server{
		Addr:    viper.GetString("listen.addr"),
		Handler: newRouter(repo, processor, monitor, hub, broker),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("agent listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
