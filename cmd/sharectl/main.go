package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"docshare/internal/audit"
	"docshare/internal/config"
	"docshare/internal/database"
	"docshare/internal/logging"
	"docshare/internal/repository"
	"docshare/internal/service"
)

// env is what every subcommand needs: a store and the sharing policy.
type env struct {
	cfg  *config.AppConfig
	open func(ctx context.Context) (repository.KeyValueStore, func() error, error)
	log  *logging.Logger
}

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, logging.LoadLocation(cfg.Timezone))

	e := &env{
		cfg: cfg,
		log: logger,
		open: func(ctx context.Context) (repository.KeyValueStore, func() error, error) {
			return database.OpenStore(ctx, cfg, logger)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(e).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "sharectl",
		Short: "Inspect and manage shared documents",
		Long: `sharectl works directly against the configured share store
(STORE_DRIVER, DB_*, SQLITE_PATH) and is meant for operators.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		listCmd(e),
		statusCmd(e),
		deleteCmd(e),
		watchCmd(e),
		auditCmd(e),
	)
	return root
}

// withService opens the store, builds the sharing service on it and runs fn.
func (e *env) withService(ctx context.Context, fn func(store repository.KeyValueStore, svc service.SharingService) error) error {
	policy, err := config.LoadPolicy(e.cfg.Sharing.PolicyFile)
	if err != nil {
		return err
	}

	store, closeStore, err := e.open(ctx)
	if err != nil {
		return fmt.Errorf("open share store: %w", err)
	}
	defer closeStore()

	trail := audit.New(store, audit.WithMaxEntries(e.cfg.Sharing.AuditMaxEntries), audit.WithLogger(e.log))
	svc := service.NewSharingService(store,
		service.WithPolicy(policy),
		service.WithLocation(logging.LoadLocation(e.cfg.Timezone)),
		service.WithAuditor(trail),
	)
	return fn(store, svc)
}
