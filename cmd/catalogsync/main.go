package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catalogsync/internal/config"
	"catalogsync/internal/observability"
	"catalogsync/internal/sheets"
)

// go run ./cmd/catalogsync serve
// go run ./cmd/catalogsync sync
// go run ./cmd/catalogsync migrate
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "catalogsync",
		Short:         "Keep the product catalog in step with the sizes spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("initialise logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.AddCommand(newServeCmd(a), newSyncCmd(a), newMigrateCmd(a))
	return root
}

func (a *app) source(ctx context.Context) sheets.Source {
	switch a.cfg.SheetSource {
	case config.SourceHTML:
		return sheets.NewHTMLSource(a.cfg.SheetID, a.cfg.CallTimeout)
	case config.SourceXLSX:
		return sheets.NewXLSXSource(a.cfg.XLSXPath)
	default:
		return sheets.NewGoogleSource(ctx, a.cfg.GoogleAPIKey, a.cfg.SheetID, nil,
			sheets.WithCallTimeout(a.cfg.CallTimeout))
	}
}
