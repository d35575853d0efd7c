package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkingovr/captcha-guard/internal/admin"
	"github.com/tkingovr/captcha-guard/internal/audit"
	"github.com/tkingovr/captcha-guard/internal/failure"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/metrics"
	"github.com/tkingovr/captcha-guard/internal/middleware"
	"github.com/tkingovr/captcha-guard/internal/proxy"
)

var (
	serveTarget string
	serveListen string
	serveAdmin  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reverse proxy + admin server",
	Long: `Start an HTTP reverse proxy that enforces reCAPTCHA validation before
forwarding requests to the target, together with the admin server
(stats, audit log, dry-run checks and Prometheus metrics).`,
	Example: `  captchaguard serve -c captchaguard.yaml --target http://localhost:4000 --listen :3000
  CAPTCHAGUARD_SECRET=... captchaguard serve --target http://localhost:4000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTarget, "target", "", "upstream URL (required)")
	serveCmd.Flags().StringVar(&serveListen, "listen", ":3000", "proxy listen address")
	serveCmd.Flags().StringVar(&serveAdmin, "admin", "", "admin listen address (overrides settings.admin_addr)")
	_ = serveCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAdmin != "" {
		cfg.AdminAddr = serveAdmin
	}

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}

	chainCfg := filter.ChainConfig{
		Scope:     comps.scope,
		Validator: comps.validator,
		Logger:    logger,
	}

	var recorder *metrics.Recorder
	if cfg.Metrics {
		recorder = metrics.NewRecorder()
		chainCfg.Metrics = recorder
	}

	var store audit.Store
	if cfg.Audit {
		jsonl, err := audit.NewJSONLStore(cfg.LogDir)
		if err != nil {
			return fmt.Errorf("creating audit store: %w", err)
		}
		defer jsonl.Close()
		store = jsonl
		chainCfg.AuditStore = jsonl
	}

	var rf *middleware.RequestFilter
	if cfg.Enabled {
		chain := filter.BuildChain(chainCfg)
		rf = middleware.New(chain, failure.NewDefaultHandler(logger), logger)
	} else {
		logger.Warn("reCaptcha validation disabled, forwarding every request")
	}

	p, err := proxy.NewProxy(serveTarget, rf, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	// Start admin server in background
	adminSrv := admin.NewServer(cfg.AdminAddr, admin.Options{
		Config:     cfg,
		Scope:      comps.scope,
		AuditStore: store,
		Metrics:    recorder,
		Engine:     comps.engine,
		Logger:     logger,
	})
	go func() {
		if err := adminSrv.ListenAndServe(ctx); err != nil {
			logger.Error("admin server error", "error", err)
		}
	}()

	logger.Info("starting serve mode",
		slog.String("target", serveTarget),
		slog.String("admin", cfg.AdminAddr),
		slog.Bool("enabled", cfg.Enabled),
		slog.Bool("audit", cfg.Audit),
	)

	// Start proxy (blocks)
	return p.ListenAndServe(ctx, serveListen)
}
