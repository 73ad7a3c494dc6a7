// kurudhi serves the donation API and web UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kurudhi-koodai/api"
	"kurudhi-koodai/config"
	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/healthz"
	"kurudhi-koodai/httpmetrics"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/ratelimit"
	"kurudhi-koodai/monitoring"
	"kurudhi-koodai/registry"
	"kurudhi-koodai/store/backend"
	"kurudhi-koodai/webui"
)

var (
	uiListen    = flag.String("ui-listen", "0.0.0.0:8080", "Server address:port for the API and web UI.")
	debugListen = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	configFile  = flag.String("config", "", "Optional config file (yaml, json or toml).")

	backendFlags    = &backend.Flags{}
	monitoringFlags = &monitoring.Flags{}
)

func main() {
	backendFlags.RegisterFlags(flag.CommandLine)
	monitoringFlags.RegisterFlags(flag.CommandLine)
	flag.Parse()

	slog.Info("Starting up")
	slog.Info(
		"Flags",
		slog.String("ui-listen", *uiListen),
		slog.String("debug-listen", *debugListen),
		slog.String("config", *configFile),
		slog.Any("store", backendFlags),
		slog.Any("monitoring", monitoringFlags),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		slog.ErrorContext(ctx, "Error", slog.Any("err", err))
		os.Exit(255)
	}
}

func do(ctx context.Context) error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("while loading config: %w", err)
	}

	shutdownMonitoring, err := monitoring.Setup(monitoringFlags, "kurudhi")
	if err != nil {
		return fmt.Errorf("while setting up monitoring: %w", err)
	}
	defer shutdownMonitoring()

	s, err := backend.Open(ctx, backendFlags)
	if err != nil {
		return fmt.Errorf("while opening store: %w", err)
	}
	defer s.Close()

	l := ledger.New(s, time.Now)
	c := coordinator.New(s, cfg.EligibilityPolicy(), time.Now)
	reg := registry.New(s, cfg.PhoneRegion, time.Now)
	id := identity.New(s, cfg.GoogleOAuthClientID, cfg.SessionLifetime, time.Now)

	if !id.GoogleSignInEnabled() {
		slog.InfoContext(ctx, "Google sign-in disabled; set google_oauth_client_id to enable it")
	}

	verifyLimiter := ratelimit.New(cfg.VerifyRatePerMinute, cfg.VerifyBurst)

	uiServeMux := http.NewServeMux()
	api.New(l, c, reg, id, api.Options{VerifyLimiter: verifyLimiter}).Register(uiServeMux)
	webui.New(l, c, reg, id, cfg.GoogleOAuthClientID, verifyLimiter).Register(uiServeMux)

	metricsWrapper := httpmetrics.New(uiServeMux)
	if err := metricsWrapper.RegisterMetrics(); err != nil {
		return fmt.Errorf("while registering HTTP metrics: %w", err)
	}

	uiServer := &http.Server{
		Addr:    *uiListen,
		Handler: metricsWrapper,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", healthz.NewReady(5*time.Second, map[string]healthz.Pinger{"store": s}))
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "Debug server died", slog.Any("err", err))
			os.Exit(255)
		}
	}()

	go func() {
		if err := uiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "UI server died", slog.Any("err", err))
			os.Exit(255)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	slog.InfoContext(ctx, "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := uiServer.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "Error while shutting down UI server", slog.Any("err", err))
	}
	debugServer.Close()

	return nil
}
