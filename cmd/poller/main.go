// poller expires stale donations and emails requesters whose requests have
// been fulfilled.
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

	"kurudhi-koodai/config"
	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/healthz"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/mailer"
	"kurudhi-koodai/monitoring"
	"kurudhi-koodai/poller"
	"kurudhi-koodai/store/backend"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/sendgrid/sendgrid-go"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

var (
	debugListen       = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	recheckPeriod     = flag.Duration("recheck-period", 1*time.Hour, "Time between scans")
	configFile        = flag.String("config", "", "Optional config file (yaml, json or toml).")
	sendgridKeySecret = flag.String("sendgrid-key-secret", "", "GCP Secret Manager secret name that contains the Sendgrid API key.  If empty, emails are only logged.")
	secretsProject    = flag.String("secrets-project", "", "GCP project holding -sendgrid-key-secret.  Defaults to -data-project.")

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
		slog.String("debug-listen", *debugListen),
		slog.Duration("recheck-period", *recheckPeriod),
		slog.String("config", *configFile),
		slog.String("sendgrid-key-secret", *sendgridKeySecret),
		slog.String("secrets-project", *secretsProject),
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

	shutdownMonitoring, err := monitoring.Setup(monitoringFlags, "kurudhi-poller")
	if err != nil {
		return fmt.Errorf("while setting up monitoring: %w", err)
	}
	defer shutdownMonitoring()

	var sender mailer.Sender = mailer.Log{}
	if *sendgridKeySecret != "" {
		secretName, err := secretVersionName(*secretsProject, backendFlags.DataProject, *sendgridKeySecret)
		if err != nil {
			return err
		}
		sg, err := newSendgridClient(ctx, secretName)
		if err != nil {
			return fmt.Errorf("while creating Sendgrid client: %w", err)
		}
		sender = mailer.NewSendGrid(sg, cfg.MailFromName, cfg.MailFromAddress)
	}

	s, err := backend.Open(ctx, backendFlags)
	if err != nil {
		return fmt.Errorf("while opening store: %w", err)
	}
	defer s.Close()

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

	p := poller.New(
		ledger.New(s, time.Now),
		coordinator.New(s, cfg.EligibilityPolicy(), time.Now),
		identity.New(s, cfg.GoogleOAuthClientID, cfg.SessionLifetime, time.Now),
		sender,
		poller.Options{
			RecheckPeriod:         *recheckPeriod,
			PendingDonationExpiry: cfg.PendingDonationExpiry,
			PublicBaseURL:         cfg.PublicBaseURL,
		},
		time.Now)

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			slog.ErrorContext(ctx, "Debug server died", slog.Any("err", err))
			os.Exit(255)
		}
	}()

	go func() {
		p.Run(ctx)
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	return nil
}

// secretVersionName names the latest version of secret, in secretsProject
// if set and in dataProject otherwise.
func secretVersionName(secretsProject, dataProject, secret string) (string, error) {
	project := secretsProject
	if project == "" {
		project = dataProject
	}
	if project == "" {
		return "", fmt.Errorf("secret %q needs -secrets-project (or -data-project)", secret)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, secret), nil
}

func newSendgridClient(ctx context.Context, secretName string) (*sendgrid.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secretClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating Secret Manager client: %w", err)
	}
	defer secretClient.Close()

	resp, err := secretClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return nil, fmt.Errorf("while pulling secret: %w", err)
	}

	return sendgrid.NewSendClient(string(resp.GetPayload().GetData())), nil
}
