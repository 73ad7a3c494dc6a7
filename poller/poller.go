// Package poller periodically sweeps blood requests: it expires donations
// left unconfirmed for too long and tells requesters when their request has
// been fulfilled.
package poller

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"text/template"
	"time"

	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/mailer"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ExpiryReason is recorded on donations cancelled by the sweep.
const ExpiryReason = "expired: not confirmed in time"

type Options struct {
	RecheckPeriod time.Duration

	// Zero disables expiry of unconfirmed donations.
	PendingDonationExpiry time.Duration

	// Used to build links in notification emails.
	PublicBaseURL string

	// Maximum number of requests processed at once.
	Concurrency int64
}

// Poller runs an infinite loop, sweeping all requests every RecheckPeriod.
type Poller struct {
	ledger      *ledger.Ledger
	coordinator *coordinator.Coordinator
	identity    *identity.Service
	sender      mailer.Sender
	opts        Options
	now         func() time.Time
}

func New(l *ledger.Ledger, c *coordinator.Coordinator, id *identity.Service, sender mailer.Sender, opts Options, now func() time.Time) *Poller {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 16
	}
	return &Poller{
		ledger:      l,
		coordinator: c,
		identity:    id,
		sender:      sender,
		opts:        opts,
		now:         now,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.RecheckPeriod)
	defer ticker.Stop()

	// Poll once right away --- ticker doesn't fire until the tick period has
	// elapsed.
	if err := p.Poll(ctx); err != nil {
		slog.ErrorContext(ctx, "Error during poller pass", slog.Any("err", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := p.Poll(ctx); err != nil {
			slog.ErrorContext(ctx, "Error during poller pass", slog.Any("err", err))
		}
	}
}

// Poll runs a single sweep.
func (p *Poller) Poll(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting poller pass")
	defer func() {
		slog.InfoContext(ctx, "Finished poller pass")
	}()

	if p.opts.PendingDonationExpiry > 0 {
		if err := p.expireStaleDonations(ctx); err != nil {
			return fmt.Errorf("while expiring stale donations: %w", err)
		}
	}

	if err := p.notifyCompletedRequests(ctx); err != nil {
		return fmt.Errorf("while notifying requesters: %w", err)
	}

	return nil
}

// forEach runs fn over reqs with bounded concurrency.
func (p *Poller) forEach(ctx context.Context, reqs []*dbtypes.Request, fn func(ctx context.Context, req *dbtypes.Request) error) error {
	// Use errgroup and semaphore to limit concurrency.
	eg, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(p.opts.Concurrency)

	for _, req := range reqs {
		req := req

		if err := sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("while acquiring concurrency limiter semaphore: %w", err)
		}

		eg.Go(func() error {
			defer sem.Release(1)
			return fn(ctx, req)
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("while waiting for completion of errgroup: %w", err)
	}
	return nil
}

func (p *Poller) expireStaleDonations(ctx context.Context) error {
	reqs, err := p.ledger.List(ctx, dbtypes.StatusAccepted)
	if err != nil {
		return err
	}

	cutoff := p.now().Add(-p.opts.PendingDonationExpiry)
	return p.forEach(ctx, reqs, func(ctx context.Context, req *dbtypes.Request) error {
		expired, err := p.coordinator.ExpireStale(ctx, req.ID, cutoff, ExpiryReason)
		if err != nil {
			return err
		}
		if expired > 0 {
			slog.InfoContext(ctx, "Expired stale donations", slog.String("request", req.ID), slog.Int("count", expired))
		}
		return nil
	})
}

func (p *Poller) notifyCompletedRequests(ctx context.Context) error {
	reqs, err := p.ledger.List(ctx, dbtypes.StatusCompleted)
	if err != nil {
		return err
	}

	return p.forEach(ctx, reqs, func(ctx context.Context, req *dbtypes.Request) error {
		if req.CompletionNotified {
			return nil
		}

		// Claim the notification first so that concurrent pollers don't both
		// send it.
		marked, err := p.ledger.MarkCompletionNotified(ctx, req.ID)
		if err != nil {
			return err
		}
		if !marked {
			return nil
		}

		slog.InfoContext(ctx, "Sending fulfilment notification", slog.String("request", req.ID))
		return p.sendFulfilled(ctx, req)
	})
}

const fulfilledPlain = `Hello {{.RequesterName}},

Your blood request for {{.PatientName}} at {{.Hospital}} has been fulfilled:
{{.UnitsDonated}} of {{.UnitsNeeded}} unit(s) were confirmed by donors.

View the request: {{.Link}}

Thank you for using Kurudhi Koodai.
`

var fulfilledPlainTemplate = template.Must(template.New("fulfilled").Parse(fulfilledPlain))

type fulfilledParams struct {
	RequesterName string
	PatientName   string
	Hospital      string
	UnitsDonated  int64
	UnitsNeeded   int64
	Link          string
}

func (p *Poller) sendFulfilled(ctx context.Context, req *dbtypes.Request) error {
	user, err := p.identity.GetUser(ctx, req.RequesterID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return nil
	}

	name := user.DisplayName
	if name == "" {
		name = user.Email
	}

	link := p.opts.PublicBaseURL + "/show-request?" + url.Values{"id": {req.ID}}.Encode()

	textContent := &bytes.Buffer{}
	err = fulfilledPlainTemplate.Execute(textContent, &fulfilledParams{
		RequesterName: name,
		PatientName:   req.PatientName,
		Hospital:      req.Hospital,
		UnitsDonated:  req.UnitsDonated,
		UnitsNeeded:   req.UnitsNeeded,
		Link:          link,
	})
	if err != nil {
		return fmt.Errorf("while templating plain-text email content: %w", err)
	}

	if err := p.sender.SendText(ctx, user.Email, "Your blood request has been fulfilled", textContent.String()); err != nil {
		return fmt.Errorf("while sending fulfilment email for request %s: %w", req.ID, err)
	}
	return nil
}
