// Package coordinator runs the two-sided code exchange that confirms a blood
// donation took place.
//
// When a donor attaches to an accepted request, two six-digit codes are
// generated.  The donor hands their code (DonorOTP) to the requester, who
// submits it; the requester hands theirs (RequesterOTP) to the donor, who
// submits it.  Either may go first.  Once both sides are verified the
// donation is complete, and in the same transaction the request's
// fulfilled-unit counter is recounted from its complete donations, the
// request is completed if the target is met, and the donor's last donation
// date is set.
package coordinator

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/eligibility"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotEligible                  = errors.New("donor is not eligible to donate")
	ErrAlreadyDonating              = errors.New("donor already has an active donation for this request")
	ErrCodeMismatch                 = errors.New("code does not match")
	ErrRequestNotAcceptingDonations = errors.New("request is not accepting donations")
)

// NotEligibleError carries the eligibility gate's reason.  It matches
// ErrNotEligible under errors.Is.
type NotEligibleError struct {
	Reason                eligibility.Reason
	CooldownRemainingDays int64
}

func (e *NotEligibleError) Error() string {
	if e.Reason == eligibility.ReasonCooldown {
		return fmt.Sprintf("%v: cooldown, %d day(s) remaining", ErrNotEligible, e.CooldownRemainingDays)
	}
	return fmt.Sprintf("%v: %s", ErrNotEligible, e.Reason)
}

func (e *NotEligibleError) Is(target error) bool {
	return target == ErrNotEligible
}

// CodeDigits is the length of each generated code.
const CodeDigits = 6

var codeSpace = big.NewInt(1000000)

// GenerateCode draws a code uniformly from 000000-999999.
func GenerateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("while generating code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

type Coordinator struct {
	store  store.Store
	policy eligibility.Policy
	now    func() time.Time
	rand   io.Reader
}

func New(s store.Store, policy eligibility.Policy, now func() time.Time) *Coordinator {
	return &Coordinator{
		store:  s,
		policy: policy,
		now:    now,
		rand:   rand.Reader,
	}
}

func startSpan(ctx context.Context, name, requestID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("kurudhi-koodai/coordinator").Start(ctx, name)
	span.SetAttributes(attribute.String("request", requestID))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Initiate attaches donorID to an accepted request, generating both codes.
func (c *Coordinator) Initiate(ctx context.Context, requestID, donorID string) (donation *dbtypes.Donation, err error) {
	ctx, span := startSpan(ctx, "Coordinator.Initiate", requestID)
	defer func() { endSpan(span, err) }()

	err = c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		req, err := txn.GetRequest(requestID)
		if err != nil {
			return err
		}
		if req.Status != dbtypes.StatusAccepted {
			return fmt.Errorf("request %s is %s: %w", requestID, req.Status, ErrRequestNotAcceptingDonations)
		}

		donor, err := txn.GetDonor(donorID)
		if err != nil {
			return err
		}
		if req.RequesterID == donorID {
			return fmt.Errorf("requester cannot donate to their own request: %w", identity.ErrPermissionDenied)
		}

		existing, err := txn.GetDonation(requestID, donorID)
		switch {
		case store.IsNotFound(err):
		case err != nil:
			return err
		case existing.Active():
			return ErrAlreadyDonating
		}

		now := c.now()
		decision := eligibility.CanDonate(donor, req, c.policy, now)
		if !decision.Eligible {
			return &NotEligibleError{
				Reason:                decision.Reason,
				CooldownRemainingDays: decision.CooldownRemainingDays,
			}
		}

		donorOTP, err := GenerateCode(c.rand)
		if err != nil {
			return err
		}
		requesterOTP, err := GenerateCode(c.rand)
		if err != nil {
			return err
		}

		donation = &dbtypes.Donation{
			ID:           donorID,
			RequestID:    requestID,
			DonorID:      donorID,
			DonorOTP:     donorOTP,
			RequesterOTP: requesterOTP,
			CreatedAt:    now,
		}
		return txn.PutDonation(donation)
	})
	if err != nil {
		return nil, fmt.Errorf("while initiating donation by %s to request %s: %w", donorID, requestID, err)
	}

	slog.InfoContext(ctx, "Initiated donation", slog.String("request", requestID), slog.String("donor", donorID))
	return donation, nil
}

// Outcome describes the state after a code submission.
type Outcome struct {
	Donation *dbtypes.Donation
	Request  *dbtypes.Request

	// DonationCompleted is true only for the submission that completed the
	// donation.
	DonationCompleted bool
	// RequestCompleted is true only if that completion also completed the
	// request.
	RequestCompleted bool
}

type side int

const (
	// The requester verifies the donor's code.
	donorSide side = iota
	// The donor verifies the requester's code.
	requesterSide
)

func (s side) String() string {
	if s == donorSide {
		return "donor"
	}
	return "requester"
}

// SubmitDonorCode is called by the requester with the code the donor gave
// them.
func (c *Coordinator) SubmitDonorCode(ctx context.Context, requestID, donationID, code, requesterID string) (*Outcome, error) {
	return c.submit(ctx, donorSide, requestID, donationID, code, requesterID)
}

// SubmitRequesterCode is called by the donor with the code the requester gave
// them.
func (c *Coordinator) SubmitRequesterCode(ctx context.Context, requestID, donationID, code, donorID string) (*Outcome, error) {
	return c.submit(ctx, requesterSide, requestID, donationID, code, donorID)
}

func (c *Coordinator) submit(ctx context.Context, s side, requestID, donationID, code, actorID string) (out *Outcome, err error) {
	ctx, span := startSpan(ctx, "Coordinator.Submit", requestID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("donation", donationID), attribute.String("side", s.String()))

	err = c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		// The function may be retried, so start from scratch each time.
		out = &Outcome{}

		req, err := txn.GetRequest(requestID)
		if err != nil {
			return err
		}
		donation, err := txn.GetDonation(requestID, donationID)
		if err != nil {
			return err
		}
		out.Request = req
		out.Donation = donation

		var expected string
		var flag *bool
		switch s {
		case donorSide:
			if req.RequesterID != actorID {
				return fmt.Errorf("only the requester may verify the donor's code: %w", identity.ErrPermissionDenied)
			}
			expected, flag = donation.DonorOTP, &donation.DonorSideVerified
		case requesterSide:
			if donation.DonorID != actorID {
				return fmt.Errorf("only the donor may verify the requester's code: %w", identity.ErrPermissionDenied)
			}
			expected, flag = donation.RequesterOTP, &donation.RequesterSideVerified
		}

		if donation.State() == dbtypes.DonationCancelled {
			return fmt.Errorf("donation is cancelled: %w", ledger.ErrInvalidTransition)
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(expected)) != 1 {
			return ErrCodeMismatch
		}
		if *flag {
			// Already verified; resubmitting is a no-op.
			return nil
		}

		*flag = true
		if donation.State() != dbtypes.DonationComplete {
			return txn.PutDonation(donation)
		}

		return c.complete(txn, req, donation, out)
	})
	if err != nil {
		return nil, fmt.Errorf("while verifying %s code of donation %s on request %s: %w", s, donationID, requestID, err)
	}

	slog.InfoContext(ctx, "Verified donation code",
		slog.String("request", requestID),
		slog.String("donation", donationID),
		slog.String("side", s.String()),
		slog.String("state", string(out.Donation.State())),
		slog.Bool("requestCompleted", out.RequestCompleted))
	return out, nil
}

// complete applies the three effects of a donation reaching full
// confirmation.  donation already has both flags set in memory.  All reads
// happen before the first write.
func (c *Coordinator) complete(txn store.Txn, req *dbtypes.Request, donation *dbtypes.Donation, out *Outcome) error {
	donor, err := txn.GetDonor(donation.DonorID)
	if err != nil {
		return fmt.Errorf("while reading donor %s: %w", donation.DonorID, err)
	}
	siblings, err := txn.ListDonations(req.ID)
	if err != nil {
		return fmt.Errorf("while listing donations: %w", err)
	}

	// Recount rather than increment, so a missed update heals itself.
	confirmed := int64(1)
	for _, d := range siblings {
		if d.ID != donation.ID && d.State() == dbtypes.DonationComplete {
			confirmed++
		}
	}

	now := c.now()
	donation.CompletedAt = &now
	donor.LastDonationDate = &now

	before := req.Status
	changed, err := ledger.ApplyUnitsDonated(req, confirmed, now)
	if err != nil {
		return err
	}

	if err := txn.PutDonation(donation); err != nil {
		return err
	}
	if err := txn.UpdateDonor(donor); err != nil {
		return err
	}
	if changed {
		if err := txn.UpdateRequest(req); err != nil {
			return err
		}
	}

	out.DonationCompleted = true
	out.RequestCompleted = before != dbtypes.StatusCompleted && req.Status == dbtypes.StatusCompleted
	return nil
}

// Cancel withdraws a donation that has not completed.  Either party may
// cancel.  The tombstone stays in place so the donor can initiate again.
func (c *Coordinator) Cancel(ctx context.Context, requestID, donationID, actorID, reason string) (donation *dbtypes.Donation, err error) {
	ctx, span := startSpan(ctx, "Coordinator.Cancel", requestID)
	defer func() { endSpan(span, err) }()

	err = c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		req, err := txn.GetRequest(requestID)
		if err != nil {
			return err
		}
		donation, err = txn.GetDonation(requestID, donationID)
		if err != nil {
			return err
		}

		if actorID != donation.DonorID && actorID != req.RequesterID {
			return identity.ErrPermissionDenied
		}
		return cancelInTxn(txn, donation, reason, c.now())
	})
	if err != nil {
		return nil, fmt.Errorf("while cancelling donation %s on request %s: %w", donationID, requestID, err)
	}

	slog.InfoContext(ctx, "Cancelled donation", slog.String("request", requestID), slog.String("donation", donationID), slog.String("reason", reason))
	return donation, nil
}

func cancelInTxn(txn store.Txn, donation *dbtypes.Donation, reason string, now time.Time) error {
	switch donation.State() {
	case dbtypes.DonationCancelled:
		return nil
	case dbtypes.DonationComplete:
		return fmt.Errorf("donation is already complete: %w", ledger.ErrInvalidTransition)
	}

	donation.CancelledAt = &now
	donation.CancelReason = reason
	return txn.PutDonation(donation)
}

// ExpireStale cancels every unfinished donation on a request created before
// cutoff, returning how many were cancelled.
func (c *Coordinator) ExpireStale(ctx context.Context, requestID string, cutoff time.Time, reason string) (expired int, err error) {
	ctx, span := startSpan(ctx, "Coordinator.ExpireStale", requestID)
	defer func() { endSpan(span, err) }()

	err = c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		expired = 0
		donations, err := txn.ListDonations(requestID)
		if err != nil {
			return err
		}

		now := c.now()
		for _, d := range donations {
			switch d.State() {
			case dbtypes.DonationComplete, dbtypes.DonationCancelled:
				continue
			}
			if !d.CreatedAt.Before(cutoff) {
				continue
			}
			if err := cancelInTxn(txn, d, reason, now); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("while expiring stale donations on request %s: %w", requestID, err)
	}
	return expired, nil
}

func (c *Coordinator) Get(ctx context.Context, requestID, donationID string) (*dbtypes.Donation, error) {
	var donation *dbtypes.Donation
	err := c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		donation, err = txn.GetDonation(requestID, donationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while getting donation %s on request %s: %w", donationID, requestID, err)
	}
	return donation, nil
}

func (c *Coordinator) ListForRequest(ctx context.Context, requestID string) ([]*dbtypes.Donation, error) {
	var donations []*dbtypes.Donation
	err := c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		if _, err := txn.GetRequest(requestID); err != nil {
			return err
		}
		var err error
		donations, err = txn.ListDonations(requestID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while listing donations on request %s: %w", requestID, err)
	}
	return donations, nil
}

// CheckEligibility evaluates the eligibility gate for donorID against a
// request without attaching anything.
func (c *Coordinator) CheckEligibility(ctx context.Context, requestID, donorID string) (eligibility.Decision, error) {
	var decision eligibility.Decision
	err := c.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		req, err := txn.GetRequest(requestID)
		if err != nil {
			return err
		}
		donor, err := txn.GetDonor(donorID)
		if err != nil {
			return err
		}
		decision = eligibility.CanDonate(donor, req, c.policy, c.now())
		return nil
	})
	if err != nil {
		return eligibility.Decision{}, fmt.Errorf("while checking eligibility of %s for request %s: %w", donorID, requestID, err)
	}
	return decision, nil
}
