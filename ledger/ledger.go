// Package ledger owns blood requests and their status lifecycle.
//
//	received -> accepted | rejected
//	accepted -> completed
//
// completed and rejected are terminal.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidTransition = errors.New("status transition not permitted")
	ErrInvalidNeed       = errors.New("invalid request details")
)

var allowedTransitions = map[dbtypes.RequestStatus][]dbtypes.RequestStatus{
	dbtypes.StatusReceived: {dbtypes.StatusAccepted, dbtypes.StatusRejected},
	dbtypes.StatusAccepted: {dbtypes.StatusCompleted},
}

// CheckTransition returns nil if a request in status "from" may move to
// status "to".  Staying in the same status is always permitted.
func CheckTransition(from, to dbtypes.RequestStatus) error {
	if from == to {
		return nil
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}

// Need is what a requester fills in when posting a request.
type Need struct {
	PatientName      string
	PatientAge       int64
	PatientGender    string
	Hospital         string
	Reason           string
	BloodGroup       string
	AnyGroupAccepted bool
	UnitsNeeded      int64
}

func (n *Need) validate() error {
	if n.UnitsNeeded <= 0 {
		return fmt.Errorf("units needed must be positive, got %d: %w", n.UnitsNeeded, ErrInvalidNeed)
	}
	// A request accepting any group may leave the blood group blank.
	if (n.BloodGroup != "" || !n.AnyGroupAccepted) && !dbtypes.ValidBloodGroup(n.BloodGroup) {
		return fmt.Errorf("unknown blood group %q: %w", n.BloodGroup, ErrInvalidNeed)
	}
	if strings.TrimSpace(n.PatientName) == "" || strings.TrimSpace(n.Hospital) == "" {
		return fmt.Errorf("patient name and hospital are required: %w", ErrInvalidNeed)
	}
	return nil
}

type Ledger struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store, now func() time.Time) *Ledger {
	return &Ledger{
		store: s,
		now:   now,
	}
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("kurudhi-koodai/ledger").Start(ctx, name)
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

// Create posts a new request on behalf of requesterID.  The request starts in
// received.
func (l *Ledger) Create(ctx context.Context, requesterID string, need *Need) (req *dbtypes.Request, err error) {
	ctx, span := startSpan(ctx, "Ledger.Create")
	defer func() { endSpan(span, err) }()

	if err := need.validate(); err != nil {
		return nil, err
	}

	err = l.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		now := l.now()
		req = &dbtypes.Request{
			RequesterID:      requesterID,
			PatientName:      need.PatientName,
			PatientAge:       need.PatientAge,
			PatientGender:    need.PatientGender,
			Hospital:         need.Hospital,
			Reason:           need.Reason,
			BloodGroup:       need.BloodGroup,
			AnyGroupAccepted: need.AnyGroupAccepted,
			UnitsNeeded:      need.UnitsNeeded,
			Status:           dbtypes.StatusReceived,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return txn.CreateRequest(req)
	})
	if err != nil {
		return nil, fmt.Errorf("while creating request: %w", err)
	}

	span.SetAttributes(attribute.String("request", req.ID))
	slog.InfoContext(ctx, "Created blood request", slog.String("request", req.ID), slog.String("requester", requesterID))
	return req, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*dbtypes.Request, error) {
	var req *dbtypes.Request
	err := l.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		req, err = txn.GetRequest(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while getting request %s: %w", id, err)
	}
	return req, nil
}

// List returns requests in the given status (all requests if status is
// empty), newest first.
func (l *Ledger) List(ctx context.Context, status dbtypes.RequestStatus) ([]*dbtypes.Request, error) {
	var reqs []*dbtypes.Request
	err := l.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		reqs, err = txn.ListRequests(status)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while listing requests: %w", err)
	}

	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
	return reqs, nil
}

// SetStatus moves a request through its lifecycle on behalf of a reviewer.
func (l *Ledger) SetStatus(ctx context.Context, actor *dbtypes.User, id string, newStatus dbtypes.RequestStatus) (req *dbtypes.Request, err error) {
	ctx, span := startSpan(ctx, "Ledger.SetStatus")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("request", id), attribute.String("status", string(newStatus)))

	if actor == nil || !actor.HasRole(dbtypes.RoleReviewer) {
		return nil, identity.ErrPermissionDenied
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", newStatus, ErrInvalidTransition)
	}

	err = l.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		req, err = txn.GetRequest(id)
		if err != nil {
			return err
		}

		if err := CheckTransition(req.Status, newStatus); err != nil {
			return err
		}
		if req.Status == newStatus {
			return nil
		}

		req.Status = newStatus
		req.UpdatedAt = l.now()
		return txn.UpdateRequest(req)
	})
	if err != nil {
		return nil, fmt.Errorf("while setting status of request %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Set request status", slog.String("request", id), slog.String("status", string(req.Status)), slog.String("actor", actor.ID))
	return req, nil
}

// RecordUnitsDonated sets the fulfilled-unit counter of a request, completing
// it if the target is met.
func (l *Ledger) RecordUnitsDonated(ctx context.Context, id string, count int64) (req *dbtypes.Request, err error) {
	ctx, span := startSpan(ctx, "Ledger.RecordUnitsDonated")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("request", id), attribute.Int64("count", count))

	err = l.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		req, err = txn.GetRequest(id)
		if err != nil {
			return err
		}

		changed, err := ApplyUnitsDonated(req, count, l.now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return txn.UpdateRequest(req)
	})
	if err != nil {
		return nil, fmt.Errorf("while recording units donated for request %s: %w", id, err)
	}
	return req, nil
}

// ApplyUnitsDonated updates req in memory for a new fulfilled-unit count and
// reports whether anything changed.  It is the single place the counter and
// the automatic completion are decided, and must be called inside the
// transaction that read req.
//
// The counter never decreases and is capped at UnitsNeeded.  Reaching the
// target moves an accepted request to completed.
func ApplyUnitsDonated(req *dbtypes.Request, count int64, now time.Time) (bool, error) {
	if count < 0 {
		return false, fmt.Errorf("negative unit count %d: %w", count, ErrInvalidTransition)
	}
	if req.Status == dbtypes.StatusRejected {
		return false, fmt.Errorf("request %s is rejected: %w", req.ID, ErrInvalidTransition)
	}

	if count > req.UnitsNeeded {
		count = req.UnitsNeeded
	}

	changed := false
	if count > req.UnitsDonated {
		req.UnitsDonated = count
		changed = true
	}

	if req.Status == dbtypes.StatusAccepted && req.UnitsDonated >= req.UnitsNeeded {
		req.Status = dbtypes.StatusCompleted
		changed = true
	}

	if changed {
		req.UpdatedAt = now
	}
	return changed, nil
}

// MarkCompletionNotified records that the requester of a completed request
// has been told.  It returns true only for the call that set the flag.
func (l *Ledger) MarkCompletionNotified(ctx context.Context, id string) (bool, error) {
	marked := false
	err := l.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		marked = false
		req, err := txn.GetRequest(id)
		if err != nil {
			return err
		}
		if req.Status != dbtypes.StatusCompleted || req.CompletionNotified {
			return nil
		}
		req.CompletionNotified = true
		marked = true
		return txn.UpdateRequest(req)
	})
	if err != nil {
		return false, fmt.Errorf("while marking request %s notified: %w", id, err)
	}
	return marked, nil
}
