package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/store"
	"kurudhi-koodai/store/kvstore"
)

var (
	reviewer = &dbtypes.User{ID: "reviewer", Roles: []string{dbtypes.RoleReviewer}}
	fixedNow = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, func() time.Time { return fixedNow })
}

func validNeed() *Need {
	return &Need{
		PatientName: "Kavya",
		PatientAge:  34,
		Hospital:    "Government Hospital",
		BloodGroup:  "B-",
		UnitsNeeded: 2,
	}
}

func TestCheckTransition(t *testing.T) {
	testCases := []struct {
		from, to dbtypes.RequestStatus
		ok       bool
	}{
		{dbtypes.StatusReceived, dbtypes.StatusAccepted, true},
		{dbtypes.StatusReceived, dbtypes.StatusRejected, true},
		{dbtypes.StatusAccepted, dbtypes.StatusCompleted, true},
		{dbtypes.StatusAccepted, dbtypes.StatusAccepted, true},
		{dbtypes.StatusCompleted, dbtypes.StatusCompleted, true},
		{dbtypes.StatusReceived, dbtypes.StatusCompleted, false},
		{dbtypes.StatusAccepted, dbtypes.StatusRejected, false},
		{dbtypes.StatusAccepted, dbtypes.StatusReceived, false},
		{dbtypes.StatusRejected, dbtypes.StatusAccepted, false},
		{dbtypes.StatusCompleted, dbtypes.StatusAccepted, false},
	}
	for _, tc := range testCases {
		err := CheckTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, err, ErrInvalidTransition)
		}
	}
}

func TestCreateValidates(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	bad := []*Need{
		{PatientName: "P", Hospital: "H", BloodGroup: "O+", UnitsNeeded: 0},
		{PatientName: "P", Hospital: "H", BloodGroup: "Z+", UnitsNeeded: 1},
		{PatientName: "P", Hospital: "H", UnitsNeeded: 1},
		{Hospital: "H", BloodGroup: "O+", UnitsNeeded: 1},
	}
	for _, need := range bad {
		if _, err := l.Create(ctx, "requester", need); !errors.Is(err, ErrInvalidNeed) {
			t.Errorf("Create(%+v): got %v, want %v", need, err, ErrInvalidNeed)
		}
	}

	anyGroup := &Need{PatientName: "P", Hospital: "H", AnyGroupAccepted: true, UnitsNeeded: 1}
	if _, err := l.Create(ctx, "requester", anyGroup); err != nil {
		t.Errorf("Any-group request without a blood group rejected: %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	req, err := l.Create(ctx, "requester", validNeed())
	if err != nil {
		t.Fatalf("Unexpected error from Create: %v", err)
	}
	if req.Status != dbtypes.StatusReceived || req.UnitsDonated != 0 || req.ID == "" {
		t.Fatalf("Bad new request: %+v", req)
	}

	if _, err := l.SetStatus(ctx, &dbtypes.User{ID: "requester"}, req.ID, dbtypes.StatusAccepted); !errors.Is(err, identity.ErrPermissionDenied) {
		t.Fatalf("Non-reviewer changed status; got %v", err)
	}

	if _, err := l.SetStatus(ctx, reviewer, req.ID, dbtypes.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("received -> completed allowed; got %v", err)
	}

	for i := 0; i < 2; i++ {
		req, err = l.SetStatus(ctx, reviewer, req.ID, dbtypes.StatusAccepted)
		if err != nil {
			t.Fatalf("Unexpected error accepting (attempt %d): %v", i, err)
		}
	}

	req, err = l.RecordUnitsDonated(ctx, req.ID, 1)
	if err != nil {
		t.Fatalf("Unexpected error from RecordUnitsDonated: %v", err)
	}
	if req.UnitsDonated != 1 || req.Status != dbtypes.StatusAccepted {
		t.Fatalf("Bad request after one unit: units=%d status=%q", req.UnitsDonated, req.Status)
	}

	// The counter never goes backwards.
	req, err = l.RecordUnitsDonated(ctx, req.ID, 0)
	if err != nil {
		t.Fatalf("Unexpected error from RecordUnitsDonated: %v", err)
	}
	if req.UnitsDonated != 1 {
		t.Fatalf("Counter decreased to %d", req.UnitsDonated)
	}

	req, err = l.RecordUnitsDonated(ctx, req.ID, 5)
	if err != nil {
		t.Fatalf("Unexpected error from RecordUnitsDonated: %v", err)
	}
	if req.UnitsDonated != 2 || req.Status != dbtypes.StatusCompleted {
		t.Fatalf("Bad request after target met: units=%d status=%q", req.UnitsDonated, req.Status)
	}

	got, err := l.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Unexpected error from Get: %v", err)
	}
	if got.Status != dbtypes.StatusCompleted || got.UnitsDonated != 2 {
		t.Errorf("Stored request differs: %+v", got)
	}
}

func TestRejectedIsTerminal(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	req, err := l.Create(ctx, "requester", validNeed())
	if err != nil {
		t.Fatalf("Unexpected error from Create: %v", err)
	}
	if _, err := l.SetStatus(ctx, reviewer, req.ID, dbtypes.StatusRejected); err != nil {
		t.Fatalf("Unexpected error rejecting: %v", err)
	}
	if _, err := l.SetStatus(ctx, reviewer, req.ID, dbtypes.StatusAccepted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("rejected -> accepted allowed; got %v", err)
	}
	if _, err := l.RecordUnitsDonated(ctx, req.ID, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Units recorded on rejected request; got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if _, err := l.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get: got %v, want %v", err, store.ErrNotFound)
	}
	if _, err := l.SetStatus(ctx, reviewer, "missing", dbtypes.StatusAccepted); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetStatus: got %v, want %v", err, store.ErrNotFound)
	}
	if _, err := l.RecordUnitsDonated(ctx, "missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RecordUnitsDonated: got %v, want %v", err, store.ErrNotFound)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	a, err := l.Create(ctx, "r1", validNeed())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := l.Create(ctx, "r2", validNeed()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := l.SetStatus(ctx, reviewer, a.ID, dbtypes.StatusAccepted); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	all, err := l.List(ctx, "")
	if err != nil {
		t.Fatalf("Unexpected error from List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Bad count of all requests; got %d, want 2", len(all))
	}

	accepted, err := l.List(ctx, dbtypes.StatusAccepted)
	if err != nil {
		t.Fatalf("Unexpected error from List: %v", err)
	}
	if len(accepted) != 1 || accepted[0].ID != a.ID {
		t.Errorf("Bad accepted list: %+v", accepted)
	}
}
