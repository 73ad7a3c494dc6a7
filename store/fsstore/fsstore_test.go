package fsstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/eligibility"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/store"

	"cloud.google.com/go/firestore"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// openEmulatorStore connects to the Firestore emulator named by
// FIRESTORE_EMULATOR_HOST, using a fresh project so tests never see each
// other's documents.
func openEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}

	client, err := firestore.NewClient(context.Background(), "test-"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("Unexpected error creating firestore client: %v", err)
	}
	s := New(client)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEmailClaims(t *testing.T) {
	s := openEmulatorStore(t)
	ctx := context.Background()

	createDonor := func(d *dbtypes.Donor) error {
		return s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
			return txn.CreateDonor(d)
		})
	}
	if err := createDonor(&dbtypes.Donor{ID: "u1", Email: "Donor@Example.com", BloodGroup: "O+"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := createDonor(&dbtypes.Donor{ID: "u2", Email: "donor@example.com", BloodGroup: "O+"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("Duplicate donor email accepted; got %v", err)
	}

	user := &dbtypes.User{Email: "Alice@Example.com", DisplayName: "Alice"}
	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.CreateUser(user)
	})
	if err != nil {
		t.Fatalf("Unexpected error creating user: %v", err)
	}
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.CreateUser(&dbtypes.User{Email: "alice@example.com"})
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("Duplicate user email accepted; got %v", err)
	}

	var got *dbtypes.User
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		got, err = txn.FindUserByEmail("ALICE@example.com")
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error finding user: %v", err)
	}
	if diff := cmp.Diff(got, user); diff != "" {
		t.Errorf("Bad user; diff (-got +want)\n%s", diff)
	}
}

func TestConcurrentCompletionsRecount(t *testing.T) {
	s := openEmulatorStore(t)
	ctx := context.Background()
	now := func() time.Time { return time.Date(2024, time.June, 14, 9, 0, 0, 0, time.UTC) }

	l := ledger.New(s, now)
	c := coordinator.New(s, eligibility.DefaultPolicy(), now)
	reviewer := &dbtypes.User{ID: "reviewer", Roles: []string{dbtypes.RoleReviewer}}

	req, err := l.Create(ctx, "requester", &ledger.Need{PatientName: "P", Hospital: "H", BloodGroup: "B+", UnitsNeeded: 2})
	if err != nil {
		t.Fatalf("Unexpected error from Create: %v", err)
	}
	if _, err := l.SetStatus(ctx, reviewer, req.ID, dbtypes.StatusAccepted); err != nil {
		t.Fatalf("Unexpected error from SetStatus: %v", err)
	}

	donors := []string{"d1", "d2"}
	donations := map[string]*dbtypes.Donation{}
	for _, id := range donors {
		err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
			return txn.CreateDonor(&dbtypes.Donor{ID: id, Email: id + "@example.com", BloodGroup: "B+"})
		})
		if err != nil {
			t.Fatalf("Unexpected error creating donor %s: %v", id, err)
		}
		d, err := c.Initiate(ctx, req.ID, id)
		if err != nil {
			t.Fatalf("Unexpected error from Initiate: %v", err)
		}
		if _, err := c.SubmitDonorCode(ctx, req.ID, d.ID, d.DonorOTP, "requester"); err != nil {
			t.Fatalf("Unexpected error from SubmitDonorCode: %v", err)
		}
		donations[id] = d
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range donors {
		id := id
		g.Go(func() error {
			d := donations[id]
			_, err := c.SubmitRequesterCode(gctx, req.ID, d.ID, d.RequesterOTP, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Unexpected error from concurrent completion: %v", err)
	}

	got, err := l.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Unexpected error from Get: %v", err)
	}
	if got.UnitsDonated != 2 || got.Status != dbtypes.StatusCompleted {
		t.Errorf("Lost update; got units=%d status=%q, want units=2 status=%q", got.UnitsDonated, got.Status, dbtypes.StatusCompleted)
	}
}
