package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store"

	"github.com/dgraph-io/badger"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDonorEmailUnique(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	create := func(d *dbtypes.Donor) error {
		return s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
			return txn.CreateDonor(d)
		})
	}

	if err := create(&dbtypes.Donor{ID: "u1", Email: "Donor@Example.com"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := create(&dbtypes.Donor{ID: "u2", Email: "donor@example.com"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("Duplicate email accepted; got %v", err)
	}
	if err := create(&dbtypes.Donor{ID: "u1", Email: "other@example.com"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("Duplicate donor ID accepted; got %v", err)
	}
}

func TestFailedTransactionWritesNothing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		if err := txn.CreateRequest(&dbtypes.Request{PatientName: "P"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Bad error; got %v, want %v", err, boom)
	}

	var reqs []*dbtypes.Request
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		reqs, err = txn.ListRequests("")
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("Aborted transaction left %d request(s)", len(reqs))
	}
}

func TestDonationsScopedToRequest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		for _, d := range []*dbtypes.Donation{
			{ID: "d1", RequestID: "r1", DonorID: "d1", CreatedAt: created},
			{ID: "d2", RequestID: "r1", DonorID: "d2", CreatedAt: created},
			{ID: "d1", RequestID: "r10", DonorID: "d1", CreatedAt: created},
		} {
			if err := txn.PutDonation(d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got []*dbtypes.Donation
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		got, err = txn.ListDonations("r1")
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var ids []string
	for _, d := range got {
		ids = append(ids, d.RequestID+"/"+d.ID)
	}
	if diff := cmp.Diff(ids, []string{"r1/d1", "r1/d2"}); diff != "" {
		t.Errorf("Bad donations for r1; diff (-got +want)\n%s", diff)
	}
}

func TestSessions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	session := &dbtypes.Session{Cookie: "abc/def=", UserID: "u1", Expires: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.CreateSession(session)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got *dbtypes.Session
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		got, err = txn.FindSession(session.Cookie)
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, session); diff != "" {
		t.Errorf("Bad session; diff (-got +want)\n%s", diff)
	}

	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.DeleteSession(session.Cookie)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		_, err := txn.FindSession(session.Cookie)
		return err
	})
	if !store.IsNotFound(err) {
		t.Errorf("Deleted session still found; got %v", err)
	}
}

func TestConflictSurfacesAfterRetries(t *testing.T) {
	s := openStore(t)
	s.maxAttempts = 1
	ctx := context.Background()

	req := &dbtypes.Request{PatientName: "P", UnitsNeeded: 1}
	if err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error { return txn.CreateRequest(req) }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		r, err := txn.GetRequest(req.ID)
		if err != nil {
			return err
		}

		// A concurrent writer commits between our read and our commit.
		err = s.RunTransaction(ctx, func(ctx context.Context, inner store.Txn) error {
			other, err := inner.GetRequest(req.ID)
			if err != nil {
				return err
			}
			other.UnitsDonated = 1
			return inner.UpdateRequest(other)
		})
		if err != nil {
			return err
		}

		r.PatientName = "changed"
		return txn.UpdateRequest(r)
	})
	if !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Fatalf("Bad error; got %v, want %v", err, store.ErrConcurrencyConflict)
	}
}

func TestDonationStoredAsProtobuf(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 8, 30, 0, 123, time.UTC)
	completed := created.Add(26 * time.Hour)
	want := &dbtypes.Donation{
		ID:                    "donor",
		RequestID:             "r1",
		DonorID:               "donor",
		DonorOTP:              "012345",
		RequesterOTP:          "987654",
		DonorSideVerified:     true,
		RequesterSideVerified: true,
		CreatedAt:             created,
		CompletedAt:           &completed,
	}
	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.PutDonation(want)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got *dbtypes.Donation
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		got, err = txn.GetDonation("r1", "donor")
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad donation; diff (-got +want)\n%s", diff)
	}

	var raw []byte
	err = s.db.View(func(btxn *badger.Txn) error {
		item, err := btxn.Get([]byte(donationKey("r1", "donor")))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error reading raw value: %v", err)
	}

	md := recordsFile.Messages().ByName("Donation")
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(raw, msg); err != nil {
		t.Fatalf("Stored value is not a Donation message: %v", err)
	}
	if got := msg.Get(md.Fields().ByName("donor_otp")).String(); got != "012345" {
		t.Errorf("Bad donor_otp in stored message; got %q, want %q", got, "012345")
	}
	if msg.Has(md.Fields().ByName("cancelled_at")) {
		t.Errorf("Unset cancelled_at present in stored message")
	}
}

func TestUserRoundTripAndEmailLookup(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	want := &dbtypes.User{Email: "Alice@Example.com", DisplayName: "Alice", PasswordHash: "hash", Roles: []string{dbtypes.RoleReviewer}}
	err := s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.CreateUser(want)
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got *dbtypes.User
	err = s.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		got, err = txn.FindUserByEmail(" alice@example.COM")
		return err
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad user; diff (-got +want)\n%s", diff)
	}
}
