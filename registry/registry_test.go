package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store/kvstore"

	"github.com/google/go-cmp/cmp"
)

func newTestRegistry(t *testing.T, now time.Time) *Registry {
	t.Helper()
	s, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, "", func() time.Time { return now })
}

func TestNormalizePhone(t *testing.T) {
	r := newTestRegistry(t, time.Now())

	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "98765 43210", want: "+919876543210"},
		{in: "+91 98765-43210", want: "+919876543210"},
		{in: "098765 43210", want: "+919876543210"},
		{in: "12345", wantErr: true},
		{in: "not a number", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := r.NormalizePhone(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRegistration) {
					t.Errorf("Bad error; got %v, want %v", err, ErrInvalidRegistration)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Bad normalized phone; got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC)
	r := newTestRegistry(t, now)

	user := &dbtypes.User{ID: "u1", Email: "arun@example.com"}
	donor, err := r.Register(ctx, user, &Registration{
		Name:       " Arun ",
		Phone:      "98765 43210",
		City:       "Madurai",
		BloodGroup: "O-",
	})
	if err != nil {
		t.Fatalf("Unexpected error from Register: %v", err)
	}

	want := &dbtypes.Donor{
		ID:         "u1",
		Email:      "arun@example.com",
		Name:       "Arun",
		Phone:      "+919876543210",
		City:       "Madurai",
		BloodGroup: "O-",
		CreatedAt:  now,
	}
	if diff := cmp.Diff(want, donor); diff != "" {
		t.Errorf("Bad donor (-want +got):\n%s", diff)
	}

	got, err := r.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Unexpected error from Get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Bad stored donor (-want +got):\n%s", diff)
	}
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC))

	valid := Registration{Name: "Arun", Phone: "98765 43210", BloodGroup: "B+"}
	if _, err := r.Register(ctx, &dbtypes.User{ID: "u1", Email: "arun@example.com"}, &valid); err != nil {
		t.Fatalf("Unexpected error from Register: %v", err)
	}

	testCases := []struct {
		desc    string
		user    *dbtypes.User
		reg     Registration
		wantErr error
	}{
		{
			desc:    "same account twice",
			user:    &dbtypes.User{ID: "u1", Email: "arun2@example.com"},
			reg:     valid,
			wantErr: ErrAlreadyRegistered,
		},
		{
			desc:    "email already used by another donor",
			user:    &dbtypes.User{ID: "u2", Email: "arun@example.com"},
			reg:     valid,
			wantErr: ErrAlreadyRegistered,
		},
		{
			desc:    "unknown blood group",
			user:    &dbtypes.User{ID: "u3", Email: "c@example.com"},
			reg:     Registration{Name: "C", Phone: "98765 43210", BloodGroup: "C+"},
			wantErr: ErrInvalidRegistration,
		},
		{
			desc:    "missing name",
			user:    &dbtypes.User{ID: "u4", Email: "d@example.com"},
			reg:     Registration{Phone: "98765 43210", BloodGroup: "A+"},
			wantErr: ErrInvalidRegistration,
		},
		{
			desc:    "bad phone",
			user:    &dbtypes.User{ID: "u5", Email: "e@example.com"},
			reg:     Registration{Name: "E", Phone: "42", BloodGroup: "A+"},
			wantErr: ErrInvalidRegistration,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := r.Register(ctx, tc.user, &tc.reg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Bad error; got %v, want %v", err, tc.wantErr)
			}
		})
	}
}
