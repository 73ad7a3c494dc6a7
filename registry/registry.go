// Package registry registers users as blood donors.
//
// A user has at most one donor record, keyed by their user ID, and an email
// belongs to at most one donor.  Both are enforced by the store inside the
// registering transaction rather than by a lookup beforehand.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store"

	"github.com/ttacon/libphonenumber"
)

// DefaultRegion is used to interpret phone numbers written without a country
// code.
const DefaultRegion = "IN"

var (
	ErrAlreadyRegistered   = errors.New("a donor is already registered for this account or email")
	ErrInvalidRegistration = errors.New("invalid donor registration")
)

type Registration struct {
	Name       string
	Phone      string
	City       string
	BloodGroup string
}

type Registry struct {
	store  store.Store
	region string
	now    func() time.Time
}

func New(s store.Store, region string, now func() time.Time) *Registry {
	if region == "" {
		region = DefaultRegion
	}
	return &Registry{
		store:  s,
		region: region,
		now:    now,
	}
}

// NormalizePhone parses phone in the registry's default region and returns it
// in E.164 form.
func (r *Registry) NormalizePhone(phone string) (string, error) {
	num, err := libphonenumber.Parse(phone, r.region)
	if err != nil {
		return "", fmt.Errorf("while parsing phone number %q: %v: %w", phone, err, ErrInvalidRegistration)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("phone number %q is not valid: %w", phone, ErrInvalidRegistration)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// Register creates the donor record for user.
func (r *Registry) Register(ctx context.Context, user *dbtypes.User, reg *Registration) (*dbtypes.Donor, error) {
	if strings.TrimSpace(reg.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", ErrInvalidRegistration)
	}
	if !dbtypes.ValidBloodGroup(reg.BloodGroup) {
		return nil, fmt.Errorf("unknown blood group %q: %w", reg.BloodGroup, ErrInvalidRegistration)
	}
	phone, err := r.NormalizePhone(reg.Phone)
	if err != nil {
		return nil, err
	}

	donor := &dbtypes.Donor{
		ID:         user.ID,
		Email:      user.Email,
		Name:       strings.TrimSpace(reg.Name),
		Phone:      phone,
		City:       strings.TrimSpace(reg.City),
		BloodGroup: reg.BloodGroup,
		CreatedAt:  r.now(),
	}
	err = r.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.CreateDonor(donor)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("while registering donor %s: %w", user.ID, err)
	}

	slog.InfoContext(ctx, "Registered donor", slog.String("donor", donor.ID), slog.String("bloodGroup", donor.BloodGroup))
	return donor, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*dbtypes.Donor, error) {
	var donor *dbtypes.Donor
	err := r.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		donor, err = txn.GetDonor(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while getting donor %s: %w", id, err)
	}
	return donor, nil
}
