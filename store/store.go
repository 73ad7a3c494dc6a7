// Package store defines the document-store collaborator the ledger,
// coordinator, registry and identity layers run against.
//
// All access goes through transactions.  Implementations must give
// serializable read-modify-write semantics: if two transactions read the same
// document and both write, at most one of them commits.  Like Firestore,
// callers must do all of their reads before their first write.
package store

import (
	"context"
	"errors"
	"strings"

	"kurudhi-koodai/dbtypes"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrConcurrencyConflict = errors.New("transaction lost a race with a concurrent update; retry")
)

// Store is a transactional document store.
type Store interface {
	// RunTransaction runs fn inside a transaction, retrying it on contention.
	// fn may therefore run more than once and must not have side effects
	// outside of txn.  If retries are exhausted the returned error matches
	// ErrConcurrencyConflict.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, txn Txn) error) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Txn is the set of document operations available inside a transaction.
//
// Getters return an error matching ErrNotFound when the document does not
// exist.
type Txn interface {
	GetRequest(id string) (*dbtypes.Request, error)
	// ListRequests lists requests with the given status, or all requests if
	// status is empty.
	ListRequests(status dbtypes.RequestStatus) ([]*dbtypes.Request, error)
	// CreateRequest assigns r.ID and stores r.
	CreateRequest(r *dbtypes.Request) error
	UpdateRequest(r *dbtypes.Request) error

	GetDonor(id string) (*dbtypes.Donor, error)
	// CreateDonor stores d under d.ID and claims d.Email.  Fails with
	// ErrAlreadyExists if either the ID or the email is taken.
	CreateDonor(d *dbtypes.Donor) error
	UpdateDonor(d *dbtypes.Donor) error

	GetDonation(requestID, donationID string) (*dbtypes.Donation, error)
	ListDonations(requestID string) ([]*dbtypes.Donation, error)
	// PutDonation creates or replaces a donation.  d.ID is the donor ID.
	PutDonation(d *dbtypes.Donation) error

	GetUser(id string) (*dbtypes.User, error)
	FindUserByEmail(email string) (*dbtypes.User, error)
	// CreateUser stores u under u.ID (assigned if empty).  Fails with
	// ErrAlreadyExists if the email is taken.
	CreateUser(u *dbtypes.User) error

	FindSession(cookie string) (*dbtypes.Session, error)
	CreateSession(s *dbtypes.Session) error
	DeleteSession(cookie string) error
}

// IsNotFound is shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NormalizeEmail is the form under which emails are claimed and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
