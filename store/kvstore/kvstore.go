// Package kvstore implements store.Store on an embedded Badger database.
//
// Documents are protobuf messages (see records.go) filed under a key prefix
// per collection.  Badger's optimistic transactions track every key read, so
// a commit fails with ErrConflict when a concurrently committed transaction
// wrote something this one read.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store"

	"github.com/dgraph-io/badger"
	"github.com/google/uuid"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Key prefixes that denote the different collections.
const (
	prefixRequest    = "requests/"
	prefixDonor      = "donors/"
	prefixDonorEmail = "donor-emails/"
	prefixDonation   = "donations/"
	prefixUser       = "users/"
	prefixUserEmail  = "user-emails/"
	prefixSession    = "sessions/"
)

// DefaultMaxAttempts is how many times RunTransaction tries a transaction
// before giving up with store.ErrConcurrencyConflict.
const DefaultMaxAttempts = 5

type Store struct {
	db          *badger.DB
	maxAttempts int
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if necessary) a Badger database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = &slogLogger{}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("while opening badger database in %s: %w", dir, err)
	}
	return &Store{db: db, maxAttempts: DefaultMaxAttempts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, txn store.Txn) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		btxn := s.db.NewTransaction(true)
		if err := fn(ctx, &txn{btxn: btxn}); err != nil {
			btxn.Discard()
			return err
		}

		err := btxn.Commit()
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			slog.InfoContext(ctx, "Retrying conflicted transaction", slog.Int("attempt", attempt))
			continue
		}
		return fmt.Errorf("while committing transaction: %w", err)
	}

	return fmt.Errorf("after %d attempts: %w", s.maxAttempts, store.ErrConcurrencyConflict)
}

type txn struct {
	btxn *badger.Txn
}

// get reads key and decodes it as the named record.
func (t *txn) get(key string, name protoreflect.Name) (record, error) {
	item, err := t.btxn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, fmt.Errorf("%s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return record{}, fmt.Errorf("while reading %s: %w", key, err)
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return record{}, fmt.Errorf("while copying value of %s: %w", key, err)
	}

	r, err := unmarshalRecord(name, val)
	if err != nil {
		return record{}, fmt.Errorf("while unmarshaling %s %s: %w", name, key, err)
	}
	return r, nil
}

func (t *txn) exists(key string) (bool, error) {
	_, err := t.btxn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("while reading %s: %w", key, err)
	}
	return true, nil
}

func (t *txn) set(key string, r record) error {
	val, err := r.marshal()
	if err != nil {
		return fmt.Errorf("while marshaling %s: %w", key, err)
	}
	if err := t.btxn.Set([]byte(key), val); err != nil {
		return fmt.Errorf("while writing %s: %w", key, err)
	}
	return nil
}

// scan decodes every value under prefix as the named record.
func (t *txn) scan(prefix string, name protoreflect.Name, fn func(r record)) error {
	it := t.btxn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("while copying value of %s: %w", item.Key(), err)
		}
		r, err := unmarshalRecord(name, val)
		if err != nil {
			return fmt.Errorf("while unmarshaling %s %s: %w", name, item.Key(), err)
		}
		fn(r)
	}
	return nil
}

func emailKey(prefix, email string) string {
	return prefix + store.NormalizeEmail(email)
}

func (t *txn) GetRequest(id string) (*dbtypes.Request, error) {
	r, err := t.get(prefixRequest+id, "Request")
	if err != nil {
		return nil, err
	}
	return r.request(), nil
}

func (t *txn) ListRequests(status dbtypes.RequestStatus) ([]*dbtypes.Request, error) {
	var out []*dbtypes.Request
	err := t.scan(prefixRequest, "Request", func(r record) {
		req := r.request()
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *txn) CreateRequest(r *dbtypes.Request) error {
	r.ID = uuid.NewString()
	return t.set(prefixRequest+r.ID, requestRecord(r))
}

func (t *txn) UpdateRequest(r *dbtypes.Request) error {
	ok, err := t.exists(prefixRequest + r.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("request %s: %w", r.ID, store.ErrNotFound)
	}
	return t.set(prefixRequest+r.ID, requestRecord(r))
}

func (t *txn) GetDonor(id string) (*dbtypes.Donor, error) {
	r, err := t.get(prefixDonor+id, "Donor")
	if err != nil {
		return nil, err
	}
	return r.donor(), nil
}

func (t *txn) CreateDonor(d *dbtypes.Donor) error {
	for _, key := range []string{prefixDonor + d.ID, emailKey(prefixDonorEmail, d.Email)} {
		ok, err := t.exists(key)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%s: %w", key, store.ErrAlreadyExists)
		}
	}

	if err := t.set(emailKey(prefixDonorEmail, d.Email), emailClaimRecord(d.ID)); err != nil {
		return err
	}
	return t.set(prefixDonor+d.ID, donorRecord(d))
}

func (t *txn) UpdateDonor(d *dbtypes.Donor) error {
	ok, err := t.exists(prefixDonor + d.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("donor %s: %w", d.ID, store.ErrNotFound)
	}
	return t.set(prefixDonor+d.ID, donorRecord(d))
}

func donationKey(requestID, donationID string) string {
	return prefixDonation + requestID + "/" + donationID
}

func (t *txn) GetDonation(requestID, donationID string) (*dbtypes.Donation, error) {
	r, err := t.get(donationKey(requestID, donationID), "Donation")
	if err != nil {
		return nil, err
	}
	return r.donation(), nil
}

func (t *txn) ListDonations(requestID string) ([]*dbtypes.Donation, error) {
	var out []*dbtypes.Donation
	err := t.scan(prefixDonation+requestID+"/", "Donation", func(r record) {
		out = append(out, r.donation())
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *txn) PutDonation(d *dbtypes.Donation) error {
	return t.set(donationKey(d.RequestID, d.ID), donationRecord(d))
}

func (t *txn) GetUser(id string) (*dbtypes.User, error) {
	r, err := t.get(prefixUser+id, "User")
	if err != nil {
		return nil, err
	}
	return r.user(), nil
}

func (t *txn) FindUserByEmail(email string) (*dbtypes.User, error) {
	claim, err := t.get(emailKey(prefixUserEmail, email), "EmailClaim")
	if err != nil {
		return nil, err
	}
	return t.GetUser(claim.getString("owner_id"))
}

func (t *txn) CreateUser(u *dbtypes.User) error {
	ok, err := t.exists(emailKey(prefixUserEmail, u.Email))
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("user with email %q: %w", u.Email, store.ErrAlreadyExists)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := t.set(emailKey(prefixUserEmail, u.Email), emailClaimRecord(u.ID)); err != nil {
		return err
	}
	return t.set(prefixUser+u.ID, userRecord(u))
}

func (t *txn) FindSession(cookie string) (*dbtypes.Session, error) {
	r, err := t.get(prefixSession+cookie, "Session")
	if err != nil {
		return nil, err
	}
	return r.session(), nil
}

func (t *txn) CreateSession(s *dbtypes.Session) error {
	return t.set(prefixSession+s.Cookie, sessionRecord(s))
}

func (t *txn) DeleteSession(cookie string) error {
	if err := t.btxn.Delete([]byte(prefixSession + cookie)); err != nil {
		return fmt.Errorf("while deleting session: %w", err)
	}
	return nil
}

// slogLogger routes Badger's internal logging into slog.
type slogLogger struct{}

func (l *slogLogger) Errorf(format string, args ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *slogLogger) Warningf(format string, args ...interface{}) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *slogLogger) Infof(format string, args ...interface{}) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *slogLogger) Debugf(format string, args ...interface{}) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}
