// Package fsstore implements store.Store on Cloud Firestore.
//
// Collections:
//
//	Requests/{id}
//	Requests/{id}/Donations/{donorID}
//	Donors/{userID}
//	DonorEmails/{email}    (uniqueness claim)
//	Users/{id}
//	UserEmails/{email}     (uniqueness claim)
//	Sessions/{auto}
package fsstore

import (
	"context"
	"errors"
	"fmt"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Store struct {
	firestoreClient *firestore.Client
}

var _ store.Store = (*Store)(nil)

func New(firestoreClient *firestore.Client) *Store {
	return &Store{
		firestoreClient: firestoreClient,
	}
}

func (s *Store) Close() error {
	return s.firestoreClient.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	iter := s.firestoreClient.Collection("Requests").Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("while querying requests: %w", err)
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, txn store.Txn) error) error {
	err := s.firestoreClient.RunTransaction(ctx, func(ctx context.Context, ftxn *firestore.Transaction) error {
		return fn(ctx, &txn{client: s.firestoreClient, ftxn: ftxn})
	})
	return mapError(err)
}

// mapError translates gRPC status codes surfaced by Firestore into store
// errors, leaving errors that already carry a store error alone.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAlreadyExists) || errors.Is(err, store.ErrConcurrencyConflict) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%v: %w", err, store.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%v: %w", err, store.ErrAlreadyExists)
	case codes.Aborted:
		return fmt.Errorf("%v: %w", err, store.ErrConcurrencyConflict)
	}
	return err
}

type txn struct {
	client *firestore.Client
	ftxn   *firestore.Transaction
}

func (t *txn) get(ref *firestore.DocumentRef, out interface{}) error {
	snap, err := t.ftxn.Get(ref)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", ref.Path, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("while reading %s: %w", ref.Path, err)
	}
	if err := snap.DataTo(out); err != nil {
		return fmt.Errorf("while unmarshaling %s: %w", ref.Path, err)
	}
	return nil
}

// all runs q inside the transaction, calling newItem to allocate the
// destination for each document.
func (t *txn) all(q firestore.Queryer, newItem func() interface{}) error {
	iter := t.ftxn.Documents(q)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("while iterating query: %w", err)
		}
		if err := snap.DataTo(newItem()); err != nil {
			return fmt.Errorf("while unmarshaling %s: %w", snap.Ref.Path, err)
		}
	}
	return nil
}

func emailDocID(email string) string {
	return store.NormalizeEmail(email)
}

func (t *txn) requests() *firestore.CollectionRef {
	return t.client.Collection("Requests")
}

func (t *txn) GetRequest(id string) (*dbtypes.Request, error) {
	r := &dbtypes.Request{}
	if err := t.get(t.requests().Doc(id), r); err != nil {
		return nil, err
	}
	return r, nil
}

func (t *txn) ListRequests(status dbtypes.RequestStatus) ([]*dbtypes.Request, error) {
	var q firestore.Queryer = t.requests()
	if status != "" {
		q = t.requests().Where("status", "==", string(status))
	}

	var out []*dbtypes.Request
	err := t.all(q, func() interface{} {
		r := &dbtypes.Request{}
		out = append(out, r)
		return r
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *txn) CreateRequest(r *dbtypes.Request) error {
	ref := t.requests().NewDoc()
	r.ID = ref.ID
	if err := t.ftxn.Create(ref, r); err != nil {
		return fmt.Errorf("while creating request: %w", err)
	}
	return nil
}

func (t *txn) UpdateRequest(r *dbtypes.Request) error {
	// Callers always read the request earlier in the same transaction, so a
	// plain Set cannot resurrect a deleted document.
	if err := t.ftxn.Set(t.requests().Doc(r.ID), r); err != nil {
		return fmt.Errorf("while updating request %s: %w", r.ID, err)
	}
	return nil
}

func (t *txn) GetDonor(id string) (*dbtypes.Donor, error) {
	d := &dbtypes.Donor{}
	if err := t.get(t.client.Collection("Donors").Doc(id), d); err != nil {
		return nil, err
	}
	return d, nil
}

type emailClaim struct {
	OwnerID string `firestore:"ownerID"`
}

func (t *txn) CreateDonor(d *dbtypes.Donor) error {
	// Both creates fail the commit with AlreadyExists if the document is
	// already there, which mapError turns into store.ErrAlreadyExists.
	if err := t.ftxn.Create(t.client.Collection("DonorEmails").Doc(emailDocID(d.Email)), &emailClaim{OwnerID: d.ID}); err != nil {
		return fmt.Errorf("while claiming donor email: %w", err)
	}
	if err := t.ftxn.Create(t.client.Collection("Donors").Doc(d.ID), d); err != nil {
		return fmt.Errorf("while creating donor: %w", err)
	}
	return nil
}

func (t *txn) UpdateDonor(d *dbtypes.Donor) error {
	if err := t.ftxn.Set(t.client.Collection("Donors").Doc(d.ID), d); err != nil {
		return fmt.Errorf("while updating donor %s: %w", d.ID, err)
	}
	return nil
}

func (t *txn) donations(requestID string) *firestore.CollectionRef {
	return t.requests().Doc(requestID).Collection("Donations")
}

func (t *txn) GetDonation(requestID, donationID string) (*dbtypes.Donation, error) {
	d := &dbtypes.Donation{}
	if err := t.get(t.donations(requestID).Doc(donationID), d); err != nil {
		return nil, err
	}
	return d, nil
}

func (t *txn) ListDonations(requestID string) ([]*dbtypes.Donation, error) {
	var out []*dbtypes.Donation
	err := t.all(t.donations(requestID), func() interface{} {
		d := &dbtypes.Donation{}
		out = append(out, d)
		return d
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *txn) PutDonation(d *dbtypes.Donation) error {
	if err := t.ftxn.Set(t.donations(d.RequestID).Doc(d.ID), d); err != nil {
		return fmt.Errorf("while writing donation %s/%s: %w", d.RequestID, d.ID, err)
	}
	return nil
}

func (t *txn) GetUser(id string) (*dbtypes.User, error) {
	u := &dbtypes.User{}
	if err := t.get(t.client.Collection("Users").Doc(id), u); err != nil {
		return nil, err
	}
	return u, nil
}

// FindUserByEmail resolves the email through its uniqueness claim, so lookups
// ignore case the same way claims do.
func (t *txn) FindUserByEmail(email string) (*dbtypes.User, error) {
	claim := &emailClaim{}
	if err := t.get(t.client.Collection("UserEmails").Doc(emailDocID(email)), claim); err != nil {
		return nil, fmt.Errorf("while looking up user with email %q: %w", email, err)
	}
	return t.GetUser(claim.OwnerID)
}

func (t *txn) CreateUser(u *dbtypes.User) error {
	ref := t.client.Collection("Users").NewDoc()
	if u.ID != "" {
		ref = t.client.Collection("Users").Doc(u.ID)
	}
	u.ID = ref.ID

	if err := t.ftxn.Create(t.client.Collection("UserEmails").Doc(emailDocID(u.Email)), &emailClaim{OwnerID: u.ID}); err != nil {
		return fmt.Errorf("while claiming user email: %w", err)
	}
	if err := t.ftxn.Create(ref, u); err != nil {
		return fmt.Errorf("while creating user: %w", err)
	}
	return nil
}

func (t *txn) sessionRef(cookie string) (*firestore.DocumentRef, *dbtypes.Session, error) {
	iter := t.ftxn.Documents(t.client.Collection("Sessions").Where("cookie", "==", cookie).Limit(1))
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil, fmt.Errorf("session: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("while looking up session: %w", err)
	}

	session := &dbtypes.Session{}
	if err := snap.DataTo(session); err != nil {
		return nil, nil, fmt.Errorf("while unmarshaling session: %w", err)
	}
	return snap.Ref, session, nil
}

func (t *txn) FindSession(cookie string) (*dbtypes.Session, error) {
	_, session, err := t.sessionRef(cookie)
	return session, err
}

func (t *txn) CreateSession(s *dbtypes.Session) error {
	if err := t.ftxn.Create(t.client.Collection("Sessions").NewDoc(), s); err != nil {
		return fmt.Errorf("while storing session: %w", err)
	}
	return nil
}

func (t *txn) DeleteSession(cookie string) error {
	ref, _, err := t.sessionRef(cookie)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := t.ftxn.Delete(ref); err != nil {
		return fmt.Errorf("while deleting session: %w", err)
	}
	return nil
}
