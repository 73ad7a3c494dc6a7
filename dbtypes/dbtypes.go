// Package dbtypes holds the entities persisted in the document store.
package dbtypes

import (
	"time"
)

// User represents a person registered and interacting with the application.
//
// A user may be a requester, a donor, a reviewer, or any combination.
type User struct {
	ID           string   `firestore:"id"`
	Email        string   `firestore:"email"`
	DisplayName  string   `firestore:"displayName"`
	PasswordHash string   `firestore:"passwordHash"`
	Roles        []string `firestore:"roles"`
}

// RoleReviewer may move requests through their status lifecycle.
const RoleReviewer = "reviewer"

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session represents a log-in session for a User.
type Session struct {
	Cookie  string    `firestore:"cookie"`
	UserID  string    `firestore:"userID"`
	Expires time.Time `firestore:"expires"`
}

type RequestStatus string

const (
	StatusReceived  RequestStatus = "received"
	StatusAccepted  RequestStatus = "accepted"
	StatusRejected  RequestStatus = "rejected"
	StatusCompleted RequestStatus = "completed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further status change is possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// BloodGroups lists the accepted blood group spellings.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func ValidBloodGroup(g string) bool {
	for _, bg := range BloodGroups {
		if bg == g {
			return true
		}
	}
	return false
}

// Request is a single posted need for blood.
type Request struct {
	ID          string `firestore:"id"`
	RequesterID string `firestore:"requesterID"`

	// Patient details are carried for display only.
	PatientName   string `firestore:"patientName"`
	PatientAge    int64  `firestore:"patientAge"`
	PatientGender string `firestore:"patientGender"`
	Hospital      string `firestore:"hospital"`
	Reason        string `firestore:"reason"`

	BloodGroup       string `firestore:"bloodGroup"`
	AnyGroupAccepted bool   `firestore:"anyGroupAccepted"`

	UnitsNeeded  int64 `firestore:"unitsNeeded"`
	UnitsDonated int64 `firestore:"unitsDonated"`

	Status RequestStatus `firestore:"status"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`

	// Set by the poller once the requester has been told the request was
	// fulfilled.
	CompletionNotified bool `firestore:"completionNotified"`
}

// Donor is a person registered as willing to donate.  The ID is the
// identity-provider user ID of the registering user.
type Donor struct {
	ID         string `firestore:"id"`
	Email      string `firestore:"email"`
	Name       string `firestore:"name"`
	Phone      string `firestore:"phone"`
	City       string `firestore:"city"`
	BloodGroup string `firestore:"bloodGroup"`

	// Nil if the donor has never completed a donation through the platform.
	LastDonationDate *time.Time `firestore:"lastDonationDate"`

	CreatedAt time.Time `firestore:"createdAt"`
}

type DonationState string

const (
	DonationPending            DonationState = "pending"
	DonationDonorConfirmed     DonationState = "donor-confirmed"
	DonationRequesterConfirmed DonationState = "requester-confirmed"
	DonationComplete           DonationState = "complete"
	DonationCancelled          DonationState = "cancelled"
)

// Donation is one donor's attempt to fulfill part of one Request.  It is
// stored under its Request, keyed by the donor ID.
type Donation struct {
	ID        string `firestore:"id"`
	RequestID string `firestore:"requestID"`
	DonorID   string `firestore:"donorID"`

	// DonorOTP is generated for the donor, who hands it to the requester.
	DonorOTP string `firestore:"donorOTP"`
	// RequesterOTP is generated for the requester, who hands it to the donor.
	RequesterOTP string `firestore:"requesterOTP"`

	DonorSideVerified     bool `firestore:"donorSideVerified"`
	RequesterSideVerified bool `firestore:"requesterSideVerified"`

	CreatedAt    time.Time  `firestore:"createdAt"`
	CompletedAt  *time.Time `firestore:"completedAt"`
	CancelledAt  *time.Time `firestore:"cancelledAt"`
	CancelReason string     `firestore:"cancelReason"`
}

func (d *Donation) State() DonationState {
	switch {
	case d.CancelledAt != nil:
		return DonationCancelled
	case d.DonorSideVerified && d.RequesterSideVerified:
		return DonationComplete
	case d.DonorSideVerified:
		return DonationDonorConfirmed
	case d.RequesterSideVerified:
		return DonationRequesterConfirmed
	}
	return DonationPending
}

// Active reports whether the donation still blocks a new one for the same
// donor and request.
func (d *Donation) Active() bool {
	return d.CancelledAt == nil
}
