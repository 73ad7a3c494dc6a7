package coordinator

import (
	"time"

	"kurudhi-koodai/dbtypes"
)

// View is a donation as one participant may see it.  Each party only ever
// sees the code they are supposed to hand to the other party.
type View struct {
	RequestID             string                `json:"requestId"`
	DonationID            string                `json:"donationId"`
	DonorID               string                `json:"donorId"`
	State                 dbtypes.DonationState `json:"state"`
	DonorSideVerified     bool                  `json:"donorSideVerified"`
	RequesterSideVerified bool                  `json:"requesterSideVerified"`
	CodeToShare           string                `json:"codeToShare,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	CompletedAt           *time.Time            `json:"completedAt,omitempty"`
	CancelReason          string                `json:"cancelReason,omitempty"`
}

func ViewFor(d *dbtypes.Donation, req *dbtypes.Request, viewerID string) View {
	v := View{
		RequestID:             d.RequestID,
		DonationID:            d.ID,
		DonorID:               d.DonorID,
		State:                 d.State(),
		DonorSideVerified:     d.DonorSideVerified,
		RequesterSideVerified: d.RequesterSideVerified,
		CreatedAt:             d.CreatedAt,
		CompletedAt:           d.CompletedAt,
		CancelReason:          d.CancelReason,
	}

	if v.State == dbtypes.DonationCancelled || v.State == dbtypes.DonationComplete {
		return v
	}
	switch viewerID {
	case d.DonorID:
		v.CodeToShare = d.DonorOTP
	case req.RequesterID:
		v.CodeToShare = d.RequesterOTP
	}
	return v
}
