package api

import (
	"context"
	"net/http"

	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/dbtypes"
)

func (a *API) initiateHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()
	requestID := r.PathValue("id")

	donation, err := a.coordinator.Initiate(ctx, requestID, user.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	req, err := a.ledger.Get(ctx, requestID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, coordinator.ViewFor(donation, req, user.ID))
}

func (a *API) listDonationsHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()
	requestID := r.PathValue("id")

	req, err := a.ledger.Get(ctx, requestID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	donations, err := a.coordinator.ListForRequest(ctx, requestID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	views := []coordinator.View{}
	for _, d := range donations {
		views = append(views, coordinator.ViewFor(d, req, user.ID))
	}
	writeJSON(ctx, w, http.StatusOK, views)
}

type codeBody struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type outcomeView struct {
	Donation          coordinator.View `json:"donation"`
	Request           *requestView     `json:"request"`
	DonationCompleted bool             `json:"donationCompleted"`
	RequestCompleted  bool             `json:"requestCompleted"`
}

type submitFunc func(ctx context.Context, requestID, donationID, code, actorID string) (*coordinator.Outcome, error)

func (a *API) verifyDonorCodeHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	a.verify(w, r, user, a.coordinator.SubmitDonorCode)
}

func (a *API) verifyRequesterCodeHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	a.verify(w, r, user, a.coordinator.SubmitRequesterCode)
}

func (a *API) verify(w http.ResponseWriter, r *http.Request, user *dbtypes.User, submit submitFunc) {
	ctx := r.Context()

	body := &codeBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	out, err := submit(ctx, r.PathValue("id"), r.PathValue("donationID"), body.Code, user.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, &outcomeView{
		Donation:          coordinator.ViewFor(out.Donation, out.Request, user.ID),
		Request:           viewRequest(out.Request),
		DonationCompleted: out.DonationCompleted,
		RequestCompleted:  out.RequestCompleted,
	})
}

type cancelBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (a *API) cancelHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()
	requestID := r.PathValue("id")

	body := &cancelBody{}
	if err := a.decodeBody(w, r, body, true); err != nil {
		writeError(ctx, w, err)
		return
	}

	donation, err := a.coordinator.Cancel(ctx, requestID, r.PathValue("donationID"), user.ID, body.Reason)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	req, err := a.ledger.Get(ctx, requestID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, coordinator.ViewFor(donation, req, user.ID))
}
