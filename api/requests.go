package api

import (
	"fmt"
	"net/http"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/ledger"
)

type requestView struct {
	ID               string                `json:"id"`
	RequesterID      string                `json:"requesterId"`
	PatientName      string                `json:"patientName"`
	PatientAge       int64                 `json:"patientAge,omitempty"`
	PatientGender    string                `json:"patientGender,omitempty"`
	Hospital         string                `json:"hospital"`
	Reason           string                `json:"reason,omitempty"`
	BloodGroup       string                `json:"bloodGroup,omitempty"`
	AnyGroupAccepted bool                  `json:"anyGroupAccepted"`
	UnitsNeeded      int64                 `json:"unitsNeeded"`
	UnitsDonated     int64                 `json:"unitsDonated"`
	Status           dbtypes.RequestStatus `json:"status"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

func viewRequest(req *dbtypes.Request) *requestView {
	return &requestView{
		ID:               req.ID,
		RequesterID:      req.RequesterID,
		PatientName:      req.PatientName,
		PatientAge:       req.PatientAge,
		PatientGender:    req.PatientGender,
		Hospital:         req.Hospital,
		Reason:           req.Reason,
		BloodGroup:       req.BloodGroup,
		AnyGroupAccepted: req.AnyGroupAccepted,
		UnitsNeeded:      req.UnitsNeeded,
		UnitsDonated:     req.UnitsDonated,
		Status:           req.Status,
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}
}

type createRequestBody struct {
	PatientName      string `json:"patientName" validate:"required,max=200"`
	PatientAge       int64  `json:"patientAge" validate:"gte=0,lte=150"`
	PatientGender    string `json:"patientGender" validate:"max=50"`
	Hospital         string `json:"hospital" validate:"required,max=200"`
	Reason           string `json:"reason" validate:"max=2000"`
	BloodGroup       string `json:"bloodGroup" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	AnyGroupAccepted bool   `json:"anyGroupAccepted"`
	UnitsNeeded      int64  `json:"unitsNeeded" validate:"required,gt=0,lte=100"`
}

func (a *API) createRequestHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	body := &createRequestBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	req, err := a.ledger.Create(ctx, user.ID, &ledger.Need{
		PatientName:      body.PatientName,
		PatientAge:       body.PatientAge,
		PatientGender:    body.PatientGender,
		Hospital:         body.Hospital,
		Reason:           body.Reason,
		BloodGroup:       body.BloodGroup,
		AnyGroupAccepted: body.AnyGroupAccepted,
		UnitsNeeded:      body.UnitsNeeded,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, viewRequest(req))
}

func (a *API) listRequestsHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	status := dbtypes.RequestStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(ctx, w, fmt.Errorf("%w: unknown status %q", errBadRequest, status))
		return
	}

	reqs, err := a.ledger.List(ctx, status)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	views := []*requestView{}
	for _, req := range reqs {
		views = append(views, viewRequest(req))
	}
	writeJSON(ctx, w, http.StatusOK, views)
}

func (a *API) getRequestHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	req, err := a.ledger.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, viewRequest(req))
}

type setStatusBody struct {
	Status string `json:"status" validate:"required,oneof=received accepted rejected completed"`
}

func (a *API) setStatusHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	body := &setStatusBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	req, err := a.ledger.SetStatus(ctx, user, r.PathValue("id"), dbtypes.RequestStatus(body.Status))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, viewRequest(req))
}

type eligibilityView struct {
	Eligible              bool   `json:"eligible"`
	Reason                string `json:"reason,omitempty"`
	CooldownRemainingDays int64  `json:"cooldownRemainingDays,omitempty"`
}

func (a *API) eligibilityHandler(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
	ctx := r.Context()

	decision, err := a.coordinator.CheckEligibility(ctx, r.PathValue("id"), user.ID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, &eligibilityView{
		Eligible:              decision.Eligible,
		Reason:                string(decision.Reason),
		CooldownRemainingDays: decision.CooldownRemainingDays,
	})
}
