package webui

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/eligibility"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/store"
	"kurudhi-koodai/webui/uitemplates"
)

const dateFormat = "2006-01-02"

func bloodGroupLabel(req *dbtypes.Request) string {
	switch {
	case req.AnyGroupAccepted && req.BloodGroup != "":
		return req.BloodGroup + " (any accepted)"
	case req.AnyGroupAccepted:
		return "Any"
	}
	return req.BloodGroup
}

func unitsLabel(req *dbtypes.Request) string {
	return fmt.Sprintf("%d of %d", req.UnitsDonated, req.UnitsNeeded)
}

func eligibilityNote(reason eligibility.Reason, remainingDays int64) string {
	switch reason {
	case eligibility.ReasonGroupMismatch:
		return "Your blood group does not match this request"
	case eligibility.ReasonCooldown:
		return fmt.Sprintf("You donated recently; you can donate again in %d day(s)", remainingDays)
	}
	return ""
}

// listRequestsHandler lists accepted requests, or with ?mine=1 the user's own
// requests.  Reviewers may list any status.
func (u *WebUI) listRequestsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}

	mine := r.URL.Query().Get("mine") != ""
	status := dbtypes.RequestStatus(r.URL.Query().Get("status"))
	if !status.Valid() || !user.HasRole(dbtypes.RoleReviewer) {
		status = dbtypes.StatusAccepted
	}
	heading := "Requests: " + string(status)
	if mine {
		status = ""
		heading = "My Requests"
	}

	reqs, err := u.ledger.List(ctx, status)
	if err != nil {
		internalError(ctx, w, "Error while listing requests", err)
		return
	}

	params := &uitemplates.ListRequestsParams{
		PageParams: pageParams(user, ""),
		Heading:    heading,
	}
	for _, req := range reqs {
		if mine && req.RequesterID != user.ID {
			continue
		}
		params.Requests = append(params.Requests, uitemplates.ListRequestsRequest{
			PatientName:     req.PatientName,
			Hospital:        req.Hospital,
			BloodGroup:      bloodGroupLabel(req),
			Units:           unitsLabel(req),
			Status:          string(req.Status),
			Created:         req.CreatedAt.Format(dateFormat),
			ShowRequestLink: ShowRequestLink(req.ID, ""),
		})
	}

	content, err := uitemplates.ListRequestsPage(params)
	writePage(ctx, w, content, err)
}

func (u *WebUI) createRequestGetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}
	u.renderCreateRequest(w, r, user, r.URL.Query().Get("user-error"))
}

func (u *WebUI) renderCreateRequest(w http.ResponseWriter, r *http.Request, user *dbtypes.User, userError string) {
	content, err := uitemplates.CreateRequestPage(&uitemplates.CreateRequestParams{
		PageParams:  pageParams(user, userError),
		BloodGroups: dbtypes.BloodGroups,
	})
	writePage(r.Context(), w, content, err)
}

func (u *WebUI) createRequestPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	need := &ledger.Need{
		PatientName:      strings.TrimSpace(r.PostForm.Get("patient-name")),
		PatientGender:    strings.TrimSpace(r.PostForm.Get("patient-gender")),
		Hospital:         strings.TrimSpace(r.PostForm.Get("hospital")),
		Reason:           strings.TrimSpace(r.PostForm.Get("reason")),
		BloodGroup:       r.PostForm.Get("blood-group"),
		AnyGroupAccepted: r.PostForm.Get("any-group") != "",
	}
	if age := r.PostForm.Get("patient-age"); age != "" {
		n, err := strconv.ParseInt(age, 10, 64)
		if err != nil || n < 0 {
			u.renderCreateRequest(w, r, user, fmt.Sprintf("Could not parse age %q", age))
			return
		}
		need.PatientAge = n
	}
	units, err := strconv.ParseInt(r.PostForm.Get("units-needed"), 10, 64)
	if err != nil {
		u.renderCreateRequest(w, r, user, fmt.Sprintf("Could not parse units %q", r.PostForm.Get("units-needed")))
		return
	}
	need.UnitsNeeded = units

	req, err := u.ledger.Create(ctx, user.ID, need)
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			internalError(ctx, w, "Error while creating request", err)
			return
		}
		u.renderCreateRequest(w, r, user, msg)
		return
	}

	http.Redirect(w, r, ShowRequestLink(req.ID, ""), http.StatusFound)
}

func (u *WebUI) showRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}

	requestID := r.URL.Query().Get("id")
	req, err := u.ledger.Get(ctx, requestID)
	if store.IsNotFound(err) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(ctx, w, "Error while getting request", err)
		return
	}

	reviewer := user.HasRole(dbtypes.RoleReviewer)
	isRequester := req.RequesterID == user.ID

	params := &uitemplates.ShowRequestParams{
		PageParams:    pageParams(user, r.URL.Query().Get("user-error")),
		SelfLink:      ShowRequestLink(req.ID, ""),
		ID:            req.ID,
		PatientName:   req.PatientName,
		PatientGender: req.PatientGender,
		Hospital:      req.Hospital,
		Reason:        req.Reason,
		BloodGroup:    bloodGroupLabel(req),
		Units:         unitsLabel(req),
		Status:        string(req.Status),
		Created:       req.CreatedAt.Format(dateFormat),
		IsRequester:   isRequester,
	}
	if req.PatientAge > 0 {
		params.PatientAge = strconv.FormatInt(req.PatientAge, 10)
	}

	if reviewer {
		for _, s := range []dbtypes.RequestStatus{dbtypes.StatusAccepted, dbtypes.StatusRejected, dbtypes.StatusCompleted} {
			if s != req.Status && ledger.CheckTransition(req.Status, s) == nil {
				params.StatusActions = append(params.StatusActions, string(s))
			}
		}
	}

	donations, err := u.coordinator.ListForRequest(ctx, req.ID)
	if err != nil {
		internalError(ctx, w, "Error while listing donations", err)
		return
	}

	ownActive := false
	for _, d := range donations {
		isDonor := d.DonorID == user.ID
		if isDonor && d.Active() {
			ownActive = true
		}
		if !isDonor && !isRequester && !reviewer {
			continue
		}

		view := coordinator.ViewFor(d, req, user.ID)
		row := &uitemplates.ShowRequestDonation{
			DonationID:  d.ID,
			DonorID:     d.DonorID,
			State:       string(view.State),
			Created:     d.CreatedAt.Format(dateFormat),
			Note:        d.CancelReason,
			CodeToShare: view.CodeToShare,
		}
		open := view.State != dbtypes.DonationComplete && view.State != dbtypes.DonationCancelled
		if open {
			switch {
			case isRequester && !d.DonorSideVerified:
				row.VerifySide = "donor"
			case isDonor && !d.RequesterSideVerified:
				row.VerifySide = "requester"
			}
			row.CanCancel = isRequester || isDonor
		}
		params.Donations = append(params.Donations, row)
	}

	if req.Status == dbtypes.StatusAccepted && !isRequester && !ownActive {
		decision, err := u.coordinator.CheckEligibility(ctx, req.ID, user.ID)
		switch {
		case store.IsNotFound(err):
			params.NeedsRegistration = true
		case err != nil:
			internalError(ctx, w, "Error while checking eligibility", err)
			return
		case decision.Eligible:
			params.CanDonate = true
		default:
			params.DonateBlockedNote = eligibilityNote(decision.Reason, decision.CooldownRemainingDays)
		}
	}

	content, err := uitemplates.ShowRequestPage(params)
	writePage(ctx, w, content, err)
}

func (u *WebUI) setRequestStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := u.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	requestID := r.PostForm.Get("request-id")
	_, err := u.ledger.SetStatus(ctx, user, requestID, dbtypes.RequestStatus(r.PostForm.Get("status")))
	u.redirectAfterAction(w, r, requestID, "Error while setting request status", err)
}

// redirectAfterAction sends the user back to the request page, carrying any
// user-facing error along.
func (u *WebUI) redirectAfterAction(w http.ResponseWriter, r *http.Request, requestID, internalMsg string, err error) {
	userError := ""
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			internalError(r.Context(), w, internalMsg, err)
			return
		}
		userError = msg
	}
	http.Redirect(w, r, ShowRequestLink(requestID, userError), http.StatusFound)
}
