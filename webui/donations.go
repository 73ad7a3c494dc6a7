package webui

import (
	"log/slog"
	"net/http"
	"strings"

	"kurudhi-koodai/ratelimit"
)

func (u *WebUI) donateHandler(w http.ResponseWriter, r *http.Request) {
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
	_, err := u.coordinator.Initiate(ctx, requestID, user.ID)
	u.redirectAfterAction(w, r, requestID, "Error while initiating donation", err)
}

func (u *WebUI) verifyCodeHandler(w http.ResponseWriter, r *http.Request) {
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
	donationID := r.PostForm.Get("donation-id")
	code := strings.TrimSpace(r.PostForm.Get("code"))

	if !u.verifyLimiter.Allow(user.ID) {
		slog.InfoContext(ctx, "Rate limited code verification", slog.String("user", user.ID), slog.String("remote", r.RemoteAddr))
		u.redirectAfterAction(w, r, requestID, "", ratelimit.ErrLimited)
		return
	}

	var err error
	switch r.PostForm.Get("side") {
	case "donor":
		_, err = u.coordinator.SubmitDonorCode(ctx, requestID, donationID, code, user.ID)
	case "requester":
		_, err = u.coordinator.SubmitRequesterCode(ctx, requestID, donationID, code, user.ID)
	default:
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	u.redirectAfterAction(w, r, requestID, "Error while verifying code", err)
}

func (u *WebUI) cancelDonationHandler(w http.ResponseWriter, r *http.Request) {
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
	_, err := u.coordinator.Cancel(ctx, requestID, r.PostForm.Get("donation-id"), user.ID, strings.TrimSpace(r.PostForm.Get("reason")))
	u.redirectAfterAction(w, r, requestID, "Error while cancelling donation", err)
}
