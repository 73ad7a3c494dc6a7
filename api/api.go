// Package api exposes the donation protocol as a JSON HTTP API.
//
// Every route except the session routes needs a logged-in user, identified
// by the same session cookie the web UI uses.  Protocol errors come back as
//
//	{"error": "<kind>", "message": "...", "cooldownRemainingDays": N}
//
// with a distinct kind and status code per failure.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/ratelimit"
	"kurudhi-koodai/registry"
	"kurudhi-koodai/store"

	"gopkg.in/go-playground/validator.v9"
)

var (
	errBadRequest      = errors.New("bad request")
	errUnauthenticated = errors.New("not logged in")
)

const maxBodyBytes = 64 << 10

type Options struct {
	// Per-user budget for the two code verification routes, shared with the
	// web UI.  Nil disables limiting.
	VerifyLimiter *ratelimit.Limiter
}

type API struct {
	ledger      *ledger.Ledger
	coordinator *coordinator.Coordinator
	registry    *registry.Registry
	identity    *identity.Service

	validate *validator.Validate
	limiter  *ratelimit.Limiter
}

func New(l *ledger.Ledger, c *coordinator.Coordinator, reg *registry.Registry, id *identity.Service, opts Options) *API {
	return &API{
		ledger:      l,
		coordinator: c,
		registry:    reg,
		identity:    id,
		validate:    validator.New(),
		limiter:     opts.VerifyLimiter,
	}
}

func (a *API) Register(m *http.ServeMux) {
	m.HandleFunc("POST /api/session", a.logInHandler)
	if a.identity.GoogleSignInEnabled() {
		m.HandleFunc("POST /api/session/google", a.googleLogInHandler)
	}
	m.HandleFunc("DELETE /api/session", a.logOutHandler)
	m.HandleFunc("POST /api/users", a.signUpHandler)

	m.HandleFunc("POST /api/requests", a.authed(a.createRequestHandler))
	m.HandleFunc("GET /api/requests", a.authed(a.listRequestsHandler))
	m.HandleFunc("GET /api/requests/{id}", a.authed(a.getRequestHandler))
	m.HandleFunc("POST /api/requests/{id}/status", a.authed(a.setStatusHandler))
	m.HandleFunc("GET /api/requests/{id}/eligibility", a.authed(a.eligibilityHandler))

	m.HandleFunc("POST /api/requests/{id}/donations", a.authed(a.initiateHandler))
	m.HandleFunc("GET /api/requests/{id}/donations", a.authed(a.listDonationsHandler))
	m.HandleFunc("POST /api/requests/{id}/donations/{donationID}/verify-donor-code", a.authed(a.limited(a.verifyDonorCodeHandler)))
	m.HandleFunc("POST /api/requests/{id}/donations/{donationID}/verify-requester-code", a.authed(a.limited(a.verifyRequesterCodeHandler)))
	m.HandleFunc("POST /api/requests/{id}/donations/{donationID}/cancel", a.authed(a.cancelHandler))

	m.HandleFunc("POST /api/donors", a.authed(a.registerDonorHandler))
	m.HandleFunc("GET /api/donors/me", a.authed(a.getOwnDonorHandler))
}

type authedHandlerFunc func(w http.ResponseWriter, r *http.Request, user *dbtypes.User)

// authed resolves the session cookie and rejects anonymous callers.
func (a *API) authed(h authedHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := a.identity.UserFromRequest(r)
		if err != nil {
			writeError(r.Context(), w, fmt.Errorf("while getting logged-in user: %w", err))
			return
		}
		if user == nil {
			writeError(r.Context(), w, errUnauthenticated)
			return
		}
		h(w, r, user)
	}
}

func (a *API) limited(h authedHandlerFunc) authedHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, user *dbtypes.User) {
		if !a.limiter.Allow(user.ID) {
			slog.InfoContext(r.Context(), "Rate limited code verification", slog.String("user", user.ID), slog.String("remote", r.RemoteAddr))
			writeError(r.Context(), w, ratelimit.ErrLimited)
			return
		}
		h(w, r, user)
	}
}

// decodeBody reads a JSON body into v and validates it.  An empty body is
// accepted only if optional is set.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
		}
	}
	if err := a.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// It's too late to write an error to the HTTP response.
		slog.ErrorContext(ctx, "Error while writing output", slog.Any("err", err))
	}
}

type errorBody struct {
	Error                 string `json:"error"`
	Message               string `json:"message"`
	CooldownRemainingDays int64  `json:"cooldownRemainingDays,omitempty"`
}

// errorKind maps err onto its API kind and status code.  ok is false for
// errors that should be reported as internal.
func errorKind(err error) (kind string, status int, ok bool) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidNeed),
		errors.Is(err, registry.ErrInvalidRegistration),
		errors.Is(err, identity.ErrEmailMustNotBeEmpty),
		errors.Is(err, identity.ErrPasswordMustNotBeEmpty):
		return "bad_request", http.StatusBadRequest, true
	case errors.Is(err, errUnauthenticated),
		errors.Is(err, identity.ErrUnknownUserOrWrongPassword):
		return "unauthenticated", http.StatusUnauthorized, true
	case errors.Is(err, identity.ErrPermissionDenied):
		return "permission_denied", http.StatusForbidden, true
	case errors.Is(err, store.ErrNotFound):
		return "not_found", http.StatusNotFound, true
	case errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, coordinator.ErrRequestNotAcceptingDonations):
		return "invalid_transition", http.StatusConflict, true
	case errors.Is(err, coordinator.ErrNotEligible):
		return "not_eligible", http.StatusUnprocessableEntity, true
	case errors.Is(err, coordinator.ErrAlreadyDonating):
		return "already_donating", http.StatusConflict, true
	case errors.Is(err, coordinator.ErrCodeMismatch):
		return "code_mismatch", http.StatusUnprocessableEntity, true
	case errors.Is(err, store.ErrConcurrencyConflict):
		return "concurrency_conflict", http.StatusConflict, true
	case errors.Is(err, registry.ErrAlreadyRegistered),
		errors.Is(err, identity.ErrEmailTaken):
		return "already_exists", http.StatusConflict, true
	case errors.Is(err, ratelimit.ErrLimited):
		return "rate_limited", http.StatusTooManyRequests, true
	}
	return "internal", http.StatusInternalServerError, false
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind, status, ok := errorKind(err)
	if !ok {
		slog.ErrorContext(ctx, "Internal error while handling API call", slog.Any("err", err))
		writeJSON(ctx, w, status, &errorBody{Error: kind, Message: "Internal Error"})
		return
	}

	body := &errorBody{Error: kind, Message: err.Error()}
	var notEligible *coordinator.NotEligibleError
	if errors.As(err, &notEligible) {
		body.CooldownRemainingDays = notEligible.CooldownRemainingDays
	}
	writeJSON(ctx, w, status, body)
}
