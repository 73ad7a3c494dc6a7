// Package webui serves the server-rendered pages for requesters, donors and
// reviewers.
package webui

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"kurudhi-koodai/coordinator"
	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/ledger"
	"kurudhi-koodai/ratelimit"
	"kurudhi-koodai/registry"
	"kurudhi-koodai/store"
	"kurudhi-koodai/webui/uitemplates"
)

type WebUI struct {
	ledger      *ledger.Ledger
	coordinator *coordinator.Coordinator
	registry    *registry.Registry
	identity    *identity.Service

	googleClientID string
	verifyLimiter  *ratelimit.Limiter
}

// New returns the web UI.  The Google sign-in button and route are only
// offered when googleClientID is set.  verifyLimiter may be nil.
func New(l *ledger.Ledger, c *coordinator.Coordinator, reg *registry.Registry, id *identity.Service, googleClientID string, verifyLimiter *ratelimit.Limiter) *WebUI {
	return &WebUI{
		ledger:         l,
		coordinator:    c,
		registry:       reg,
		identity:       id,
		googleClientID: googleClientID,
		verifyLimiter:  verifyLimiter,
	}
}

func (u *WebUI) Register(m *http.ServeMux) {
	m.HandleFunc("GET /{$}", u.homeHandler)
	m.HandleFunc("GET /log-in", u.logInGetHandler)
	m.HandleFunc("POST /log-in", u.logInPostHandler)
	if u.googleClientID != "" {
		m.HandleFunc("POST /log-in-google", u.logInGoogleHandler)
	}
	m.HandleFunc("GET /log-out", u.logOutGetHandler)
	m.HandleFunc("POST /log-out", u.logOutPostHandler)
	m.HandleFunc("GET /sign-up", u.signUpGetHandler)
	m.HandleFunc("POST /sign-up", u.signUpPostHandler)

	m.HandleFunc("GET /list-requests", u.listRequestsHandler)
	m.HandleFunc("GET /create-request", u.createRequestGetHandler)
	m.HandleFunc("POST /create-request", u.createRequestPostHandler)
	m.HandleFunc("GET /show-request", u.showRequestHandler)
	m.HandleFunc("POST /set-request-status", u.setRequestStatusHandler)

	m.HandleFunc("POST /donate", u.donateHandler)
	m.HandleFunc("POST /verify-code", u.verifyCodeHandler)
	m.HandleFunc("POST /cancel-donation", u.cancelDonationHandler)

	m.HandleFunc("GET /register-donor", u.registerDonorGetHandler)
	m.HandleFunc("POST /register-donor", u.registerDonorPostHandler)
}

func internalError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	slog.ErrorContext(ctx, msg, slog.Any("err", err))
	http.Error(w, "Internal Error", http.StatusInternalServerError)
}

func writePage(ctx context.Context, w http.ResponseWriter, content []byte, err error) {
	if err != nil {
		internalError(ctx, w, "Error while rendering page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(content); err != nil {
		// It's too late to write an error to the HTTP response.
		slog.ErrorContext(ctx, "Error while writing output", slog.Any("err", err))
	}
}

// currentUser returns the logged-in user, or nil.  ok is false if an error
// response has already been written.
func (u *WebUI) currentUser(w http.ResponseWriter, r *http.Request) (user *dbtypes.User, ok bool) {
	user, err := u.identity.UserFromRequest(r)
	if err != nil {
		internalError(r.Context(), w, "Error while getting logged-in user", err)
		return nil, false
	}
	return user, true
}

// requireUser is currentUser, but sends anonymous visitors to the log-in
// page.
func (u *WebUI) requireUser(w http.ResponseWriter, r *http.Request) (*dbtypes.User, bool) {
	user, ok := u.currentUser(w, r)
	if !ok {
		return nil, false
	}
	if user == nil {
		// TODO: Have log-in redirect back to this page.
		http.Redirect(w, r, "/log-in", http.StatusFound)
		return nil, false
	}
	return user, true
}

func pageParams(user *dbtypes.User, userError string) uitemplates.PageParams {
	p := uitemplates.PageParams{UserError: userError}
	if user != nil {
		p.ActiveUser = uitemplates.ActiveUserParams{
			LoggedIn: true,
			Email:    user.Email,
			Reviewer: user.HasRole(dbtypes.RoleReviewer),
		}
	}
	return p
}

// userMessage turns protocol errors into something to show the user.  It
// returns false for errors that are our fault.
func userMessage(err error) (string, bool) {
	var notEligible *coordinator.NotEligibleError
	switch {
	case errors.As(err, &notEligible):
		return eligibilityNote(notEligible.Reason, notEligible.CooldownRemainingDays), true
	case errors.Is(err, store.ErrNotFound):
		return "Not found", true
	case errors.Is(err, identity.ErrPermissionDenied):
		return "You are not allowed to do that", true
	case errors.Is(err, ledger.ErrInvalidTransition):
		return "That is not possible in the current state", true
	case errors.Is(err, ledger.ErrInvalidNeed):
		return "Please fill in the patient name, hospital, blood group and a positive number of units", true
	case errors.Is(err, coordinator.ErrRequestNotAcceptingDonations):
		return "This request is not accepting donations", true
	case errors.Is(err, coordinator.ErrAlreadyDonating):
		return "You are already donating to this request", true
	case errors.Is(err, coordinator.ErrCodeMismatch):
		return "That code does not match", true
	case errors.Is(err, ratelimit.ErrLimited):
		return "Too many code attempts; please wait a minute and try again", true
	case errors.Is(err, store.ErrConcurrencyConflict):
		return "Someone else updated this at the same time; please try again", true
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return "A donor is already registered for this account or email", true
	case errors.Is(err, registry.ErrInvalidRegistration):
		return "Please check your name, phone number and blood group", true
	case errors.Is(err, identity.ErrEmailTaken):
		return "An account with that email already exists", true
	case errors.Is(err, identity.ErrEmailMustNotBeEmpty):
		return "Email must not be empty", true
	case errors.Is(err, identity.ErrPasswordMustNotBeEmpty):
		return "Password must not be empty", true
	case errors.Is(err, identity.ErrUnknownUserOrWrongPassword):
		return "Unknown user or wrong password", true
	}
	return "", false
}

func ShowRequestLink(id, userError string) string {
	q := url.Values{}
	q.Add("id", id)
	if userError != "" {
		q.Add("user-error", userError)
	}
	showRequestLink := &url.URL{
		Path:     "/show-request",
		RawQuery: q.Encode(),
	}
	return showRequestLink.String()
}

func (u *WebUI) homeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := u.currentUser(w, r)
	if !ok {
		return
	}

	params := &uitemplates.HomeParams{PageParams: pageParams(user, "")}
	if user != nil {
		_, err := u.registry.Get(ctx, user.ID)
		switch {
		case err == nil:
			params.IsDonor = true
		case !store.IsNotFound(err):
			internalError(ctx, w, "Error while looking up donor", err)
			return
		}
	}

	content, err := uitemplates.HomePage(params)
	writePage(ctx, w, content, err)
}
