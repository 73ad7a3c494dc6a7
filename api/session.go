package api

import (
	"log/slog"
	"net/http"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
)

type userView struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func viewUser(u *dbtypes.User) *userView {
	return &userView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Roles:       u.Roles,
	}
}

type logInBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (a *API) logInHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &logInBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	session, err := a.identity.SessionFromPassword(ctx, body.Email, body.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	a.startSession(w, r, session)
}

type googleLogInBody struct {
	IDToken string `json:"idToken" validate:"required"`
}

func (a *API) googleLogInHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &googleLogInBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	session, err := a.identity.SessionFromGoogleFederation(ctx, body.IDToken)
	if err != nil {
		slog.InfoContext(ctx, "Rejected Google sign-in", slog.Any("err", err))
		writeError(ctx, w, errUnauthenticated)
		return
	}
	a.startSession(w, r, session)
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request, session *dbtypes.Session) {
	ctx := r.Context()

	user, err := a.identity.GetUser(ctx, session.UserID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	http.SetCookie(w, identity.Cookie(session))
	writeJSON(ctx, w, http.StatusOK, viewUser(user))
}

func (a *API) logOutHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(identity.SessionCookieName); err == nil {
		if err := a.identity.DeleteSession(ctx, cookie.Value); err != nil {
			writeError(ctx, w, err)
			return
		}
	}

	http.SetCookie(w, identity.ExpiredCookie())
	w.WriteHeader(http.StatusNoContent)
}

type signUpBody struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"max=200"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

func (a *API) signUpHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body := &signUpBody{}
	if err := a.decodeBody(w, r, body, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	user, err := a.identity.SignUp(ctx, body.Email, body.DisplayName, body.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, viewUser(user))
}
