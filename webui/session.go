package webui

import (
	"log/slog"
	"net/http"
	"strings"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/identity"
	"kurudhi-koodai/webui/uitemplates"
)

func (u *WebUI) logInGetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := u.currentUser(w, r)
	if !ok {
		return
	}
	if user != nil {
		// User is already logged in.  Send them back home.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	u.renderLogIn(w, r, "")
}

func (u *WebUI) renderLogIn(w http.ResponseWriter, r *http.Request, userError string) {
	content, err := uitemplates.LogInPage(&uitemplates.LogInParams{
		PageParams:     pageParams(nil, userError),
		GoogleClientID: u.googleClientID,
	})
	writePage(r.Context(), w, content, err)
}

func (u *WebUI) logInPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := u.identity.SessionFromPassword(ctx, r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			internalError(ctx, w, "Error while processing log in form", err)
			return
		}
		u.renderLogIn(w, r, msg)
		return
	}

	// User successfully logged in
	http.SetCookie(w, identity.Cookie(session))
	http.Redirect(w, r, "/", http.StatusFound)
}

// logInGoogleHandler receives the "Sign in with Google" redirect-mode POST.
func (u *WebUI) logInGoogleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Double-submit CSRF check required by Google Identity Services.
	csrfCookie, err := r.Cookie("g_csrf_token")
	if err != nil || csrfCookie.Value == "" || csrfCookie.Value != r.PostForm.Get("g_csrf_token") {
		slog.InfoContext(ctx, "Rejected Google sign-in with bad CSRF token")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	session, err := u.identity.SessionFromGoogleFederation(ctx, r.PostForm.Get("credential"))
	if err != nil {
		slog.InfoContext(ctx, "Rejected Google sign-in", slog.Any("err", err))
		u.renderLogIn(w, r, "Google sign-in failed")
		return
	}

	http.SetCookie(w, identity.Cookie(session))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (u *WebUI) logOutGetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := u.currentUser(w, r)
	if !ok {
		return
	}
	content, err := uitemplates.LogOutPage(&uitemplates.LogOutParams{PageParams: pageParams(user, "")})
	writePage(r.Context(), w, content, err)
}

func (u *WebUI) logOutPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(identity.SessionCookieName); err == nil {
		if err := u.identity.DeleteSession(ctx, cookie.Value); err != nil {
			internalError(ctx, w, "Error while deleting session", err)
			return
		}
	}

	http.SetCookie(w, identity.ExpiredCookie())
	http.Redirect(w, r, "/", http.StatusFound)
}

func (u *WebUI) signUpGetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := u.currentUser(w, r)
	if !ok {
		return
	}
	if user != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	u.renderSignUp(w, r, nil, "")
}

func (u *WebUI) renderSignUp(w http.ResponseWriter, r *http.Request, user *dbtypes.User, userError string) {
	content, err := uitemplates.SignUpPage(&uitemplates.SignUpParams{PageParams: pageParams(user, userError)})
	writePage(r.Context(), w, content, err)
}

func (u *WebUI) signUpPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	if len(password) < 8 {
		u.renderSignUp(w, r, nil, "Password must be at least 8 characters")
		return
	}

	if _, err := u.identity.SignUp(ctx, email, r.PostForm.Get("display-name"), password); err != nil {
		msg, ok := userMessage(err)
		if !ok {
			internalError(ctx, w, "Error while signing up", err)
			return
		}
		u.renderSignUp(w, r, nil, msg)
		return
	}

	session, err := u.identity.SessionFromPassword(ctx, email, password)
	if err != nil {
		internalError(ctx, w, "Error while logging in new user", err)
		return
	}
	http.SetCookie(w, identity.Cookie(session))
	http.Redirect(w, r, "/", http.StatusFound)
}
