// Package identity supplies the stable user ID and email the donation
// protocol trusts: users, password and Google sign-in, and cookie sessions.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
)

// SessionCookieName is the cookie carrying the session ID for both the API
// and the web UI.
const SessionCookieName = "Kurudhi-Session"

// DefaultSessionLifetime is how long a fresh session stays valid.
const DefaultSessionLifetime = 18 * time.Hour

var (
	ErrEmailMustNotBeEmpty        = errors.New("email must not be empty")
	ErrPasswordMustNotBeEmpty     = errors.New("password must not be empty")
	ErrUnknownUserOrWrongPassword = errors.New("unknown user or wrong password")
	ErrEmailTaken                 = errors.New("an account with that email already exists")
	ErrPermissionDenied           = errors.New("permission denied")
	ErrGoogleSignInDisabled       = errors.New("google sign-in is not configured")
	ErrEmailNotVerified           = errors.New("identity provider did not verify the email")
)

type Service struct {
	store               store.Store
	googleOAuthClientID string
	sessionLifetime     time.Duration
	now                 func() time.Time
}

func New(s store.Store, googleOAuthClientID string, sessionLifetime time.Duration, now func() time.Time) *Service {
	if sessionLifetime <= 0 {
		sessionLifetime = DefaultSessionLifetime
	}
	return &Service{
		store:               s,
		googleOAuthClientID: googleOAuthClientID,
		sessionLifetime:     sessionLifetime,
		now:                 now,
	}
}

// SignUp registers a new password user.
func (s *Service) SignUp(ctx context.Context, email, displayName, password string, roles ...string) (*dbtypes.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailMustNotBeEmpty
	}
	if password == "" {
		return nil, ErrPasswordMustNotBeEmpty
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("while hashing password: %w", err)
	}

	user := &dbtypes.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	err = s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		user.ID = ""
		return txn.CreateUser(user)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("while creating user %q: %w", email, err)
	}

	slog.InfoContext(ctx, "Signed up user", slog.String("user", user.ID))
	return user, nil
}

// SessionFromPassword runs the password-based login process for a given user,
// returning a session or an error.
func (s *Service) SessionFromPassword(ctx context.Context, email, password string) (*dbtypes.Session, error) {
	if email == "" {
		return nil, ErrEmailMustNotBeEmpty
	}

	if password == "" {
		return nil, ErrPasswordMustNotBeEmpty
	}

	var user *dbtypes.User
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		user, err = txn.FindUserByEmail(email)
		return err
	})
	if store.IsNotFound(err) {
		return nil, ErrUnknownUserOrWrongPassword
	}
	if err != nil {
		return nil, fmt.Errorf("while looking up user with email %q: %w", email, err)
	}

	if user.PasswordHash == "" {
		// Federated-only account.
		return nil, ErrUnknownUserOrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnknownUserOrWrongPassword
	}

	return s.newSession(ctx, user)
}

// GoogleSignInEnabled reports whether an OAuth client ID is configured.
// Without one the ID token audience cannot be checked.
func (s *Service) GoogleSignInEnabled() bool {
	return s.googleOAuthClientID != ""
}

// SessionFromGoogleFederation signs in a user based on a Google identity token
// returned from the "Sign in with Google" process.  Unknown emails get a fresh
// account.
func (s *Service) SessionFromGoogleFederation(ctx context.Context, idToken string) (*dbtypes.Session, error) {
	if !s.GoogleSignInEnabled() {
		return nil, ErrGoogleSignInDisabled
	}

	payload, err := idtoken.Validate(ctx, idToken, s.googleOAuthClientID)
	if err != nil {
		return nil, fmt.Errorf("while validating ID token: %w", err)
	}

	email, displayName, err := federatedIdentity(payload)
	if err != nil {
		return nil, err
	}

	var user *dbtypes.User
	err = s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		user, err = txn.FindUserByEmail(email)
		if !store.IsNotFound(err) {
			return err
		}

		user = &dbtypes.User{
			Email:       email,
			DisplayName: displayName,
		}
		return txn.CreateUser(user)
	})
	if err != nil {
		return nil, fmt.Errorf("while resolving federated user %q: %w", email, err)
	}

	return s.newSession(ctx, user)
}

// federatedIdentity extracts the verified email and display name from a
// validated ID token.
func federatedIdentity(payload *idtoken.Payload) (email, displayName string, err error) {
	email, _ = payload.Claims["email"].(string)
	if email == "" {
		return "", "", ErrEmailMustNotBeEmpty
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return "", "", fmt.Errorf("%q: %w", email, ErrEmailNotVerified)
	}
	displayName, _ = payload.Claims["name"].(string)
	return email, displayName, nil
}

func (s *Service) newSession(ctx context.Context, user *dbtypes.User) (*dbtypes.Session, error) {
	sessionCookieBytes := make([]byte, 32)
	if _, err := rand.Read(sessionCookieBytes); err != nil {
		return nil, fmt.Errorf("while generating session cookie: %w", err)
	}

	session := &dbtypes.Session{
		Cookie:  base64.URLEncoding.EncodeToString(sessionCookieBytes),
		UserID:  user.ID,
		Expires: s.now().Add(s.sessionLifetime),
	}
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.CreateSession(session)
	})
	if err != nil {
		return nil, fmt.Errorf("while storing session cookie: %w", err)
	}

	slog.InfoContext(ctx, "Started session", slog.String("user", user.ID))
	return session, nil
}

// DeleteSession deletes a session by its cookie.
func (s *Service) DeleteSession(ctx context.Context, cookie string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		return txn.DeleteSession(cookie)
	})
	if err != nil {
		return fmt.Errorf("while deleting session: %w", err)
	}
	return nil
}

// UserFromSessionCookie looks up a session from its cookie, and then returns
// the corresponding user.  It returns nil, nil if there is no live session.
func (s *Service) UserFromSessionCookie(ctx context.Context, cookie string) (*dbtypes.User, error) {
	var session *dbtypes.Session
	var user *dbtypes.User
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		session, err = txn.FindSession(cookie)
		if err != nil {
			return err
		}
		user, err = txn.GetUser(session.UserID)
		return err
	})
	if store.IsNotFound(err) {
		// Session object must have been cleaned up; user is not logged in.
		slog.InfoContext(ctx, "No logged-in user because there was no session object corresponding to the cookie in the database.")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("while looking up session: %w", err)
	}

	if session.Expires.Before(s.now()) {
		// Session object is expired; user is not logged in.
		slog.InfoContext(ctx, "No logged-in user because the session object in the database was expired.")
		return nil, nil
	}

	return user, nil
}

// UserFromRequest loads the user associated with the session cookie in the
// request, if it exists.
func (s *Service) UserFromRequest(r *http.Request) (*dbtypes.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		// No session cookie; user is not logged in.
		return nil, nil
	}
	return s.UserFromSessionCookie(r.Context(), cookie.Value)
}

// Cookie wraps a session for http.SetCookie.
func Cookie(session *dbtypes.Session) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Cookie,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  session.Expires,
	}
}

// ExpiredCookie clears the session cookie.
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	}
}

func (s *Service) GetUser(ctx context.Context, id string) (*dbtypes.User, error) {
	var user *dbtypes.User
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn store.Txn) error {
		var err error
		user, err = txn.GetUser(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("while retrieving user %s: %w", id, err)
	}
	return user, nil
}
