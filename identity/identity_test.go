package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"kurudhi-koodai/dbtypes"
	"kurudhi-koodai/store/kvstore"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/idtoken"
)

func newTestService(t *testing.T, now *time.Time) *Service {
	t.Helper()
	s, err := kvstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, "", time.Hour, func() time.Time { return *now })
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	user, err := svc.SignUp(ctx, "  kavya@example.com ", "Kavya", "correct horse", dbtypes.RoleReviewer)
	if err != nil {
		t.Fatalf("Unexpected error from SignUp: %v", err)
	}

	session, err := svc.SessionFromPassword(ctx, "kavya@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Unexpected error from SessionFromPassword: %v", err)
	}
	if session.UserID != user.ID {
		t.Errorf("Session for wrong user; got %q, want %q", session.UserID, user.ID)
	}
	if want := now.Add(time.Hour); !session.Expires.Equal(want) {
		t.Errorf("Bad session expiry; got %v, want %v", session.Expires, want)
	}

	got, err := svc.UserFromSessionCookie(ctx, session.Cookie)
	if err != nil {
		t.Fatalf("Unexpected error from UserFromSessionCookie: %v", err)
	}
	if diff := cmp.Diff(user, got); diff != "" {
		t.Errorf("Wrong user for session (-want +got):\n%s", diff)
	}
	if !got.HasRole(dbtypes.RoleReviewer) {
		t.Errorf("User lost reviewer role")
	}
}

func TestPasswordLoginRejects(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	if _, err := svc.SignUp(ctx, "kavya@example.com", "Kavya", "correct horse"); err != nil {
		t.Fatalf("Unexpected error from SignUp: %v", err)
	}

	testCases := []struct {
		desc     string
		email    string
		password string
		wantErr  error
	}{
		{"wrong password", "kavya@example.com", "battery staple", ErrUnknownUserOrWrongPassword},
		{"unknown user", "nobody@example.com", "correct horse", ErrUnknownUserOrWrongPassword},
		{"empty email", "", "correct horse", ErrEmailMustNotBeEmpty},
		{"empty password", "kavya@example.com", "", ErrPasswordMustNotBeEmpty},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := svc.SessionFromPassword(ctx, tc.email, tc.password)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Bad error; got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	if _, err := svc.SignUp(ctx, "kavya@example.com", "Kavya", "a"); err != nil {
		t.Fatalf("Unexpected error from SignUp: %v", err)
	}
	if _, err := svc.SignUp(ctx, "kavya@example.com", "Other", "b"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Bad error; got %v, want %v", err, ErrEmailTaken)
	}
}

func TestSessionExpiryAndLogout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	if _, err := svc.SignUp(ctx, "kavya@example.com", "Kavya", "pw"); err != nil {
		t.Fatalf("Unexpected error from SignUp: %v", err)
	}

	first, err := svc.SessionFromPassword(ctx, "kavya@example.com", "pw")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	now = now.Add(2 * time.Hour)
	user, err := svc.UserFromSessionCookie(ctx, first.Cookie)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("Expired session still logged in as %q", user.ID)
	}

	second, err := svc.SessionFromPassword(ctx, "kavya@example.com", "pw")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(Cookie(second))
	user, err = svc.UserFromRequest(r)
	if err != nil {
		t.Fatalf("Unexpected error from UserFromRequest: %v", err)
	}
	if user == nil || user.Email != "kavya@example.com" {
		t.Fatalf("Bad user from request: %+v", user)
	}

	if err := svc.DeleteSession(ctx, second.Cookie); err != nil {
		t.Fatalf("Unexpected error from DeleteSession: %v", err)
	}
	user, err = svc.UserFromSessionCookie(ctx, second.Cookie)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("Deleted session still logged in as %q", user.ID)
	}
}

func TestUserFromRequestWithoutCookie(t *testing.T) {
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	user, err := svc.UserFromRequest(httptest.NewRequest("GET", "/", nil))
	if err != nil || user != nil {
		t.Errorf("Got (%v, %v), want (nil, nil)", user, err)
	}
}

func TestGoogleSignInNeedsClientID(t *testing.T) {
	now := time.Date(2024, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	if svc.GoogleSignInEnabled() {
		t.Errorf("Google sign-in enabled without a client ID")
	}
	if _, err := svc.SessionFromGoogleFederation(context.Background(), "any-token"); !errors.Is(err, ErrGoogleSignInDisabled) {
		t.Errorf("Bad error without client ID; got %v, want %v", err, ErrGoogleSignInDisabled)
	}
}

func TestFederatedIdentity(t *testing.T) {
	testCases := []struct {
		desc      string
		claims    map[string]interface{}
		wantEmail string
		wantName  string
		wantErr   error
	}{
		{
			desc:      "verified",
			claims:    map[string]interface{}{"email": "kavya@example.com", "email_verified": true, "name": "Kavya"},
			wantEmail: "kavya@example.com",
			wantName:  "Kavya",
		},
		{
			desc:    "unverified",
			claims:  map[string]interface{}{"email": "reviewer@example.com", "email_verified": false},
			wantErr: ErrEmailNotVerified,
		},
		{
			desc:    "verification claim missing",
			claims:  map[string]interface{}{"email": "reviewer@example.com"},
			wantErr: ErrEmailNotVerified,
		},
		{
			desc:    "verification claim as string",
			claims:  map[string]interface{}{"email": "reviewer@example.com", "email_verified": "true"},
			wantErr: ErrEmailNotVerified,
		},
		{
			desc:    "no email",
			claims:  map[string]interface{}{"email_verified": true},
			wantErr: ErrEmailMustNotBeEmpty,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			email, name, err := federatedIdentity(&idtoken.Payload{Claims: tc.claims})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Bad error; got %v, want %v", err, tc.wantErr)
			}
			if email != tc.wantEmail || name != tc.wantName {
				t.Errorf("Bad identity; got (%q, %q), want (%q, %q)", email, name, tc.wantEmail, tc.wantName)
			}
		})
	}
}
