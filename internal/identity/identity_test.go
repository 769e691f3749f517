package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/option"

	"github.com/storahq/stora/internal/models"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@b.com"))
	for _, bad := range []string{"", "a", "a@b", "Bob <a@b.com>", "a@@b.com", "a b@c.com", "@b.com"} {
		assert.ErrorIs(t, ValidateEmail(bad), ErrInvalidEmail, bad)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("12345"), ErrWeakPassword)
	assert.NoError(t, ValidatePassword("123456"))
}

type fakeAdmin struct {
	users   map[string]*auth.UserRecord
	revoked []string
	token   *auth.Token
}

func (f *fakeAdmin) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	return f.users[uid], nil
}

func (f *fakeAdmin) CreateUser(context.Context, *auth.UserToCreate) (*auth.UserRecord, error) {
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "new"}}, nil
}

func (f *fakeAdmin) EmailVerificationLink(_ context.Context, email string) (string, error) {
	return "https://stora.firebaseapp.com/__/auth/action?mode=verifyEmail&email=" + email, nil
}

func (f *fakeAdmin) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return nil
}

func (f *fakeAdmin) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, nil
}

func (f *fakeAdmin) VerifyIDTokenAndCheckRevoked(context.Context, string) (*auth.Token, error) {
	return f.token, nil
}

func toolkitServer(t *testing.T, status int, body interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "verifyPassword"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server, admin *fakeAdmin) *FirebaseProvider {
	t.Helper()
	p, err := newFirebaseProvider(context.Background(), admin, zaptest.NewLogger(t),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return p
}

func TestFirebaseProvider_SignInWithPassword(t *testing.T) {
	srv := toolkitServer(t, http.StatusOK, map[string]interface{}{
		"localId": "u1", "idToken": "tok", "refreshToken": "ref", "expiresIn": "3600", "email": "a@b.com",
	})
	admin := &fakeAdmin{users: map[string]*auth.UserRecord{
		"u1": {UserInfo: &auth.UserInfo{UID: "u1", Email: "a@b.com"}, EmailVerified: false},
	}}
	p := newTestProvider(t, srv, admin)

	session, err := p.SignInWithPassword(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.IDToken)
	assert.Equal(t, int64(3600), session.ExpiresIn)
	assert.Equal(t, "u1", session.Identity.UID)
	assert.True(t, session.Identity.RequiresVerification())
}

func TestFirebaseProvider_SignInErrorCodes(t *testing.T) {
	for _, code := range []string{"EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL"} {
		t.Run(code, func(t *testing.T) {
			srv := toolkitServer(t, http.StatusBadRequest, map[string]interface{}{
				"error": map[string]interface{}{"code": 400, "message": code},
			})
			p := newTestProvider(t, srv, &fakeAdmin{})
			_, err := p.SignInWithPassword(context.Background(), "a@b.com", "x")
			assert.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestFirebaseProvider_SignInUnknownCode(t *testing.T) {
	srv := toolkitServer(t, http.StatusBadRequest, map[string]interface{}{
		"error": map[string]interface{}{"code": 400, "message": "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled"},
	})
	p := newTestProvider(t, srv, &fakeAdmin{})
	_, err := p.SignInWithPassword(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
	assert.Contains(t, err.Error(), "TOO_MANY_ATTEMPTS_TRY_LATER")
}

func TestIdentityFromToken(t *testing.T) {
	token := &auth.Token{
		UID:      "u1",
		Firebase: auth.FirebaseInfo{SignInProvider: "google.com"},
		Claims:   map[string]interface{}{"email": "a@b.com", "name": "Ada", "email_verified": true},
	}
	id := IdentityFromToken(token)
	assert.Equal(t, &models.Identity{UID: "u1", Email: "a@b.com", DisplayName: "Ada", EmailVerified: true, Provider: "google.com"}, id)
	assert.False(t, id.RequiresVerification())
}

func TestMemoryProvider_Flow(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider("http://localhost:3000/auth/action")

	_, err := p.CreateUser(ctx, "a@b.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = p.CreateUser(ctx, "not-an-email", "123456")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	created, err := p.CreateUser(ctx, "a@b.com", "123456")
	require.NoError(t, err)
	_, err = p.CreateUser(ctx, "a@b.com", "123456")
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = p.SignInWithPassword(ctx, "a@b.com", "wrong!")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = p.SignInWithPassword(ctx, "nobody@b.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	session, err := p.SignInWithPassword(ctx, "a@b.com", "123456")
	require.NoError(t, err)
	assert.True(t, session.Identity.RequiresVerification())

	link, err := p.EmailVerificationLink(ctx, "a@b.com")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.NoError(t, p.ApplyVerificationCode(u.Query().Get("oobCode")))

	id, err := p.VerifyIDToken(ctx, session.IDToken, true)
	require.NoError(t, err)
	assert.Equal(t, created.UID, id.UID)
	assert.True(t, id.EmailVerified)

	require.NoError(t, p.Revoke(ctx, created.UID))
	_, err = p.VerifyIDToken(ctx, session.IDToken, true)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryProvider_FederatedUser(t *testing.T) {
	p := NewMemoryProvider("")
	token := p.AddFederatedUser("g@b.com", "Grace", "google.com")
	id, err := p.VerifyIDToken(context.Background(), token, false)
	require.NoError(t, err)
	assert.Equal(t, "Grace", id.Label())
	assert.False(t, id.RequiresVerification())
}
