package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap/zaptest"

	"github.com/storahq/stora/internal/config"
	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/crypto"
	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/identity"
	"github.com/storahq/stora/internal/middleware"
	"github.com/storahq/stora/internal/objectstore"
	"github.com/storahq/stora/pkg/cache"
	"github.com/storahq/stora/pkg/mailer"
)

const testWebhookSecret = "whsec_api_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last() mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type testServer struct {
	router   *gin.Engine
	provider *identity.MemoryProvider
	store    *db.MemoryStore
	objects  *objectstore.MemoryStore
	mail     *captureMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		Backend:                 config.BackendMemory,
		StripeWebhookSecret:     testWebhookSecret,
		StripePaymentLink:       config.DefaultPaymentLink,
		ClientURL:               "http://localhost:3000",
		FreeTierItemLimit:       5,
		MaxUploadBytes:          10 * 1024 * 1024,
		IdentityRecheckInterval: 10 * time.Millisecond,
	}
	ts := &testServer{
		provider: identity.NewMemoryProvider("http://localhost:3000/__/auth/action"),
		store:    db.NewMemoryStore(),
		objects:  objectstore.NewMemoryStore("http://localhost:8080/objects"),
		mail:     &captureMailer{},
	}
	entitlement := core.NewEntitlementChecker(ts.store)
	var sealer *crypto.Sealer
	billing := core.NewBillingService(ts.store, nil, core.BillingConfig{
		WebhookSecret: cfg.StripeWebhookSecret,
		PaymentLink:   cfg.StripePaymentLink,
	}, logger)
	services := Services{
		Auth:    core.NewAuthService(ts.provider, billing, ts.mail, logger),
		Billing: billing,
		Files: core.NewFileService(ts.store, ts.objects, entitlement,
			core.FileLimits{MaxUploadBytes: cfg.MaxUploadBytes, FreeTierFiles: cfg.FreeTierItemLimit}, logger),
		Notes:     core.NewNoteService(ts.store, entitlement, sealer, cfg.FreeTierItemLimit, logger),
		Team:      core.NewTeamService(ts.store, logger),
		Bootstrap: core.NewBootstrapWriter(ts.store, cache.NewMemoryCache(), logger),
		Verifier:  ts.provider,
		Store:     ts.store,
		Sealer:    sealer,
		Objects:   ts.objects,
	}
	ts.router = gin.New()
	ts.router.Use(middleware.RecoveryMiddleware(logger))
	SetupRoutes(ts.router, cfg, logger, middleware.NewAuthMiddleware(ts.provider, ts.provider, logger), services)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Client-ID", "test-browser")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// signUpVerified creates a verified password account and returns its token.
func (ts *testServer) signUpVerified(t *testing.T, email string) (string, string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, rest, _ := strings.Cut(ts.mail.last().Body, `href="`)
	link, _, _ := strings.Cut(rest, `"`)
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.NoError(t, ts.provider.ApplyVerificationCode(u.Query().Get("oobCode")))

	w = ts.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result core.SignInResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result.Session.IDToken, result.Session.Identity.UID
}

func (ts *testServer) upload(t *testing.T, token, name string, size int, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := uploadRequest(t, "/api/v1/files"+query, name, size)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, target, name string, size int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func signedWebhook(t *testing.T, uid string) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]interface{}{"object": map[string]interface{}{
			"id":                  "cs_1",
			"object":              "checkout.session",
			"client_reference_id": uid,
			"amount_total":        1000,
			"currency":            "usd",
			"payment_status":      "paid",
			"subscription":        "sub_api",
		}},
	})
	require.NoError(t, err)
	return payload, stripeSignature(payload, testWebhookSecret)
}

func stripeSignature(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}
