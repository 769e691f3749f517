package identity

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/storahq/stora/internal/crypto"
	"github.com/storahq/stora/internal/models"
)

// MemoryProvider is a local auth provider for BACKEND=memory and tests.
// Tokens are opaque random strings.
type MemoryProvider struct {
	actionURL string

	mu      sync.Mutex
	users   map[string]*memoryUser // by uid
	byEmail map[string]string
	tokens  map[string]string // token -> uid
	codes   map[string]string // verification code -> uid
}

type memoryUser struct {
	identity models.Identity
	password crypto.PasswordHash
}

// NewMemoryProvider returns an empty provider. Verification links point at
// actionURL.
func NewMemoryProvider(actionURL string) *MemoryProvider {
	return &MemoryProvider{
		actionURL: actionURL,
		users:     make(map[string]*memoryUser),
		byEmail:   make(map[string]string),
		tokens:    make(map[string]string),
		codes:     make(map[string]string),
	}
}

func (p *MemoryProvider) issue(uid string) string {
	token := uuid.NewString()
	p.tokens[token] = uid
	return token
}

func (p *MemoryProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.byEmail[email]
	if !ok {
		return nil, ErrInvalidCredential
	}
	user := p.users[uid]
	if user.identity.Provider != models.ProviderPassword || !user.password.Matches(password) {
		return nil, ErrInvalidCredential
	}
	identity := user.identity
	return &models.AuthSession{IDToken: p.issue(uid), ExpiresIn: 3600, Identity: &identity}, nil
}

func (p *MemoryProvider) CreateUser(ctx context.Context, email, password string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return nil, ErrEmailExists
	}
	uid := uuid.NewString()
	user := &memoryUser{
		identity: models.Identity{UID: uid, Email: email, Provider: models.ProviderPassword},
		password: hash,
	}
	p.users[uid] = user
	p.byEmail[email] = uid
	identity := user.identity
	return &identity, nil
}

func (p *MemoryProvider) EmailVerificationLink(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.byEmail[email]
	if !ok {
		return "", ErrUserNotFound
	}
	code := uuid.NewString()
	p.codes[code] = uid
	return p.actionURL + "?mode=verifyEmail&oobCode=" + url.QueryEscape(code), nil
}

// ApplyVerificationCode marks the account owning code as verified.
func (p *MemoryProvider) ApplyVerificationCode(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.codes[code]
	if !ok {
		return ErrInvalidToken
	}
	delete(p.codes, code)
	p.users[uid].identity.EmailVerified = true
	return nil
}

// AddFederatedUser registers an account from an external provider and
// returns an ID token for it, as a provider popup would.
func (p *MemoryProvider) AddFederatedUser(email, displayName, provider string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.byEmail[email]
	if !ok {
		uid = uuid.NewString()
		p.users[uid] = &memoryUser{identity: models.Identity{
			UID: uid, Email: email, DisplayName: displayName, EmailVerified: true, Provider: provider,
		}}
		p.byEmail[email] = uid
	}
	return p.issue(uid)
}

// VerifyIDToken resolves a token issued by this provider. Revoked tokens are
// removed, so checkRevoked has no extra effect.
func (p *MemoryProvider) VerifyIDToken(ctx context.Context, idToken string, _ bool) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.tokens[idToken]
	if !ok {
		return nil, ErrInvalidToken
	}
	identity := p.users[uid].identity
	return &identity, nil
}

func (p *MemoryProvider) Revoke(ctx context.Context, uid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for token, owner := range p.tokens {
		if owner == uid {
			delete(p.tokens, token)
		}
	}
	return nil
}
