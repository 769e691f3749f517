package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/storahq/stora/internal/models"
)

// adminClient is the part of *auth.Client the provider uses.
type adminClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	EmailVerificationLink(ctx context.Context, email string) (string, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseProvider implements the auth flows on Firebase Auth. Password
// sign-in goes through the Identity Toolkit REST API with the web API key,
// everything else through the Admin SDK.
type FirebaseProvider struct {
	admin   adminClient
	toolkit *identitytoolkit.RelyingpartyService
	logger  *zap.Logger
}

// NewFirebaseProvider builds the provider. Extra options are passed to the
// Identity Toolkit client.
func NewFirebaseProvider(ctx context.Context, admin *auth.Client, webAPIKey string, logger *zap.Logger, opts ...option.ClientOption) (*FirebaseProvider, error) {
	return newFirebaseProvider(ctx, admin, logger, append([]option.ClientOption{option.WithAPIKey(webAPIKey)}, opts...)...)
}

func newFirebaseProvider(ctx context.Context, admin adminClient, logger *zap.Logger, opts ...option.ClientOption) (*FirebaseProvider, error) {
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit.NewService: %w", err)
	}
	return &FirebaseProvider{admin: admin, toolkit: svc.Relyingparty, logger: logger}, nil
}

// SignInWithPassword exchanges an email and password for an ID token.
func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	resp, err := p.toolkit.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapToolkitError(err)
	}

	user, err := p.admin.GetUser(ctx, resp.LocalId)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s after sign in: %w", resp.LocalId, err)
	}
	return &models.AuthSession{
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		Identity: &models.Identity{
			UID:           user.UID,
			Email:         user.Email,
			DisplayName:   user.DisplayName,
			EmailVerified: user.EmailVerified,
			Provider:      models.ProviderPassword,
		},
	}, nil
}

// CreateUser registers an email/password account.
func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password string) (*models.Identity, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password).EmailVerified(false)
	user, err := p.admin.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	p.logger.Info("User created", zap.String("uid", user.UID))
	return &models.Identity{UID: user.UID, Email: user.Email, Provider: models.ProviderPassword}, nil
}

// EmailVerificationLink generates the verification action link for email.
func (p *FirebaseProvider) EmailVerificationLink(ctx context.Context, email string) (string, error) {
	link, err := p.admin.EmailVerificationLink(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to generate verification link: %w", err)
	}
	return link, nil
}

// VerifyIDToken verifies a Firebase ID token and returns its identity.
func (p *FirebaseProvider) VerifyIDToken(ctx context.Context, idToken string, checkRevoked bool) (*models.Identity, error) {
	var (
		token *auth.Token
		err   error
	)
	if checkRevoked {
		token, err = p.admin.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = p.admin.VerifyIDToken(ctx, idToken)
	}
	if err != nil {
		p.logger.Debug("ID token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return IdentityFromToken(token), nil
}

// Revoke invalidates every refresh token of uid.
func (p *FirebaseProvider) Revoke(ctx context.Context, uid string) error {
	if err := p.admin.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("failed to revoke tokens for %s: %w", uid, err)
	}
	return nil
}

// IdentityFromToken reads the identity claims of a verified token.
func IdentityFromToken(token *auth.Token) *models.Identity {
	id := &models.Identity{UID: token.UID, Provider: token.Firebase.SignInProvider}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if verified, ok := token.Claims["email_verified"].(bool); ok {
		id.EmailVerified = verified
	}
	return id
}

// mapToolkitError converts Identity Toolkit error codes to package errors.
// The API reports the code as the message, optionally followed by " : detail".
func mapToolkitError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("sign in request failed: %w", err)
	}
	code := strings.TrimSpace(strings.SplitN(gerr.Message, ":", 2)[0])
	if code == "" && len(gerr.Errors) > 0 {
		code = gerr.Errors[0].Message
	}
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL":
		return ErrInvalidCredential
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	case "EMAIL_EXISTS":
		return ErrEmailExists
	}
	return fmt.Errorf("sign in rejected (%s): %w", code, err)
}
