package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/identity"
	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/pkg/mailer"
)

// ErrSignInCanceled is returned when the user closed the provider popup.
var ErrSignInCanceled = errors.New("sign in canceled by user")

// Auth page paths and callbacks.
const (
	CheckoutCallback = "/checkout/pro"
	DashboardPath    = "/dashboard"
	AuthPath         = "/auth"
)

// AuthFlow names the flow an auth error came from.
type AuthFlow int

const (
	FlowSignIn AuthFlow = iota
	FlowSignUp
	FlowFederated
)

// AuthErrorMessage is the user-facing message for err. Unknown errors
// collapse to a generic message per flow; a canceled popup has none.
func AuthErrorMessage(flow AuthFlow, err error) string {
	switch flow {
	case FlowSignIn:
		if errors.Is(err, identity.ErrInvalidCredential) || errors.Is(err, identity.ErrUserNotFound) ||
			errors.Is(err, identity.ErrInvalidEmail) {
			return "Email or password is incorrect"
		}
		return "An error occurred during sign in"
	case FlowSignUp:
		switch {
		case errors.Is(err, identity.ErrEmailExists):
			return "User already exists. Please sign in"
		case errors.Is(err, identity.ErrInvalidEmail):
			return "Please enter a valid email address"
		case errors.Is(err, identity.ErrWeakPassword):
			return "Password should be at least 6 characters"
		}
		return "An error occurred during sign up"
	case FlowFederated:
		if errors.Is(err, ErrSignInCanceled) {
			return ""
		}
		return "An error occurred during Google Sign-In"
	}
	return "An unexpected error occurred"
}

// SignInResult tells the client where to go next. Session is nil when the
// account still has to verify its email.
type SignInResult struct {
	Session              *models.AuthSession `json:"session,omitempty"`
	Redirect             string              `json:"redirect"`
	VerificationRequired bool                `json:"verificationRequired,omitempty"`
	Email                string              `json:"email,omitempty"`
}

// SignUpResult reports a created account. No session is established.
type SignUpResult struct {
	Identity         *models.Identity `json:"identity"`
	Email            string           `json:"email"`
	VerificationSent bool             `json:"verificationSent"`
}

// AuthView is the state of the auth page.
type AuthView struct {
	VerificationSent bool   `json:"verificationSent"`
	Email            string `json:"email,omitempty"`
	Callback         string `json:"callback,omitempty"`
}

// UnverifiedRedirect is the auth page URL shown to unverified accounts.
func UnverifiedRedirect(email string) string {
	return AuthPath + "?unverified=true&email=" + url.QueryEscape(email)
}

type authService struct {
	provider AuthProvider
	billing  BillingService
	mail     mailer.Mailer
	logger   *zap.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(provider AuthProvider, billing BillingService, mail mailer.Mailer, logger *zap.Logger) AuthService {
	return &authService{provider: provider, billing: billing, mail: mail, logger: logger}
}

func (s *authService) redirectFor(callback string, id *models.Identity) string {
	if callback == CheckoutCallback {
		link, err := s.billing.CheckoutURL(id)
		if err == nil {
			return link
		}
		s.logger.Error("Checkout link unavailable, sending to dashboard", zap.Error(err))
	}
	return DashboardPath
}

// SignIn signs in with email and password. Unverified accounts are signed
// straight out again.
func (s *authService) SignIn(ctx context.Context, req models.SignInRequest) (*SignInResult, error) {
	session, err := s.provider.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	id := session.Identity
	if id.RequiresVerification() {
		if err := s.provider.Revoke(ctx, id.UID); err != nil {
			s.logger.Warn("Failed to revoke unverified session", zap.String("uid", id.UID), zap.Error(err))
		}
		return &SignInResult{
			Redirect:             UnverifiedRedirect(id.Email),
			VerificationRequired: true,
			Email:                id.Email,
		}, nil
	}
	return &SignInResult{Session: session, Redirect: s.redirectFor(req.Callback, id)}, nil
}

// SignUp creates the account and mails the verification link.
func (s *authService) SignUp(ctx context.Context, req models.SignUpRequest) (*SignUpResult, error) {
	if err := identity.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := identity.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	created, err := s.provider.CreateUser(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	result := &SignUpResult{Identity: created, Email: created.Email}
	if err := s.sendVerification(ctx, created.Email); err != nil {
		s.logger.Error("Failed to send verification email", zap.String("uid", created.UID), zap.Error(err))
		return result, nil
	}
	result.VerificationSent = true
	return result, nil
}

func (s *authService) sendVerification(ctx context.Context, email string) error {
	link, err := s.provider.EmailVerificationLink(ctx, email)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("<html><body><p>Welcome to Stora.</p><p>Verify your email address to sign in: "+
		"<a href=\"%s\">verify email</a></p></body></html>", link)
	return s.mail.Send(ctx, mailer.Message{To: email, Subject: "Verify your email for Stora", Body: body})
}

// FederatedSignIn accepts an ID token obtained from a provider popup.
func (s *authService) FederatedSignIn(ctx context.Context, req models.FederatedSignInRequest) (*SignInResult, error) {
	if req.Canceled {
		return nil, ErrSignInCanceled
	}
	if req.IDToken == "" {
		return nil, identity.ErrInvalidToken
	}
	id, err := s.provider.VerifyIDToken(ctx, req.IDToken, false)
	if err != nil {
		return nil, err
	}
	session := &models.AuthSession{IDToken: req.IDToken, Identity: id}
	return &SignInResult{Session: session, Redirect: s.redirectFor(req.Callback, id)}, nil
}

func (s *authService) SignOut(ctx context.Context, uid string) error {
	return s.provider.Revoke(ctx, uid)
}

func (s *authService) View(params url.Values) AuthView {
	view := AuthView{Callback: params.Get("callback")}
	if email := params.Get("email"); params.Get("unverified") == "true" && email != "" {
		view.VerificationSent = true
		view.Email = email
	}
	return view
}
