package models

import "strings"

// ProviderPassword is the sign-in provider id of email/password accounts.
const ProviderPassword = "password"

// Identity is the authenticated user handle issued by Firebase Auth.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	Provider      string `json:"provider"`
}

// RequiresVerification reports whether the dashboard must stay closed
// until the email address is verified. Federated accounts are exempt.
func (i *Identity) RequiresVerification() bool {
	return i != nil && !i.EmailVerified && i.Provider == ProviderPassword
}

// Label is the name shown for the identity.
func (i *Identity) Label() string {
	if i == nil {
		return ""
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if local, _, found := strings.Cut(i.Email, "@"); found && local != "" {
		return local
	}
	return "User"
}

// AuthSession is the result of a successful sign-in.
type AuthSession struct {
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresIn    int64     `json:"expiresIn,omitempty"`
	Identity     *Identity `json:"identity"`
}
