package core

import (
	"context"
	"io"
	"net/url"

	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/internal/objectstore"
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string, checkRevoked bool) (*models.Identity, error)
}

// AuthProvider is the auth collaborator behind the auth flows.
type AuthProvider interface {
	TokenVerifier
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	CreateUser(ctx context.Context, email, password string) (*models.Identity, error)
	EmailVerificationLink(ctx context.Context, email string) (string, error)
	Revoke(ctx context.Context, uid string) error
}

// EntitlementChecker answers one-shot "is this user pro" reads.
type EntitlementChecker interface {
	IsPro(ctx context.Context, uid string) (bool, error)
}

// AuthService defines the sign-in, sign-up and sign-out flows.
type AuthService interface {
	SignIn(ctx context.Context, req models.SignInRequest) (*SignInResult, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*SignUpResult, error)
	FederatedSignIn(ctx context.Context, req models.FederatedSignInRequest) (*SignInResult, error)
	SignOut(ctx context.Context, uid string) error
	// View reports what the auth page shows for its query parameters.
	View(params url.Values) AuthView
}

// BillingService defines the checkout link and the payment webhook.
type BillingService interface {
	CheckoutURL(identity *models.Identity) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
	ReturnNotice(upgrade string) *Notice
}

// FileUpload is one file selected for upload.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	FolderID    string
	Body        io.Reader
}

// FileService defines file and folder operations.
type FileService interface {
	Upload(ctx context.Context, uid string, upload FileUpload, progress objectstore.ProgressFunc) (*models.File, error)
	Delete(ctx context.Context, uid, fileID string) error
	List(ctx context.Context, uid string) ([]models.File, error)
	CreateFolder(ctx context.Context, uid, name string) (*models.Folder, error)
	DeleteFolder(ctx context.Context, uid, folderID string) error
	ListFolders(ctx context.Context, uid string) ([]models.Folder, error)
	Explore(ctx context.Context, uid, folderID string) (*Explorer, error)
}

// NoteService defines note operations.
type NoteService interface {
	Create(ctx context.Context, uid string, req models.NoteRequest) (*models.Note, error)
	Update(ctx context.Context, uid, noteID string, req models.NoteRequest) (*models.Note, error)
	Delete(ctx context.Context, uid, noteID string) error
	List(ctx context.Context, uid string) ([]models.Note, error)
}

// TeamService defines team list operations.
type TeamService interface {
	Create(ctx context.Context, uid string, req models.TeamMemberRequest) (*models.TeamMember, error)
	Update(ctx context.Context, uid, memberID string, req models.TeamMemberRequest) (*models.TeamMember, error)
	Delete(ctx context.Context, uid, memberID string) error
	List(ctx context.Context, uid string) ([]models.TeamMember, error)
}

// Bootstrapper provisions the placeholder billing records.
type Bootstrapper interface {
	Run(ctx context.Context, clientID string, identity *models.Identity) (BootstrapState, error)
}

// ContentSealer encrypts note bodies at rest. *crypto.Sealer implements it,
// including the nil Sealer that passes values through.
type ContentSealer interface {
	Seal(plainText string) (string, error)
	Open(value string) (string, error)
}
