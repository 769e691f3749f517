package models

// SignInRequest is the body of POST /auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Callback string `json:"callback,omitempty"`
}

// SignUpRequest is the body of POST /auth/sign-up.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// FederatedSignInRequest carries an ID token obtained from a provider popup.
type FederatedSignInRequest struct {
	IDToken  string `json:"idToken"`
	Callback string `json:"callback,omitempty"`
	// Canceled is set by the client when the popup was closed by the user.
	Canceled bool `json:"canceled,omitempty"`
}

// CreateFolderRequest is the body of POST /folders.
type CreateFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

// NoteRequest creates or replaces a note.
type NoteRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

// TeamMemberRequest creates or replaces a team member.
type TeamMemberRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role,omitempty"`
}
