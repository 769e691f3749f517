package models

import "time"

// Team roles. They are display-only and grant nothing.
const (
	RoleMember = "Member"
	RoleAdmin  = "Admin"
	RoleEditor = "Editor"
	RoleViewer = "Viewer"
)

// ValidRole reports whether role is one of the known tags.
func ValidRole(role string) bool {
	switch role {
	case RoleMember, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// TeamMember is an entry of the user's team list.
type TeamMember struct {
	ID        string    `json:"id" firestore:"-"`
	Name      string    `json:"name" firestore:"name"`
	Role      string    `json:"role" firestore:"role"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" firestore:"updatedAt"`
}

func (m TeamMember) Fields() map[string]interface{} {
	return map[string]interface{}{
		"name":      m.Name,
		"role":      m.Role,
		"createdAt": m.CreatedAt,
		"updatedAt": m.UpdatedAt,
	}
}
