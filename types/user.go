package types

import "time"

// Role is the authorization level of a user profile.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// UserProfile maps an authenticated account to its application identity.
type UserProfile struct {
	// ID is the store-assigned id of the profile document.
	ID string `json:"id"`

	// AccountID references the auth account this profile belongs to.
	// It is unique and never changes after registration.
	AccountID string `json:"accountId"`

	// Email is the account's email address.
	Email string `json:"email"`

	// Username is the display name chosen at sign-up.
	Username string `json:"username"`

	// Role indicates what the user is allowed to do (admin, editor, viewer).
	Role Role `json:"role"`

	// CreatedAt is when the profile document was created.
	CreatedAt time.Time `json:"-"`
}

// RoleCapabilities is the fixed capability set granted to a role.
type RoleCapabilities struct {
	CanCreateList    bool `json:"canCreateList"`
	CanEditList      bool `json:"canEditList"`
	CanDeleteList    bool `json:"canDeleteList"`
	CanManageUsers   bool `json:"canManageUsers"`
	CanViewAnalytics bool `json:"canViewAnalytics"`
	CanExportData    bool `json:"canExportData"`
}

// Account is the identity issued by the auth transport.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is an authenticated session handed out by the auth transport.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
