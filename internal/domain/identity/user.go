// internal/domain/identity/user.go

package identity

// User is the identity asserted by the external OAuth provider in front of
// the service. Authentication itself happens upstream.
type User struct {
	ID            string `json:"id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous is the identity used when no provider headers are present
var Anonymous = User{DisplayName: "Guest"}

// Name returns the display name, falling back to the subject ID
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.ID != "" {
		return u.ID
	}
	return Anonymous.DisplayName
}
