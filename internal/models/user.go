package models

// User represents a registered user profile.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Bio          string `json:"bio"`
	AvatarURL    string `json:"avatar_url"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// Public returns a copy of the user safe to publish to other users:
// the password hash is stripped.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
