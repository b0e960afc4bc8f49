package models

// User represents a signed-in MedChat principal. It is created server-side
// on signup and cached client-side after login; the backend stays the source
// of truth.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}
