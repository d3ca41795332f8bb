package models

// SerializedUser is the identity shape the rest of the application consumes.
// Only UID participates in record ownership.
type SerializedUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}
