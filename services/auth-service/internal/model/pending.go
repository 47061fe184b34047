package model

// PendingRegistration is a registration awaiting email confirmation. It
// lives in the code store until it is confirmed or expires.
type PendingRegistration struct {
	Email        string   `json:"email"`
	PasswordHash string   `json:"password_hash"`
	Salt         string   `json:"salt"`
	UserType     UserType `json:"user_type"`
}
