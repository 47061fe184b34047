package model

import (
	"time"
)

// AuthProvider names the mechanism an identity was created with.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
	ProviderGithub AuthProvider = "github"
)

// UserType distinguishes individual and corporate accounts.
type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeCorporate  UserType = "corporate"
)

// NotificationMethod is the channel a user prefers for notifications.
type NotificationMethod string

const (
	NotifyEmail    NotificationMethod = "email"
	NotifySMS      NotificationMethod = "sms"
	NotifyEmailSMS NotificationMethod = "email_sms"
)

// Identity represents a user's identity in the authentication system.
// It covers both local authentication (email or phone and password) and
// identities federated from external providers (Google, GitHub).
type Identity struct {
	ID                 string             `gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Email              string             `gorm:"uniqueIndex;not null" bson:"email"`
	PhoneNumber        *string            `gorm:"uniqueIndex" bson:"phone_number,omitempty"`
	PasswordHash       string             `gorm:"not null" bson:"password_hash"`
	Salt               string             `gorm:"not null" bson:"salt"`
	FirstName          string             `bson:"first_name"`
	LastName           string             `bson:"last_name"`
	ProfileImage       string             `bson:"profile_image"`
	UserType           UserType           `gorm:"type:varchar(16);not null" bson:"user_type"`
	IsActive           bool               `gorm:"not null" bson:"is_active"`
	IsDeleted          bool               `gorm:"not null" bson:"is_deleted"`
	AuthProvider       AuthProvider       `gorm:"type:varchar(16);not null" bson:"auth_provider"`
	GoogleID           *string            `gorm:"uniqueIndex" bson:"google_id,omitempty"`
	GoogleAccessToken  string             `bson:"google_access_token,omitempty"`
	GithubID           *string            `gorm:"uniqueIndex" bson:"github_id,omitempty"`
	GithubAccessToken  string             `bson:"github_access_token,omitempty"`
	NotificationMethod NotificationMethod `gorm:"type:varchar(16);not null" bson:"notification_method"`
	CreatedAt          time.Time          `bson:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at"`
}

// TableName pins the relational table name.
func (Identity) TableName() string {
	return "identities"
}

// IsLocal reports whether the identity authenticates with a password.
func (i *Identity) IsLocal() bool {
	return i.AuthProvider == ProviderLocal
}

// IsUsable reports whether the identity may sign in.
func (i *Identity) IsUsable() bool {
	return i.IsActive && !i.IsDeleted
}

// Phone returns the phone number or an empty string.
func (i *Identity) Phone() string {
	if i.PhoneNumber == nil {
		return ""
	}
	return *i.PhoneNumber
}

// FullName joins first and last name.
func (i *Identity) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}

// ProviderIDColumn returns the column holding the external id for p.
func ProviderIDColumn(p AuthProvider) string {
	switch p {
	case ProviderGoogle:
		return "google_id"
	case ProviderGithub:
		return "github_id"
	default:
		return ""
	}
}
