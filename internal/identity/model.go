package identity

import "time"

// User is the account record owned by the credential store.
type User struct {
	ID               string    `json:"_id"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	PasswordHash     []byte    `json:"-"`
	ProfilePic       string    `json:"profilePic"`
	Bio              string    `json:"bio"`
	NativeLanguage   string    `json:"nativeLanguage"`
	LearningLanguage string    `json:"learningLanguage"`
	Location         string    `json:"location"`
	ExternalID       string    `json:"-"`
	EmailVerified    bool      `json:"isEmailVerified"`
	Onboarded        bool      `json:"isOnboarded"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasPassword is false for accounts created through federated sign-in.
func (u User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

// NewUser is the input to Service.CreateUser.
type NewUser struct {
	Email      string `json:"email" validate:"required,mailbox"`
	Password   string `json:"password"`
	FullName   string `json:"fullName" validate:"required"`
	ProfilePic string `json:"profilePic"`
	ExternalID string `json:"-"`
	// EmailPreverified marks accounts vouched for by an identity provider.
	// They may omit the password.
	EmailPreverified bool `json:"-"`
}

// Profile holds the onboarding fields.
type Profile struct {
	FullName         string `json:"fullName" validate:"required"`
	Bio              string `json:"bio" validate:"required"`
	NativeLanguage   string `json:"nativeLanguage" validate:"required"`
	LearningLanguage string `json:"learningLanguage" validate:"required"`
	Location         string `json:"location" validate:"required"`
	ProfilePic       string `json:"profilePic"`
}
