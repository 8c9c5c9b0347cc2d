package device

import "time"

// Metadata is descriptive client information captured when a device is trusted.
type Metadata struct {
	UserAgent string `json:"userAgent"`
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	IP        string `json:"ip"`
}

// Device is a (user, fingerprint) pair that skips the login step-up.
type Device struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Fingerprint string    `json:"-"`
	Metadata    Metadata  `json:"deviceInfo"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}
