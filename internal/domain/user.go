package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated principal inside one organization.
type User struct {
	AggregateRoot

	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	Email               Email
	Phone               *Phone
	PasswordHash        PasswordHash
	FullName            string
	IsActive            bool
	EmailVerified       bool
	PhoneVerified       bool
	LastLoginAt         *time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
	Metadata            map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewUser creates an active, unverified user.
func NewUser(orgID uuid.UUID, email Email, hash PasswordHash, fullName string) (*User, error) {
	if orgID == uuid.Nil {
		return nil, E(CodeValidationError, "organization id is required")
	}
	if hash == "" {
		return nil, E(CodeValidationError, "password hash is required")
	}

	now := time.Now().UTC()
	u := &User{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Email:          email,
		PasswordHash:   hash,
		FullName:       fullName,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	u.Raise(UserRegistered{
		BaseEvent: newBaseEvent(u.ID, orgID, "user"),
		Email:     email.String(),
	})
	return u, nil
}

// IsLocked reports whether the lockout window is still open.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RecordFailedLogin increments the failure counter and, when the threshold is
// reached, opens the lockout window and resets the counter.
func (u *User) RecordFailedLogin(threshold int, lockout time.Duration) {
	now := time.Now().UTC()
	u.FailedLoginAttempts++
	u.UpdatedAt = now

	if u.FailedLoginAttempts >= threshold {
		until := now.Add(lockout)
		u.LockedUntil = &until
		u.FailedLoginAttempts = 0
		u.Raise(UserLockedOut{
			BaseEvent: newBaseEvent(u.ID, u.OrganizationID, "user"),
			UnlockAt:  until,
		})
	}
}

// RecordSuccessfulLogin clears the failure counter and lockout window.
func (u *User) RecordSuccessfulLogin(ip string) {
	now := time.Now().UTC()
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.UpdatedAt = now
	u.Raise(UserLoggedIn{
		BaseEvent: newBaseEvent(u.ID, u.OrganizationID, "user"),
		Email:     u.Email.String(),
		IP:        ip,
	})
}

// ChangePassword replaces the hash and resets the failure counter.
// The caller must also revoke all refresh tokens in the same transaction.
func (u *User) ChangePassword(hash PasswordHash) error {
	if hash == "" {
		return E(CodeValidationError, "password hash is required")
	}
	u.PasswordHash = hash
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = time.Now().UTC()
	u.Raise(UserPasswordChanged{BaseEvent: newBaseEvent(u.ID, u.OrganizationID, "user")})
	return nil
}

// VerifyEmail marks the address as verified.
func (u *User) VerifyEmail() {
	if u.EmailVerified {
		return
	}
	u.EmailVerified = true
	u.UpdatedAt = time.Now().UTC()
	u.Raise(UserEmailVerified{BaseEvent: newBaseEvent(u.ID, u.OrganizationID, "user")})
}

// Deactivate disables the account. The caller must revoke refresh tokens.
func (u *User) Deactivate() {
	if !u.IsActive {
		return
	}
	u.IsActive = false
	u.UpdatedAt = time.Now().UTC()
	u.Raise(UserDeactivated{BaseEvent: newBaseEvent(u.ID, u.OrganizationID, "user")})
}
