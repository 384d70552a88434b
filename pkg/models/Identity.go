package models

import (
	"fmt"
	"strings"
	"time"
)

var (
	ErrIdentityNotFound   = fmt.Errorf("identity not found")
	ErrClientNotFound     = fmt.Errorf("client not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrEmailNotConfirmed  = fmt.Errorf("email not confirmed")
	ErrEmailTaken         = fmt.Errorf("email already registered")
	ErrInvalidRole        = fmt.Errorf("invalid role")
	ErrWrongRole          = fmt.Errorf("identity does not have the required role")
	ErrInvalidCode        = fmt.Errorf("invalid or expired confirmation code")
)

/*
Role is the closed set of roles an identity can hold. Identities are
created with exactly one of these values and never change role.
*/
type Role string

const (
	RolePhotographer Role = "photographer"
	RoleClient       Role = "client"
)

func (r Role) IsValid() bool {
	return r == RolePhotographer || r == RoleClient
}

// ParseRole accepts only the two known roles.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))

	if !role.IsValid() {
		return "", fmt.Errorf("%w: '%s'", ErrInvalidRole, value)
	}

	return role, nil
}

type Identity struct {
	BaseModel

	Email            string     `db:"email"`
	PasswordHash     string     `db:"password_hash"`
	Role             Role       `db:"role"`
	FullName         string     `db:"full_name"`
	Company          string     `db:"company"`
	Phone            string     `db:"phone"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at"`
	ConfirmationCode string     `db:"confirmation_code"`
}

func (i *Identity) IsConfirmed() bool {
	return i.EmailConfirmedAt != nil
}

func (i *Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}

	return i.Email
}
