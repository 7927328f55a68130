package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Email is a normalized, validated email address.
type Email string

// NewEmail validates and normalizes an address to lowercase.
func NewEmail(raw string) (Email, error) {
	addr := strings.TrimSpace(strings.ToLower(raw))
	if addr == "" {
		return "", E(CodeValidationError, "email is required")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", E(CodeValidationError, "invalid email format")
	}
	return Email(addr), nil
}

func (e Email) String() string { return string(e) }

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// Phone is an E.164-style phone number without formatting characters.
type Phone string

// NewPhone validates and normalizes a phone number.
func NewPhone(raw string) (Phone, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if !phonePattern.MatchString(cleaned) {
		return "", E(CodeValidationError, "invalid phone number")
	}
	return Phone(strings.TrimPrefix(cleaned, "+")), nil
}

func (p Phone) String() string { return string(p) }

// PasswordHash is the opaque at-rest form of a password. It must never be
// logged or serialized; both String and MarshalJSON redact it.
type PasswordHash string

func (PasswordHash) String() string { return "[REDACTED]" }

func (PasswordHash) MarshalJSON() ([]byte, error) { return []byte(`"[REDACTED]"`), nil }

var permissionPattern = regexp.MustCompile(`^[a-z_]+:[a-z_]+$`)

// Permission is a "resource:action" grant string.
type Permission string

// NewPermission validates the resource:action shape.
func NewPermission(raw string) (Permission, error) {
	if !permissionPattern.MatchString(raw) {
		return "", E(CodeValidationError, fmt.Sprintf("invalid permission %q", raw))
	}
	return Permission(raw), nil
}

func (p Permission) String() string { return string(p) }

// Resource returns the left-hand side of the permission.
func (p Permission) Resource() string {
	parts := strings.SplitN(string(p), ":", 2)
	return parts[0]
}

// Action returns the right-hand side of the permission.
func (p Permission) Action() string {
	parts := strings.SplitN(string(p), ":", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// UnionPermissions deduplicates and merges permission sets from multiple roles.
func UnionPermissions(sets ...[]Permission) []Permission {
	seen := make(map[Permission]struct{})
	var out []Permission
	for _, set := range sets {
		for _, p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// NewSlug validates a lowercase kebab-case slug.
func NewSlug(raw string) (string, error) {
	slug := strings.TrimSpace(strings.ToLower(raw))
	if len(slug) < 2 || len(slug) > 64 || !slugPattern.MatchString(slug) {
		return "", E(CodeValidationError, "slug must be lowercase kebab-case")
	}
	return slug, nil
}
