package core

import (
	"fmt"
	"strings"
	"time"
)

// CredentialKind selects how a principal is looked up.
type CredentialKind string

const (
	CredentialPhone       CredentialKind = "phone"
	CredentialInstitution CredentialKind = "institution"
)

// Role of an authenticated principal.
type Role string

const (
	RoleLender           Role = "lender"
	RoleInstitutionAdmin Role = "institution-admin"
)

// LandingPath is where the front end sends the principal after login.
func (r Role) LandingPath() string {
	switch r {
	case RoleInstitutionAdmin:
		return "/admin/dashboard"
	case RoleLender:
		return "/lender/dashboard"
	default:
		return "/"
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleLender || r == RoleInstitutionAdmin
}

// PrincipalStatus is the registration status of a principal.
type PrincipalStatus string

const (
	StatusActive   PrincipalStatus = "active"
	StatusDisabled PrincipalStatus = "disabled"
)

// Principal is an authenticatable identity. It is created at registration
// time by an external system and is read-only here.
type Principal struct {
	ID              string
	Role            Role
	Status          PrincipalStatus
	Phone           string // lenders
	InstitutionCode string // institution admins
	AccountNumber   string // institution admins
	SecretHash      string // bcrypt hash, institution admins only
	CreatedAt       time.Time
}

// Active reports whether the principal may authenticate.
func (p *Principal) Active() bool {
	return p.Status == StatusActive
}

// NormalizePhone strips formatting characters and an optional leading '+' from
// a phone number. The result is 8 to 15 digits, so "+254..." and "254..."
// name the same principal.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("phone contains %q: %w", r, ErrInvalidCredential)
		}
	}
	phone := b.String()
	if len(phone) < 8 || len(phone) > 15 {
		return "", fmt.Errorf("phone must have 8-15 digits: %w", ErrInvalidCredential)
	}
	return phone, nil
}

// ParseInstitutionCredential splits "<institutionCode>:<accountNumber>".
func ParseInstitutionCredential(raw string) (code, account string, err error) {
	code, account, ok := strings.Cut(raw, ":")
	code = strings.ToUpper(strings.TrimSpace(code))
	account = strings.TrimSpace(account)
	if !ok || code == "" || account == "" {
		return "", "", fmt.Errorf("institution credential must be code:account: %w", ErrInvalidCredential)
	}
	return code, account, nil
}
