package autojoin

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/groveauth/grove/pkg/hierarchy"
)

// Status is the verification state of a domain record
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
)

// VerificationPrefix is the product prefix expected in DNS TXT records:
// a domain proves ownership by publishing
// "grove-verification=<verification code>".
const VerificationPrefix = "grove-verification"

// Domain maps a verified email domain to a starting membership grant
type Domain struct {
	ID               string                 `json:"id"`
	Domain           string                 `json:"domain"`
	Role             hierarchy.Role         `json:"role"`
	Scope            hierarchy.ResourceType `json:"scope"`
	ScopeID          string                 `json:"scope_id"`
	Status           Status                 `json:"status"`
	VerificationCode string                 `json:"verification_code,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	VerifiedAt       *time.Time             `json:"verified_at,omitempty"`
}

// Grant is the membership a registering user should receive
type Grant struct {
	Scope   hierarchy.ResourceType `json:"scope"`
	ScopeID string                 `json:"scope_id"`
	Role    hierarchy.Role         `json:"role"`
}

var (
	// ErrNotFound indicates the domain record does not exist
	ErrNotFound = errors.New("autojoin domain not found")
	// ErrDuplicateDomain indicates the (domain, scope id) pair already exists
	ErrDuplicateDomain = errors.New("autojoin domain already registered for this scope")
	// ErrInvalidDomain indicates a malformed domain name
	ErrInvalidDomain = errors.New("invalid domain name")
	// ErrPublicEmailDomain indicates a denylisted public email provider
	ErrPublicEmailDomain = errors.New("public email domains cannot be used for auto-join")
	// ErrInvalidScope indicates a scope outside organization/company
	ErrInvalidScope = errors.New("autojoin scope must be organization or company")
	// ErrVerificationFailed indicates the DNS TXT check did not match
	ErrVerificationFailed = errors.New("domain verification failed")
)

// publicEmailDomains are providers that can never be registered for
// auto-join
var publicEmailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"aol.com":     true,
	"icloud.com":  true,
	"msn.com":     true,
}

// IsPublicEmailDomain reports whether the domain is a denylisted public
// email provider
func IsPublicEmailDomain(domain string) bool {
	return publicEmailDomains[domain]
}

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// TXTResolver resolves DNS TXT records. *net.Resolver satisfies it.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}
