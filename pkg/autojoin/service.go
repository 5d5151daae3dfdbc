package autojoin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groveauth/grove/pkg/hierarchy"
)

// Service manages auto-join domain records: registration, DNS ownership
// verification, and matching a registering user's email domain to a
// membership grant.
type Service struct {
	store      Store
	resolver   TXTResolver
	dnsTimeout time.Duration
}

// NewService creates a new auto-join service
func NewService(store Store, resolver TXTResolver, dnsTimeout time.Duration) *Service {
	if dnsTimeout == 0 {
		dnsTimeout = 5 * time.Second
	}
	return &Service{
		store:      store,
		resolver:   resolver,
		dnsTimeout: dnsTimeout,
	}
}

// AddDomain registers a new domain for auto-join. The record starts PENDING
// with a fresh verification code; it must pass Verify before Resolve will
// ever match it. Public email providers are rejected outright.
func (s *Service) AddDomain(ctx context.Context, domain string, role hierarchy.Role, scope hierarchy.ResourceType, scopeID string) (*Domain, error) {
	domain = NormalizeDomain(domain)
	if !domainPattern.MatchString(domain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if IsPublicEmailDomain(domain) {
		return nil, fmt.Errorf("%w: %q", ErrPublicEmailDomain, domain)
	}
	if !role.Grantable() {
		return nil, fmt.Errorf("role %q cannot be granted", role)
	}
	if scope != hierarchy.ResourceOrganization && scope != hierarchy.ResourceCompany {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	if scopeID == "" {
		return nil, fmt.Errorf("scope id is required")
	}

	code, err := generateVerificationCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	record := &Domain{
		ID:               uuid.NewString(),
		Domain:           domain,
		Role:             role,
		Scope:            scope,
		ScopeID:          scopeID,
		Status:           StatusPending,
		VerificationCode: code,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Verify performs the DNS TXT ownership check for a domain record. Success
// requires at least one TXT record containing
// "grove-verification=<code>"; the record then transitions to VERIFIED.
// Verifying an already-VERIFIED record is a no-op success. Any DNS failure
// or missing code leaves the record PENDING and returns
// ErrVerificationFailed; retries are the caller's decision.
func (s *Service) Verify(ctx context.Context, id string) (*Domain, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	if record.Status == StatusVerified {
		return record, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.dnsTimeout)
	defer cancel()

	records, err := s.resolver.LookupTXT(lookupCtx, record.Domain)
	if err != nil {
		return nil, fmt.Errorf("%w: DNS lookup for %q: %v", ErrVerificationFailed, record.Domain, err)
	}

	expected := fmt.Sprintf("%s=%s", VerificationPrefix, record.VerificationCode)
	for _, txt := range records {
		if strings.Contains(txt, expected) {
			return s.store.MarkVerified(ctx, id)
		}
	}
	return nil, fmt.Errorf("%w: no TXT record with expected code on %q", ErrVerificationFailed, record.Domain)
}

// GetDomain returns a domain record by ID
func (s *Service) GetDomain(ctx context.Context, id string) (*Domain, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// ListDomains returns domain records for a scope
func (s *Service) ListDomains(ctx context.Context, scope hierarchy.ResourceType, scopeID string) ([]*Domain, error) {
	return s.store.List(ctx, string(scope), scopeID)
}

// DeleteDomain removes a domain record
func (s *Service) DeleteDomain(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// PurgeStalePending removes PENDING records older than ttl and returns how
// many were deleted
func (s *Service) PurgeStalePending(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.store.PurgePending(ctx, time.Now().Add(-ttl))
}

// Resolve matches an email domain against VERIFIED records and returns the
// membership grant a registering user should receive, or nil when no
// verified record matches. A company-scoped match takes precedence over an
// organization-scoped one for the same domain.
func (s *Service) Resolve(ctx context.Context, emailDomain string) (*Grant, error) {
	emailDomain = NormalizeDomain(emailDomain)
	if emailDomain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrInvalidDomain)
	}

	records, err := s.store.FindVerified(ctx, emailDomain)
	if err != nil {
		return nil, err
	}

	var orgMatch *Domain
	for _, record := range records {
		switch record.Scope {
		case hierarchy.ResourceCompany:
			return &Grant{Scope: record.Scope, ScopeID: record.ScopeID, Role: record.Role}, nil
		case hierarchy.ResourceOrganization:
			if orgMatch == nil {
				orgMatch = record
			}
		}
	}
	if orgMatch != nil {
		return &Grant{Scope: orgMatch.Scope, ScopeID: orgMatch.ScopeID, Role: orgMatch.Role}, nil
	}
	return nil, nil
}

// ResolveEmail extracts the domain from an email address and resolves it
func (s *Service) ResolveEmail(ctx context.Context, email string) (*Grant, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return nil, fmt.Errorf("%w: malformed email %q", ErrInvalidDomain, email)
	}
	return s.Resolve(ctx, email[at+1:])
}

// NormalizeDomain lowercases and trims a domain name
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// generateVerificationCode returns a random 32-character hex code
func generateVerificationCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
