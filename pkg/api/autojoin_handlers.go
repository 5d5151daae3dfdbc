package api

import (
	"errors"
	"net/http"

	"github.com/groveauth/grove/pkg/autojoin"
	"github.com/groveauth/grove/pkg/hierarchy"
	"github.com/groveauth/grove/pkg/httputil"
)

// AddAutoJoinDomain registers a domain for auto-join on an organization or
// company. The caller needs ADMIN on the scope node. The record starts
// PENDING with a fresh verification code.
func (s *Server) AddAutoJoinDomain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain  string `json:"domain"`
		Role    string `json:"role"`
		Scope   string `json:"scope"`
		ScopeID string `json:"scope_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Domain == "" || req.ScopeID == "" {
		httputil.WriteBadRequest(w, "domain and scope_id are required")
		return
	}

	scope, err := hierarchy.ParseResourceType(req.Scope)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	role, err := hierarchy.ParseRole(req.Role)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if !s.authorize(w, r, []hierarchy.Role{hierarchy.RoleAdmin}, scope, req.ScopeID) {
		return
	}

	domain, err := s.autojoin.AddDomain(r.Context(), req.Domain, role, scope, req.ScopeID)
	if err != nil {
		switch {
		case errors.Is(err, autojoin.ErrInvalidDomain),
			errors.Is(err, autojoin.ErrPublicEmailDomain),
			errors.Is(err, autojoin.ErrInvalidScope):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, autojoin.ErrDuplicateDomain):
			httputil.WriteConflict(w, err.Error())
		default:
			s.logger.WithError(err).Error("autojoin domain creation failed")
			httputil.WriteInternalError(w, errors.New("domain registration failed"))
		}
		return
	}

	httputil.WriteCreated(w, domain)
}

// ListAutoJoinDomains lists the auto-join records of one scope node.
// The caller needs ADMIN on that node.
func (s *Server) ListAutoJoinDomains(w http.ResponseWriter, r *http.Request) {
	scopeID := httputil.ParseQueryString(r, "scope_id", "")
	rawScope := httputil.ParseQueryString(r, "scope", "")
	if scopeID == "" || rawScope == "" {
		httputil.WriteBadRequest(w, "scope and scope_id query parameters are required")
		return
	}
	scope, err := hierarchy.ParseResourceType(rawScope)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if !s.authorize(w, r, []hierarchy.Role{hierarchy.RoleAdmin}, scope, scopeID) {
		return
	}

	domains, err := s.autojoin.ListDomains(r.Context(), scope, scopeID)
	if err != nil {
		s.logger.WithError(err).Error("autojoin domain listing failed")
		httputil.WriteInternalError(w, errors.New("domain listing failed"))
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"domains": domains,
	})
}

// VerifyAutoJoinDomain performs the DNS TXT ownership check for a PENDING
// record. Verifying an already VERIFIED record succeeds without re-checking
// DNS. There is no automatic retry; callers re-invoke after fixing their
// DNS zone.
func (s *Server) VerifyAutoJoinDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	domain, err := s.autojoin.GetDomain(r.Context(), id)
	if err != nil {
		if errors.Is(err, autojoin.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("autojoin domain lookup failed")
		httputil.WriteInternalError(w, errors.New("domain lookup failed"))
		return
	}

	if !s.authorize(w, r, []hierarchy.Role{hierarchy.RoleAdmin}, domain.Scope, domain.ScopeID) {
		return
	}

	verified, err := s.autojoin.Verify(r.Context(), id)
	if err != nil {
		if errors.Is(err, autojoin.ErrVerificationFailed) {
			if s.metrics != nil {
				s.metrics.DomainVerificationsTotal.WithLabelValues("failure").Inc()
			}
			httputil.WriteErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.WithError(err).WithField("domain", domain.Domain).Error("domain verification errored")
		httputil.WriteInternalError(w, errors.New("domain verification failed"))
		return
	}
	if s.metrics != nil {
		s.metrics.DomainVerificationsTotal.WithLabelValues("success").Inc()
	}

	httputil.WriteSuccess(w, verified)
}

// DeleteAutoJoinDomain removes an auto-join record. The caller needs ADMIN
// on the record's scope node.
func (s *Server) DeleteAutoJoinDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	domain, err := s.autojoin.GetDomain(r.Context(), id)
	if err != nil {
		if errors.Is(err, autojoin.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("autojoin domain lookup failed")
		httputil.WriteInternalError(w, errors.New("domain lookup failed"))
		return
	}

	if !s.authorize(w, r, []hierarchy.Role{hierarchy.RoleAdmin}, domain.Scope, domain.ScopeID) {
		return
	}

	if err := s.autojoin.DeleteDomain(r.Context(), id); err != nil {
		s.logger.WithError(err).Error("autojoin domain deletion failed")
		httputil.WriteInternalError(w, errors.New("domain deletion failed"))
		return
	}

	httputil.WriteNoContent(w)
}

// ResolveAutoJoin answers the registration-time question: given an email
// address, which membership should the new user start with? A nil grant
// (no verified domain matches) is a normal answer, not an error.
func (s *Server) ResolveAutoJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}

	grant, err := s.autojoin.ResolveEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, autojoin.ErrInvalidDomain) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		s.logger.WithError(err).Error("autojoin resolution failed")
		httputil.WriteInternalError(w, errors.New("autojoin resolution failed"))
		return
	}
	if s.metrics != nil {
		outcome := "match"
		if grant == nil {
			outcome = "no_match"
		}
		s.metrics.AutoJoinResolutionsTotal.WithLabelValues(outcome).Inc()
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"grant": grant,
	})
}
