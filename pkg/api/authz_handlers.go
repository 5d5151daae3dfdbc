package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/groveauth/grove/pkg/hierarchy"
	"github.com/groveauth/grove/pkg/httputil"
	"github.com/groveauth/grove/pkg/middleware"
)

// errPermissionCheck hides storage detail from API clients
var errPermissionCheck = errors.New("permission check failed")

// CheckPermission answers whether the acting user may act with one of the
// required roles on a resource
func (s *Server) CheckPermission(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	var req struct {
		RequiredRoles []string `json:"required_roles"`
		ResourceType  string   `json:"resource_type"`
		ResourceID    string   `json:"resource_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.RequiredRoles) == 0 || req.ResourceID == "" {
		httputil.WriteBadRequest(w, "required_roles and resource_id are required")
		return
	}

	resourceType, err := hierarchy.ParseResourceType(req.ResourceType)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	roles := make([]hierarchy.Role, 0, len(req.RequiredRoles))
	for _, raw := range req.RequiredRoles {
		role, err := hierarchy.ParseRole(raw)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		roles = append(roles, role)
	}

	start := time.Now()
	allowed, err := s.evaluator.HasPermission(r.Context(), user, roles, resourceType, req.ResourceID)
	if err != nil {
		s.logger.WithError(err).
			WithUser(user.ID).
			WithResource(req.ResourceType, req.ResourceID).
			Error("permission check failed")
		httputil.WriteInternalError(w, errPermissionCheck)
		return
	}
	if s.metrics != nil {
		s.metrics.ObservePermissionCheck(string(resourceType), allowed, time.Since(start))
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"allowed":    allowed,
		"checked_at": time.Now().UTC(),
	})
}

// VisibleResources lists the IDs of one tree level the acting user can see
func (s *Server) VisibleResources(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	raw, ok := httputil.ParsePathStringOrError(w, r, "resource_type")
	if !ok {
		return
	}
	resourceType, err := hierarchy.ParseResourceType(raw)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	start := time.Now()
	ids, err := s.visibility.VisibleResourceIDs(r.Context(), user, resourceType)
	if err != nil {
		s.logger.WithError(err).WithUser(user.ID).Error("visibility resolution failed")
		httputil.WriteInternalError(w, errors.New("visibility resolution failed"))
		return
	}
	if s.metrics != nil {
		s.metrics.VisibilityQueryDuration.WithLabelValues(string(resourceType)).
			Observe(time.Since(start).Seconds())
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"resource_type": resourceType,
		"ids":           ids,
	})
}

// HierarchyTree returns the nested organization tree for the acting user
func (s *Server) HierarchyTree(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	start := time.Now()
	tree, err := s.treeBuilder.BuildTree(r.Context(), user)
	if err != nil {
		s.logger.WithError(err).WithUser(user.ID).Error("tree build failed")
		httputil.WriteInternalError(w, errors.New("tree build failed"))
		return
	}
	if s.metrics != nil {
		s.metrics.TreeBuildDuration.Observe(time.Since(start).Seconds())
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"tree": tree,
	})
}

// EffectiveMembers lists everyone related to a resource's tree with their
// folded display role. Managing members requires ADMIN on the resource.
func (s *Server) EffectiveMembers(w http.ResponseWriter, r *http.Request) {
	raw, ok := httputil.ParsePathStringOrError(w, r, "resource_type")
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	resourceType, err := hierarchy.ParseResourceType(raw)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if !s.authorize(w, r, []hierarchy.Role{hierarchy.RoleAdmin}, resourceType, id) {
		return
	}

	userIDs := r.URL.Query()["user_id"]

	start := time.Now()
	members, err := s.memberLister.EffectiveMembers(r.Context(), resourceType, id, userIDs...)
	if err != nil {
		s.logger.WithError(err).
			WithResource(raw, id).
			Error("effective member listing failed")
		httputil.WriteInternalError(w, errors.New("member listing failed"))
		return
	}
	if s.metrics != nil {
		s.metrics.EffectiveMembersDuration.WithLabelValues(string(resourceType)).
			Observe(time.Since(start).Seconds())
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"members": members,
	})
}
