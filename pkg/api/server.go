package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/groveauth/grove/pkg/autojoin"
	"github.com/groveauth/grove/pkg/hierarchy"
	"github.com/groveauth/grove/pkg/httputil"
	"github.com/groveauth/grove/pkg/middleware"
	"github.com/groveauth/grove/pkg/observability"
)

// Server exposes the authorization engine and auto-join management over
// HTTP. It holds no state of its own; every answer is re-derived from
// storage per request.
type Server struct {
	store        hierarchy.Store
	evaluator    *hierarchy.Evaluator
	visibility   *hierarchy.VisibilityResolver
	treeBuilder  *hierarchy.TreeBuilder
	memberLister *hierarchy.MemberLister
	autojoin     *autojoin.Service

	verifyLimiter *middleware.RateLimiter
	metrics       *observability.Metrics
	logger        *observability.Logger
}

// NewServer creates a new API server. verifyLimiter and metrics may be nil.
func NewServer(
	store hierarchy.Store,
	autojoinService *autojoin.Service,
	verifyLimiter *middleware.RateLimiter,
	metrics *observability.Metrics,
	logger *observability.Logger,
) *Server {
	return &Server{
		store:         store,
		evaluator:     hierarchy.NewEvaluator(store),
		visibility:    hierarchy.NewVisibilityResolver(store),
		treeBuilder:   hierarchy.NewTreeBuilder(store),
		memberLister:  hierarchy.NewMemberLister(store),
		autojoin:      autojoinService,
		verifyLimiter: verifyLimiter,
		metrics:       metrics,
		logger:        logger.WithComponent("api"),
	}
}

// Router builds the full route table
func (s *Server) Router() *mux.Router {
	root := mux.NewRouter()

	// Registration-time resolution runs before a user exists, outside the
	// identity middleware.
	root.HandleFunc("/api/v1/autojoin/resolve", s.ResolveAutoJoin).Methods("POST")

	api := root.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Identity(s.store))

	api.HandleFunc("/authz/check", s.CheckPermission).Methods("POST")
	api.HandleFunc("/authz/visible/{resource_type}", s.VisibleResources).Methods("GET")
	api.HandleFunc("/authz/tree", s.HierarchyTree).Methods("GET")
	api.HandleFunc("/resources/{resource_type}/{id}/members", s.EffectiveMembers).Methods("GET")

	api.HandleFunc("/autojoin/domains", s.AddAutoJoinDomain).Methods("POST")
	api.HandleFunc("/autojoin/domains", s.ListAutoJoinDomains).Methods("GET")
	api.Handle("/autojoin/domains/{id}/verify",
		middleware.LimitByPathVar(s.verifyLimiter, "id")(
			http.HandlerFunc(s.VerifyAutoJoinDomain))).Methods("POST")
	api.HandleFunc("/autojoin/domains/{id}", s.DeleteAutoJoinDomain).Methods("DELETE")

	return root
}

// authorize checks the acting user's role on a node and writes the error
// response on denial. Storage failures deny with a 500; they are never
// treated as a grant.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, roles []hierarchy.Role, t hierarchy.ResourceType, id string) bool {
	user := middleware.UserFrom(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return false
	}

	allowed, err := s.evaluator.HasPermission(r.Context(), user, roles, t, id)
	if err != nil {
		s.logger.WithError(err).
			WithUser(user.ID).
			WithResource(string(t), id).
			Error("permission check failed")
		httputil.WriteInternalError(w, errPermissionCheck)
		return false
	}
	if !allowed {
		httputil.WriteForbidden(w, "insufficient role")
		return false
	}
	return true
}
