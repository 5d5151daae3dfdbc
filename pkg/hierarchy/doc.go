// Package hierarchy implements access control over the four-level
// Organization → Company → Team → Project tree.
//
// # Overview
//
// A membership grants one role (ADMIN > EDITOR > READER) at exactly one tree
// node. The package answers four questions about those grants, each with its
// own resolver, all stateless and re-derived from storage on every call:
//
//   - Evaluator: may this user act with at least role R on resource X?
//     Ancestor memberships apply at full strength, downward only.
//   - VisibilityResolver: which resources of one level can this user list?
//     Pure descendant expansion of the user's memberships.
//   - TreeBuilder: the nested navigation tree, accessible nodes plus their
//     ancestor scaffolding, with direct memberships flagged.
//   - MemberLister: everyone related to a resource's tree folded to a single
//     display role, where a non-ADMIN ancestor role only earns the synthetic
//     VIEWER tier.
//
// Enforcement inheritance (Evaluator) and display inheritance (MemberLister)
// are different algorithms on purpose; see their doc comments.
//
// # Usage Example
//
// Permission check before a mutating handler:
//
//	eval := hierarchy.NewEvaluator(store)
//	ok, err := eval.HasPermission(ctx, user, []hierarchy.Role{hierarchy.RoleEditor},
//		hierarchy.ResourceProject, projectID)
//	if err != nil {
//		// storage failure: deny and surface a 5xx
//	}
//	if !ok {
//		// 403
//	}
//
// Listing endpoint:
//
//	ids, err := hierarchy.NewVisibilityResolver(store).
//		VisibleResourceIDs(ctx, user, hierarchy.ResourceProject)
//
// # Fail-closed behavior
//
// Missing nodes, unknown resource types, and empty membership lists all
// resolve to denial or empty results. Storage errors propagate and must
// never be treated as a grant.
//
// # Related Packages
//
//   - pkg/autojoin: email-domain auto-enrollment at registration
//   - pkg/middleware: request identity loading and role middleware
package hierarchy
