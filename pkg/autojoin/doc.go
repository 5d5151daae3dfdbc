// Package autojoin maps verified email domains to starting memberships so
// that a registering user is enrolled automatically at a tree node.
//
// # Overview
//
// An administrator registers a domain for an organization or a company. The
// record starts PENDING with a random verification code; ownership is proven
// by publishing a DNS TXT record of the form
//
//	grove-verification=<code>
//
// and calling Verify. Only VERIFIED records ever match at registration. When
// the same domain is verified at both scopes, the company-scoped record
// wins.
//
// Public email providers (gmail.com, yahoo.com, ...) are denylisted and can
// never be registered.
//
// # Usage Example
//
//	svc := autojoin.NewService(store, net.DefaultResolver, 5*time.Second)
//	grant, err := svc.ResolveEmail(ctx, "new.user@acme.com")
//	if grant != nil {
//		// create a membership with grant.Role at grant.Scope/grant.ScopeID
//	}
//
// # Related Packages
//
//   - pkg/hierarchy: the roles and tree levels referenced by grants
package autojoin
