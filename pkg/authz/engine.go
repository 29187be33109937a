package authz

import (
	"fmt"

	"github.com/critiqdev/critiq/pkg/auth"
)

// Resource identifies the kind of object a request targets.
type Resource string

const (
	ResourceUsers      Resource = "users"
	ResourceCategories Resource = "categories"
	ResourceGenres     Resource = "genres"
	ResourceTitles     Resource = "titles"
	ResourceReviews    Resource = "reviews"
	ResourceComments   Resource = "comments"
)

// Action is the operation a request wants to perform.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutating reports whether the action writes.
func (a Action) Mutating() bool {
	return a != ActionRead
}

// Request carries everything the engine needs to decide.
type Request struct {
	// Role of the caller. Ignored when Authenticated is false.
	Role auth.Role
	// Authenticated is false for anonymous callers.
	Authenticated bool
	// Resource being targeted.
	Resource Resource
	// Action being performed.
	Action Action
	// Owner is true when the caller is the recorded author of the target.
	// Only meaningful for update/delete on reviews and comments.
	Owner bool
}

// Decision is the engine's verdict. Reason names the policy that denied, or
// summarizes the grant, for audit logging.
type Decision struct {
	Allowed bool
	Reason  string
}

// Policy is a named allow predicate. Policies compose with logical AND.
type Policy struct {
	Name  string
	Allow func(Request) bool
}

// The named policies. Each mirrors one access rule; endpoints compose them.
var (
	// AdminOrAuthenticated guards user management: any authenticated caller
	// may reach the resource (field-level narrowing is the serializer's
	// concern), anonymous callers may not.
	AdminOrAuthenticated = Policy{
		Name: "admin-or-authenticated",
		Allow: func(r Request) bool {
			return r.Authenticated
		},
	}

	// AdminOrReadOnly guards the catalog: reads are public, writes are
	// admin-only.
	AdminOrReadOnly = Policy{
		Name: "admin-or-read-only",
		Allow: func(r Request) bool {
			if !r.Action.Mutating() {
				return true
			}
			return r.Authenticated && r.Role == auth.RoleAdmin
		},
	}

	// AuthenticatedOrReadOnly gates creation: reads are public, any write
	// requires a signed-in caller.
	AuthenticatedOrReadOnly = Policy{
		Name: "authenticated-or-read-only",
		Allow: func(r Request) bool {
			if !r.Action.Mutating() {
				return true
			}
			return r.Authenticated
		},
	}

	// OwnerModeratorAdmin guards mutation of existing reviews and comments:
	// the author, a moderator, or an admin may update or delete; creation
	// passes through (AuthenticatedOrReadOnly already gates it).
	OwnerModeratorAdmin = Policy{
		Name: "owner-moderator-admin",
		Allow: func(r Request) bool {
			if !r.Action.Mutating() || r.Action == ActionCreate {
				return true
			}
			if !r.Authenticated {
				return false
			}
			return r.Role == auth.RoleAdmin || r.Role == auth.RoleModerator || r.Owner
		},
	}
)

// policyTable maps each resource kind to its ordered policy conjunction.
var policyTable = map[Resource][]Policy{
	ResourceUsers:      {AdminOrAuthenticated},
	ResourceCategories: {AdminOrReadOnly},
	ResourceGenres:     {AdminOrReadOnly},
	ResourceTitles:     {AdminOrReadOnly},
	ResourceReviews:    {AuthenticatedOrReadOnly, OwnerModeratorAdmin},
	ResourceComments:   {AuthenticatedOrReadOnly, OwnerModeratorAdmin},
}

// PoliciesFor returns the policy conjunction for a resource kind.
func PoliciesFor(resource Resource) []Policy {
	return policyTable[resource]
}

// Authorize evaluates the policy conjunction for the request's resource.
// Every policy must allow; the first deny is terminal and names the policy
// in the reason. Unknown resources are denied.
func Authorize(req Request) Decision {
	policies, ok := policyTable[req.Resource]
	if !ok {
		return Decision{Allowed: false, Reason: fmt.Sprintf("unknown resource %q", req.Resource)}
	}

	for _, p := range policies {
		if !p.Allow(req) {
			return Decision{Allowed: false, Reason: fmt.Sprintf("denied by policy %s", p.Name)}
		}
	}

	return Decision{Allowed: true, Reason: fmt.Sprintf("granted for %s on %s", req.Action, req.Resource)}
}
