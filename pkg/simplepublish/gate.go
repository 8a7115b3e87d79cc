package simplepublish

import "context"

// RoleGate is a CapabilityGate backed by the user store's role column and a
// static role-to-capability grant table. It ignores the object scope: grants
// here are role-wide, which matches the stock role set. Deployments needing
// per-object rules supply their own gate.
type RoleGate struct {
	users  UserRepository
	grants map[string]map[string]bool
}

// NewRoleGate builds a gate from a role-to-capabilities table.
func NewRoleGate(users UserRepository, grants map[string][]string) *RoleGate {
	g := &RoleGate{users: users, grants: make(map[string]map[string]bool, len(grants))}
	for role, caps := range grants {
		set := make(map[string]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		g.grants[role] = set
	}
	return g
}

// Allowed reports whether the actor's role grants the capability. Unknown
// actors and unknown roles are denied.
func (g *RoleGate) Allowed(ctx context.Context, actorID int64, capability string, objectID int64) bool {
	user, err := g.users.GetUser(ctx, actorID)
	if err != nil {
		return false
	}
	caps, ok := g.grants[user.Role]
	if !ok {
		return false
	}
	return caps[capability] || caps["*"]
}

// DefaultGrants is the stock role-to-capability table matching the built-in
// registry's role set.
func DefaultGrants() map[string][]string {
	return map[string][]string{
		"administrator": {"*"},
		"editor": {
			"edit_posts", "publish_posts", "edit_others_posts", "delete_posts",
			"edit_pages", "publish_pages", "edit_others_pages",
			"manage_categories", "upload_files", "list_users",
		},
		"author": {
			"edit_posts", "publish_posts", "delete_posts", "upload_files",
		},
		"contributor": {
			"edit_posts", "delete_posts",
		},
		"subscriber": {},
	}
}
