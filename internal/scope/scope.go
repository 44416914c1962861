// Package scope carries the authenticated caller's identity through every
// core operation. The context value is passed explicitly, capability-style;
// nothing in the engine reads identity from ambient state.
package scope

import "github.com/verityhq/verity/internal/models"

// Context identifies the authenticated caller. Immutable after construction.
type Context struct {
	UserID int64
	TeamID int64 // 0 when the user is orphaned from a deleted team
	Role   models.Role
}

// RoleAllows reports whether actual satisfies one of the required roles.
// An empty requirement list allows any role.
func RoleAllows(required []models.Role, actual models.Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if r == actual {
			return true
		}
	}
	return false
}
