// Package gate is the authorization decision point consulted before any
// mutating or privileged operation. Handlers call May with the acting
// identity, the attempted action and the target resource, and translate the
// returned decision into a redirect or an error view; the gate itself never
// touches the response.
//
// The gate assumes the resource has already been loaded: lookup failures are
// a distinct error handled by the caller before the gate runs.
package gate

import "quill/internal/models"

// Action describes the kind of operation an identity wants to perform.
type Action string

const (
	ActionCreatePost    Action = "post.create"
	ActionEditPost      Action = "post.edit"
	ActionDeletePost    Action = "post.delete"
	ActionLikePost      Action = "post.like"
	ActionComment       Action = "comment.create"
	ActionEditProfile   Action = "profile.edit"
	ActionViewDashboard Action = "admin.dashboard"
	ActionAdminLogin    Action = "admin.login"
)

// User-facing denial messages.
const (
	MsgLoginRequired = "Please log in to continue."
	MsgNotAllowed    = "You are not allowed to do that!"
	MsgStaffOnly     = "You do not have permission to access this page."
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Reason is the user-visible message accompanying a denial.
	Reason string
	// LoginRequired marks denials caused by a missing identity; handlers
	// redirect those to the login page instead of showing an error.
	LoginRequired bool
}

// Allow returns a permissive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denial with a user-visible reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// DenyLogin returns a denial that should redirect to the login page.
func DenyLogin() Decision {
	return Decision{Reason: MsgLoginRequired, LoginRequired: true}
}

// Gate evaluates authorization decisions. It is stateless and safe for
// concurrent use.
type Gate struct{}

// New returns a Gate.
func New() *Gate {
	return &Gate{}
}

// May decides whether identity can perform action on resource. A nil
// identity is anonymous. For post mutations resource must be the
// *models.Post being acted on; staff-only actions ignore the resource.
func (g *Gate) May(identity *models.User, action Action, resource any) Decision {
	if identity == nil {
		return DenyLogin()
	}

	switch action {
	case ActionCreatePost, ActionLikePost, ActionComment, ActionEditProfile:
		// Any authenticated identity may proceed. Liking is deliberately
		// unrestricted: users may like their own posts.
		return Allow()

	case ActionEditPost, ActionDeletePost:
		post, ok := resource.(*models.Post)
		if !ok || post == nil {
			return Deny(MsgNotAllowed)
		}
		if post.UserID != identity.ID {
			return Deny(MsgNotAllowed)
		}
		return Allow()

	case ActionViewDashboard, ActionAdminLogin:
		if !identity.IsStaff {
			return Deny(MsgStaffOnly)
		}
		return Allow()
	}

	return Deny(MsgNotAllowed)
}
