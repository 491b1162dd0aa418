package conversation

import "chat-widget-backend/internal/jwt"

// Identity is the authenticated dashboard user acting on a conversation.
type Identity struct {
	UserID      string
	WorkspaceID string
	Email       string
	Role        string
}

func IdentityFromClaims(c jwt.Claims) Identity {
	return Identity{
		UserID:      c.UserID,
		WorkspaceID: c.WorkspaceID,
		Email:       c.Email,
		Role:        c.Role,
	}
}
