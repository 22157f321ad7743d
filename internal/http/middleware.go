package http

import (
	"github.com/gin-gonic/gin"

	"authflow/internal/domain"
)

const currentUserKey = "auth.currentUser"

// Protect rejects the request unless it carries a valid, current session
// token. The resolved user is available to later handlers via CurrentUser.
func (h *Handler) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.auth.Authenticate(c.Request.Context(), tokenFromRequest(c))
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user attached by Protect.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}
