// Package identity holds the authenticated-caller type consumed by the
// pairing services. Identities are issued and verified elsewhere (the auth
// middleware); services only ever read them.
package identity

import "github.com/gin-gonic/gin"

const ginContextKey = "IDENTITY_USER"

// User is the current authenticated identity as asserted by the external
// auth provider.
type User struct {
	// ID is the provider's subject.
	ID          string
	DisplayName string
	Email       string
	Role        string // "patient" or "supporter"
}

// SetCurrentUser stores the authenticated identity in the gin context.
// Called by the auth middleware after token verification.
func SetCurrentUser(c *gin.Context, u *User) {
	c.Set(ginContextKey, u)
}

// CurrentUser returns the authenticated identity, or nil if the request is
// unauthenticated.
func CurrentUser(c *gin.Context) *User {
	v, ok := c.Get(ginContextKey)
	if !ok {
		return nil
	}
	u, ok := v.(*User)
	if !ok {
		return nil
	}
	return u
}
