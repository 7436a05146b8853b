package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims represents the JWT claims issued by the external identity
// provider. The backend never inspects credentials; it only trusts the
// verified subject and display fields.
type IdentityClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "authenticated" or "anon"
	SessionID            string `json:"session_id"`
	IsAnonymous          bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
// This is the primary identifier for the authenticated user.
func (c *IdentityClaims) GetUserID() string {
	return c.Subject
}

// DisplayIdentity returns a human-readable identity for the UI.
// Falls back to the subject when the token carries no email.
func (c *IdentityClaims) DisplayIdentity() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
