package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for Talkora.
// It includes standard claims required by the JWT specification and custom claims
// necessary for identifying the authenticated user within the messaging system.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the immutable identifier of the authenticated account.
	UserID string `json:"userId"`

	// Email is the account's login email, carried for logging and profile checks.
	Email string `json:"email"`

	// Verified reflects the account's email verification flag at token issue time.
	Verified bool `json:"verified"`
}
