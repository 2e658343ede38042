/*
Package randx provides functions for generating cryptographically secure random tokens and unique identifiers.

It is primarily used to generate UUID entity ids and Base62 encoded email verification tokens.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// VerificationTokenLength is the fixed length of generated email verification tokens.
	VerificationTokenLength = 32
)

// ID generates a standard UUID v4 string to serve as a unique identifier
// for users, messages, and friend requests.
func ID() string {
	return uuid.New().String()
}

// VerificationToken generates a Base62 encoded token using a cryptographically
// secure random number generator (crypto/rand).
func VerificationToken() (string, error) {
	result := make([]byte, VerificationTokenLength)

	for i := range VerificationTokenLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for verification token: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}
