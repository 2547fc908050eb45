package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// RandomEmail returns a unique email address.
func RandomEmail() string {
	return fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8])
}

// RandomName returns prefix followed by a unique suffix.
func RandomName(prefix string) string {
	return prefix + " " + uuid.NewString()[:8]
}
