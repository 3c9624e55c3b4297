package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateSessionID returns a fresh opaque session identifier.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateOpaqueToken returns an unguessable URL-safe token. Tokens are
// credentials, so this draws from crypto/rand rather than math/rand.
func GenerateOpaqueToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; uuid still
		// gives an unguessable fallback.
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// GenerateProjectID builds a readable stable project identifier from a name,
// e.g. "Line 4 Retrofit" -> "proj-line-4-retrofit-3f9a".
func GenerateProjectID(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	fields := strings.FieldsFunc(slug, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) > 4 {
		fields = fields[:4]
	}
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err == nil {
		fields = append(fields, hex.EncodeToString(suffix))
	}
	if len(fields) == 0 {
		return "proj-" + uuid.NewString()[:8]
	}
	return "proj-" + strings.Join(fields, "-")
}

// BuildSupplierPortalURL returns the external URL a supplier opens for a
// given access token.
func BuildSupplierPortalURL(baseURL, token string) string {
	return fmt.Sprintf("%s/supplier/%s", strings.TrimRight(baseURL, "/"), token)
}
