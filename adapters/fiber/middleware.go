package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/lborres/vouch"
)

const (
	HeaderAPIKey = "X-API-KEY"

	principalKey  = "vouch.principal"
	credentialKey = "vouch.credential"
)

// APIKeyMiddleware resolves the X-API-KEY header and stores the principal
// and credential in the context for downstream handlers. Requests without
// the header pass through anonymously.
func APIKeyMiddleware(auth vouch.KeyAuthenticator) fiber.Handler {
	return func(c fiber.Ctx) error {
		// fasthttp reuses header memory once the handler returns.
		raw := strings.Clone(c.Get(HeaderAPIKey))
		if raw == "" {
			return c.Next()
		}

		result, err := auth.Authenticate(c.Context(), raw)
		if err != nil {
			return writeError(c, err)
		}
		if result != nil {
			c.Locals(principalKey, result.Principal)
			c.Locals(credentialKey, result.Credential)
		}

		return c.Next()
	}
}

// Principal returns the principal resolved by APIKeyMiddleware, or nil.
func Principal(c fiber.Ctx) *vouch.Principal {
	p, _ := c.Locals(principalKey).(*vouch.Principal)
	return p
}

// Credential returns the credential the request authenticated with, or nil.
func Credential(c fiber.Ctx) *vouch.APICredential {
	cred, _ := c.Locals(credentialKey).(*vouch.APICredential)
	return cred
}

// RequirePrincipal rejects requests that APIKeyMiddleware left anonymous.
func RequirePrincipal(c fiber.Ctx) error {
	if Principal(c) == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   vouch.ErrorCode(vouch.ErrInvalidKey),
			"message": "api key required",
		})
	}
	return c.Next()
}
