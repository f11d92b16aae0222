package fiber

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/lborres/vouch"
	"github.com/lborres/vouch/core"
)

type handlers struct {
	credentials  vouch.CredentialManager
	verification vouch.IdentityVerifier
}

type issueKeyInput struct {
	Name        string `json:"name"`
	PrincipalID string `json:"principal_id"`
}

type startVerificationInput struct {
	RedirectURL string `json:"redirect_url"`
}

func (h *handlers) issueKey(c fiber.Ctx) error {
	var input issueKeyInput
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c)
	}

	principalID, err := targetPrincipal(c, input.PrincipalID)
	if err != nil {
		return writeError(c, err)
	}

	issued, err := h.credentials.Issue(c.Context(), principalID, input.Name)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(issued)
}

func (h *handlers) listKeys(c fiber.Ctx) error {
	principalID, err := targetPrincipal(c, c.Query("principal_id"))
	if err != nil {
		return writeError(c, err)
	}

	creds, err := h.credentials.List(c.Context(), principalID)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"apiKeys": creds,
	})
}

func (h *handlers) getKey(c fiber.Ctx) error {
	cred, err := h.ownedCredential(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(cred)
}

func (h *handlers) deactivateKey(c fiber.Ctx) error {
	return h.setActive(c, h.credentials.Deactivate)
}

func (h *handlers) activateKey(c fiber.Ctx) error {
	return h.setActive(c, h.credentials.Activate)
}

func (h *handlers) setActive(c fiber.Ctx, apply func(ctx context.Context, id string) error) error {
	cred, err := h.ownedCredential(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := apply(c.Context(), cred.ID); err != nil {
		return writeError(c, err)
	}

	updated, err := h.credentials.Get(c.Context(), cred.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(updated)
}

func (h *handlers) deleteKey(c fiber.Ctx) error {
	cred, err := h.ownedCredential(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.credentials.Delete(c.Context(), cred.ID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *handlers) startVerification(c fiber.Ctx) error {
	var input startVerificationInput
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c)
	}

	session, err := h.verification.Start(c.Context(), Principal(c).ID, input.RedirectURL)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(session)
}

func (h *handlers) checkVerification(c fiber.Ctx) error {
	result, err := h.verification.Check(c.Context(), Principal(c).ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	if result.Pending() {
		return c.Status(http.StatusAccepted).JSON(result)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// ownedCredential loads the :id credential. Keys owned by someone else look
// like missing keys unless the caller is staff.
func (h *handlers) ownedCredential(c fiber.Ctx) (*vouch.APICredential, error) {
	cred, err := h.credentials.Get(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}

	p := Principal(c)
	if cred.PrincipalID != p.ID && !p.IsStaff {
		return nil, vouch.ErrCredentialNotFound
	}
	return cred, nil
}

// targetPrincipal picks whose keys a request acts on. Only staff may name
// another principal.
func targetPrincipal(c fiber.Ctx, requested string) (string, error) {
	p := Principal(c)
	if requested == "" || requested == p.ID {
		return p.ID, nil
	}
	if !p.IsStaff {
		return "", vouch.ErrForbidden
	}
	return requested, nil
}

func badRequest(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"error":   core.CodeBadRequest,
		"message": "invalid request body",
	})
}

// providerMessages are the client-facing messages for provider failures.
// Transport errors name upstream hosts and addresses, so they stay in logs.
var providerMessages = map[string]string{
	core.CodeAuthFailed:          core.ErrAuthFailed.Error(),
	core.CodeSessionInitFailed:   core.ErrSessionInitFailed.Error(),
	core.CodeFetchFailed:         core.ErrFetchFailed.Error(),
	core.CodeTimeout:             core.ErrTimeout.Error(),
	core.CodeProviderUnreachable: core.ErrProviderUnreachable.Error(),
	core.CodeParseError:          core.ErrParse.Error(),
}

// writeError maps an error to its status code and a {"error", "message"} body.
// Internal errors never expose their message; provider errors expose only
// what the provider itself said.
func writeError(c fiber.Ctx, err error) error {
	code := vouch.ErrorCode(err)
	status := statusFor(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	if stable, ok := providerMessages[code]; ok {
		message = stable
		var perr *vouch.ProviderError
		if errors.As(err, &perr) && perr.Message != "" {
			message = perr.Message
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

func statusFor(code string) int {
	switch code {
	case core.CodeMalformedKey, core.CodeInvalidKey, core.CodeKeyInactive, core.CodePrincipalInactive:
		return http.StatusUnauthorized
	case core.CodeBadRequest:
		return http.StatusBadRequest
	case core.CodeForbidden:
		return http.StatusForbidden
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeTimeout:
		return http.StatusGatewayTimeout
	case core.CodeAuthFailed, core.CodeSessionInitFailed, core.CodeFetchFailed,
		core.CodeProviderUnreachable, core.CodeParseError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
