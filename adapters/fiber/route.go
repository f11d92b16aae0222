package fiber

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/lborres/vouch"
	"github.com/lborres/vouch/services"
)

type Adapter struct {
	app      *fiber.App
	handlers map[string]fiber.Handler
}

var _ vouch.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{
		app:      app,
		handlers: make(map[string]fiber.Handler),
	}
}

// Handle binds a handler to the operation ID of an endpoint registered with
// EndpointRegistry.RegisterPlugin. It must be called before RegisterRoutes.
func (a *Adapter) Handle(operationID string, h fiber.Handler) {
	a.handlers[operationID] = h
}

// RegisterRoutes mounts every registered endpoint under v.BasePath. All
// routes see the API key middleware; endpoints that require a principal also
// get RequirePrincipal.
func (a *Adapter) RegisterRoutes(v *vouch.Vouch) error {
	h := &handlers{
		credentials:  v.Credentials,
		verification: v.Verification,
	}

	builtin := map[string]fiber.Handler{
		services.OpIssueAPIKey:       h.issueKey,
		services.OpListAPIKeys:       h.listKeys,
		services.OpGetAPIKey:         h.getKey,
		services.OpDeactivateAPIKey:  h.deactivateKey,
		services.OpActivateAPIKey:    h.activateKey,
		services.OpDeleteAPIKey:      h.deleteKey,
		services.OpStartVerification: h.startVerification,
		services.OpCheckVerification: h.checkVerification,
	}

	api := a.app.Group(v.BasePath, APIKeyMiddleware(v.Authenticator))

	for _, ep := range v.Endpoints.Endpoints() {
		handler, ok := a.handlers[ep.Metadata.OperationID]
		if !ok {
			handler, ok = builtin[ep.Metadata.OperationID]
		}
		if !ok {
			return fmt.Errorf("no handler for %s %s (%s)", ep.Method, ep.Path, ep.Metadata.OperationID)
		}

		if ep.RequiresPrincipal {
			api.Add([]string{ep.Method}, ep.Path, RequirePrincipal, handler)
		} else {
			api.Add([]string{ep.Method}, ep.Path, handler)
		}
	}

	return nil
}
