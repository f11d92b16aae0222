package services

import (
	"fmt"
	"sort"

	"github.com/lborres/vouch/core"
)

// Operation IDs of the base endpoints. Adapters key their handlers on these.
const (
	OpIssueAPIKey       = "issueApiKey"
	OpListAPIKeys       = "listApiKeys"
	OpGetAPIKey         = "getApiKey"
	OpDeactivateAPIKey  = "deactivateApiKey"
	OpActivateAPIKey    = "activateApiKey"
	OpDeleteAPIKey      = "deleteApiKey"
	OpStartVerification = "startIdentityVerification"
	OpCheckVerification = "checkIdentityVerification"
)

// BaseEndpoints returns framework-agnostic endpoint specifications for the
// credential and identity verification routes. Paths use :param segments.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:              "/api-keys",
			Method:            "POST",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpIssueAPIKey,
				Description: "Issue a new API key; the full key is returned only in this response",
			},
		},
		{
			Path:              "/api-keys",
			Method:            "GET",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpListAPIKeys,
				Description: "List API keys in masked form",
			},
		},
		{
			Path:              "/api-keys/:id",
			Method:            "GET",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpGetAPIKey,
				Description: "Get one API key in masked form",
			},
		},
		{
			Path:              "/api-keys/:id/deactivate",
			Method:            "POST",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpDeactivateAPIKey,
				Description: "Deactivate an API key",
			},
		},
		{
			Path:              "/api-keys/:id/activate",
			Method:            "POST",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpActivateAPIKey,
				Description: "Reactivate an API key",
			},
		},
		{
			Path:              "/api-keys/:id",
			Method:            "DELETE",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpDeleteAPIKey,
				Description: "Delete an API key",
			},
		},
		{
			Path:              "/kyc/sessions",
			Method:            "POST",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpStartVerification,
				Description: "Start a DigiLocker identity verification session",
			},
		},
		{
			Path:              "/kyc/sessions/:id",
			Method:            "GET",
			RequiresPrincipal: true,
			Metadata: core.EndpointMetadata{
				OperationID: OpCheckVerification,
				Description: "Check a verification session; 202 while the user has not finished",
			},
		},
	}
}

// EndpointRegistry manages a collection of framework-agnostic endpoints
// and handles conflict detection for duplicate METHOD:PATH combinations.
type EndpointRegistry struct {
	// endpoints stores all registered endpoints keyed by "METHOD:PATH"
	endpoints map[string]*core.Endpoint
}

// NewEndpointRegistry creates a registry with the base endpoints
// pre-registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{
		endpoints: make(map[string]*core.Endpoint),
	}

	base := BaseEndpoints()
	for i := range base {
		// base endpoints never conflict with each other
		_ = reg.register(&base[i])
	}

	return reg
}

func endpointKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

// register adds a single endpoint to the registry with conflict detection.
func (r *EndpointRegistry) register(ep *core.Endpoint) error {
	key := endpointKey(ep)

	if _, exists := r.endpoints[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
	}

	r.endpoints[key] = ep
	return nil
}

// RegisterPlugin registers additional endpoints. If any of them conflicts
// with an existing endpoint or with another one in the same batch, none are
// registered.
func (r *EndpointRegistry) RegisterPlugin(endpoints []core.Endpoint) error {
	seen := make(map[string]bool)
	for i := range endpoints {
		ep := &endpoints[i]
		key := endpointKey(ep)

		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("plugin endpoint conflict: %s %s already registered", ep.Method, ep.Path)
		}
		if seen[key] {
			return fmt.Errorf("plugin contains duplicate endpoint: %s %s", ep.Method, ep.Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		r.endpoints[endpointKey(&endpoints[i])] = &endpoints[i]
	}

	return nil
}

// Endpoints returns all registered endpoints ordered by path, then method,
// so route registration is deterministic.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Path != result[j].Path {
			return result[i].Path < result[j].Path
		}
		return result[i].Method < result[j].Method
	})
	return result
}
