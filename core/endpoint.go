package core

// Endpoint describes one HTTP route independently of the framework that
// serves it. Adapters bind a handler by OperationID.
type Endpoint struct {
	Path   string
	Method string
	// RequiresPrincipal rejects anonymous callers before the handler runs.
	RequiresPrincipal bool
	Metadata          EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
}
