package policy

// Subject identifies the principal requesting an action.
type Subject struct {
	// ID is the principal's unique identifier.
	ID string `json:"id"`

	// Roles granted to the principal.
	Roles []string `json:"roles,omitempty"`

	// Permissions granted directly to the principal.
	Permissions []string `json:"permissions,omitempty"`
}

// Resource is the target of the requested action.
type Resource struct {
	// Server is the backend destination hosting the tool.
	Server string `json:"server,omitempty"`

	// Tool is the specific capability being invoked.
	Tool string `json:"tool,omitempty"`

	// Sensitivity classifies the resource (public, low, medium, high,
	// critical). It drives decision cache TTLs, not rule matching.
	Sensitivity string `json:"sensitivity,omitempty"`
}

// Input is one authorization request presented to the engine.
type Input struct {
	// Subject is the requesting principal.
	Subject Subject `json:"subject"`

	// Action is the requested operation (e.g. "invoke", "list").
	Action string `json:"action"`

	// Resource is the target of the action.
	Resource Resource `json:"resource"`

	// Attributes carries request context for rule conditions.
	Attributes map[string]any `json:"attributes,omitempty"`
}
