package domain

// Challenge tells the client which flows are acceptable and what is done so far.
type Challenge struct {
	Session   string         `json:"session"`
	Flows     FlowSet        `json:"flows"`
	Params    map[string]any `json:"params"`
	Completed []StageType    `json:"completed,omitempty"`
}

// AuthResult is the outcome of a CheckAuth call. Exactly one of Challenge
// (when not authenticated) or Credentials (when authenticated) is set.
type AuthResult struct {
	Authenticated bool
	Challenge     *Challenge
	Credentials   map[StageType]any
	// Params are the client request parameters, restored from the session
	// when the current request carried none.
	Params map[string]any
}
