package http

// APIResponse is the envelope of error and message responses.
type APIResponse struct {
	Status  int    `json:"status" example:"200"`
	Message string `json:"message" example:"OK"`
	Data    any    `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string         `json:"code,omitempty" example:"ERR_ONEOF"`
	Field   string         `json:"field,omitempty" example:"days"`
	Message string         `json:"message,omitempty" example:"days must be one of: 1, 7, 30"`
	Params  map[string]any `json:"params,omitempty"`
}
