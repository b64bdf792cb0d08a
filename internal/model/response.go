package model

// ErrorDetail is a machine-readable error entry of a Response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Response is the envelope returned by every conversation operation.
type Response struct {
	Success  bool          `json:"success"`
	Stage    Stage         `json:"stage"`
	Message  string        `json:"message,omitempty"`
	Data     any           `json:"data,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
	Warnings []ErrorDetail `json:"warnings,omitempty"`
}
