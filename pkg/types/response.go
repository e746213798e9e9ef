package types

// Envelope is the shape of every API response body.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// APIError is carried in Envelope.Data when Success is false.
type APIError struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
