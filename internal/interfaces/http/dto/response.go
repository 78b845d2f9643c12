package dto

// Response is the envelope of a successful request
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	RID     string `json:"rid,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any, requestID string) Response {
	return Response{
		Success: true,
		Data:    data,
		RID:     requestID,
	}
}
