package http

// APIResponse is the uniform envelope for every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    int         `json:"code"`
}

// OK wraps a successful payload.
func OK(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data, Code: 200}
}

// Fail wraps an error message.
func Fail(code int, message string) APIResponse {
	return APIResponse{Success: false, Message: message, Code: code}
}
