package dto

type CallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message,omitempty"`
}

type CallResponse struct {
	Success  bool   `json:"success"`
	CallID   string `json:"call_id"`
	DemoMode bool   `json:"demo_mode"`
	Message  string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
