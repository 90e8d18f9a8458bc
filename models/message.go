package models

// Envelopes written by utils.Handle*Response. RequestID echoes the
// X-Request-ID assigned by the request logger.

type MessageResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

type ValidationResponse struct {
	StatusCode int               `json:"status_code"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors"`
	RequestID  string            `json:"request_id,omitempty"`
}

type DataResponse struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	RequestID  string      `json:"request_id,omitempty"`
}

func NewMessageResponse(statusCode int, message, requestID string) MessageResponse {
	return MessageResponse{
		StatusCode: statusCode,
		Message:    message,
		RequestID:  requestID,
	}
}

func NewValidationResponse(statusCode int, errors map[string]string, requestID string) ValidationResponse {
	return ValidationResponse{
		StatusCode: statusCode,
		Message:    "Validation failed",
		Errors:     errors,
		RequestID:  requestID,
	}
}

func NewDataResponse(statusCode int, message string, data interface{}, requestID string) DataResponse {
	return DataResponse{
		StatusCode: statusCode,
		Message:    message,
		Data:       data,
		RequestID:  requestID,
	}
}
