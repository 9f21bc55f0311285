package models

// Response 统一返回结构
type Response struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	StatusCode int    `json:"status_code"`
}

func Succeed(status int, message string, data any) Response {
	return Response{Success: true, Message: message, Data: data, StatusCode: status}
}

func Fail(status int, message string) Response {
	return Response{Success: false, Message: message, StatusCode: status}
}
