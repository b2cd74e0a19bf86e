package middleware

// ハンドラ側と同じ形 {success:false, error, code}
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

const (
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeRateLimited  = "rate_limited"
)

func errorJSON(msg, code string) errorResponse {
	return errorResponse{Success: false, Error: msg, Code: code}
}
