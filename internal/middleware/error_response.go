package middleware

import (
	"encoding/json"
	"net/http"
)

// ローカルサーバーが返すエラーコード。
const (
	CodeInternalError     = "INTERNAL_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeSignInFailed      = "SIGN_IN_FAILED"
)

// ErrorResponseBody はJSONエラーレスポンスの形式。
// RequestIDはログと突き合わせるために返す。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse はJSONのエラーレスポンスを書き込む。
// rのコンテキストにリクエストIDがあればボディに含める。
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	body := ErrorResponseBody{Code: code, Message: message}
	if r != nil {
		body.RequestID = RequestIDFromContext(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteInternalServerError は500を返す。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, CodeInternalError, "An internal error occurred.")
}
