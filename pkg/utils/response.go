package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response",
			"error", err,
			"status", status)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Detail: message})
}

// RespondErr maps err to its HTTP status and client message.
func RespondErr(w http.ResponseWriter, err error) {
	RespondError(w, apperr.HTTPStatus(err), apperr.MessageOf(err))
}

// DecodeJSON reads a JSON request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.New(apperr.KindClientInput, "invalid request body", err)
	}
	return nil
}
