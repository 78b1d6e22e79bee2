package middleware

import (
	"net/http"

	"courseeditor/internal/reqctx"

	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// RequestID берёт X-Request-ID от клиента или генерирует новый и возвращает его в ответе.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(headerRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)
		next.ServeHTTP(w, r.WithContext(reqctx.WithRequestID(r.Context(), rid)))
	})
}
