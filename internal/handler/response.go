package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody は公開APIの失敗レスポンス。{"error": "..."}の形で200とともに返す。
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeJSONError は入力起因の失敗を{"error": message}で返す。
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
