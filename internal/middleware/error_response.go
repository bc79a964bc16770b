package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/gatehouse/internal/model"
)

// ErrorResponseBody は共通異常系（レート制限・ストレージ障害・内部エラー）のJSONボディ。
// errorにはmessageと同じ文字列を入れ、{"error": ...} だけを見るクライアントでも読めるようにする。
type ErrorResponseBody struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はAPIErrorを指定ステータスで書き込む。
// 異常系のレスポンスはキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:    apiErr.Message,
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は500を書き込む。原因はログにのみ記録し、応答には含めない。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteStoreUnavailable は/healthでストアに到達できない場合の503を書き込む。
func WriteStoreUnavailable(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
}
