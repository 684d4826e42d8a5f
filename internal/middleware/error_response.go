package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/aula/internal/model"
)

// ErrorBody はAPIエラーレスポンスのエラー部。原因カテゴリと対処方法を含む。
type ErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ErrorEnvelope はAPIエラーレスポンスの統一フォーマット。
// 成功レスポンスと同じくsuccessタグで判別できる。
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorEnvelope{
		Success: false,
		Error: ErrorBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Ha ocurrido un error interno.",
		Category: "system",
		Action:   "Inténtalo de nuevo en unos minutos.",
	})
}

// StatusCodeFor はAPIErrorのカテゴリからHTTPステータスコードを導出する。
func StatusCodeFor(apiErr *model.APIError) int {
	switch apiErr.Category {
	case "auth":
		return http.StatusUnauthorized
	case "permission":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "validation":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
