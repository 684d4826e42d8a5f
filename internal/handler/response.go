package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/aula/internal/middleware"
	"github.com/hitoshi/aula/internal/model"
)

// ProfileFinder は認証済みユーザーのプロフィールを取得するポート。
// profile.Serviceの部分集合として定義する。
type ProfileFinder interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// writeSuccess は成功レスポンスを統一エンベロープで書き込む。
// payloadのキーはsuccessタグと同階層にマージされる。
func writeSuccess(w http.ResponseWriter, statusCode int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層のエラーを統一エラーレスポンスに変換する。
// APIError以外のエラーは詳細をログに残し、一般的な内部エラーを返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusCodeFor(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// writeInvalidRequest はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "No se pudo interpretar la solicitud.",
		Category: "validation",
		Action:   "Envía la solicitud en formato JSON válido.",
	})
}

// currentActor はリクエストコンテキストのユーザーIDから操作主体のプロフィールを解決する。
// セッションミドルウェアを通過していないリクエストにはNOT_AUTHENTICATEDを返す。
func currentActor(r *http.Request, profiles ProfileFinder) (*model.Profile, error) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil, model.NewNotAuthenticatedError()
	}
	return profiles.GetByUserID(r.Context(), userID)
}
