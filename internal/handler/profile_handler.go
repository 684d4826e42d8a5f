package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aula/internal/model"
	"github.com/hitoshi/aula/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	ListPeople(ctx context.Context, actor *model.Profile) (*profile.People, error)
	PromoteToTeacher(ctx context.Context, actor *model.Profile, targetUserID string) error
	DemoteToStudent(ctx context.Context, actor *model.Profile, targetUserID string) error
	DeleteProfile(ctx context.Context, actor *model.Profile, targetUserID string) error
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// profileResponse はプロフィール情報のAPIレスポンス。
type profileResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Me は操作主体自身のプロフィールを返す。
// GET /api/profiles/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.service)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"profile": toProfileResponse(actor)})
}

// ListPeople は受講者と講師のプロフィール一覧を返す。
// GET /api/profiles/people
func (h *ProfileHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.service)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	people, err := h.service.ListPeople(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	students := make([]profileResponse, len(people.Students))
	for i, p := range people.Students {
		students[i] = toProfileResponse(p)
	}
	teachers := make([]profileResponse, len(people.Teachers))
	for i, p := range people.Teachers {
		teachers[i] = toProfileResponse(p)
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"students": students,
		"teachers": teachers,
	})
}

// Promote は対象ユーザーを講師ロールに昇格する。
// POST /api/profiles/{id}/promote
func (h *ProfileHandler) Promote(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.service)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.PromoteToTeacher(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

// Demote は対象ユーザーを受講者ロールに降格する。
// POST /api/profiles/{id}/demote
func (h *ProfileHandler) Demote(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.service)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.DemoteToStudent(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil)
}

// Delete は対象ユーザーのプロフィールを削除する。
// DELETE /api/profiles/{id}
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.service)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.DeleteProfile(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      string(p.Role),
		CreatedAt: p.CreatedAt,
	}
}
