package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aula/internal/content"
	"github.com/hitoshi/aula/internal/model"
)

// ContentServiceInterface はモジュール・レッスンハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	GetModule(ctx context.Context, actor *model.Profile, moduleID string) (*model.CourseModule, error)
	CreateModule(ctx context.Context, actor *model.Profile, courseID string, input content.ModuleInput) (*model.CourseModule, error)
	UpdateModule(ctx context.Context, actor *model.Profile, moduleID string, input content.ModuleInput) (*model.CourseModule, error)
	DeleteModule(ctx context.Context, actor *model.Profile, moduleID string) error
	ListLessons(ctx context.Context, actor *model.Profile, moduleID string) ([]*model.Lesson, error)
	GetLesson(ctx context.Context, actor *model.Profile, lessonID string) (*model.Lesson, error)
	CreateLesson(ctx context.Context, actor *model.Profile, moduleID string, input content.LessonInput) (*model.Lesson, error)
	UpdateLesson(ctx context.Context, actor *model.Profile, lessonID string, input content.LessonInput) (*model.Lesson, error)
	DeleteLesson(ctx context.Context, actor *model.Profile, lessonID string) error
}

// ContentHandler はモジュール・レッスン管理のHTTPハンドラー。
type ContentHandler struct {
	service  ContentServiceInterface
	profiles ProfileFinder
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface, profiles ProfileFinder) *ContentHandler {
	return &ContentHandler{
		service:  service,
		profiles: profiles,
	}
}

// moduleRequest はモジュール作成・更新のリクエストボディ。
type moduleRequest struct {
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
	Content     string `json:"content"`
	IsPublished bool   `json:"is_published"`
}

// lessonRequest はレッスン作成・更新のリクエストボディ。
type lessonRequest struct {
	ModuleID        string `json:"module_id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	OrderIndex      int    `json:"order_index"`
	DurationMinutes int    `json:"duration_minutes"`
	IsPublished     bool   `json:"is_published"`
}

// moduleResponse はモジュール情報のAPIレスポンス。
type moduleResponse struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OrderIndex  int       `json:"order_index"`
	Content     string    `json:"content"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// lessonResponse はレッスン情報のAPIレスポンス。
type lessonResponse struct {
	ID              string    `json:"id"`
	ModuleID        string    `json:"module_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	OrderIndex      int       `json:"order_index"`
	DurationMinutes int       `json:"duration_minutes"`
	IsPublished     bool      `json:"is_published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// GetModule はモジュール詳細を返す。
// 受講者には未公開モジュールは存在しないものとして扱われる。
// GET /api/modules/{id}
func (h *ContentHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	m, err := h.service.GetModule(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"module": toModuleResponse(m)})
}

// CreateModule はモジュールを作成する。
// POST /api/modules
func (h *ContentHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req moduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	m, err := h.service.CreateModule(r.Context(), actor, req.CourseID, toModuleInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{"module": toModuleResponse(m)})
}

// UpdateModule はモジュールを更新する。
// PUT /api/modules/{id}
func (h *ContentHandler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req moduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	m, err := h.service.UpdateModule(r.Context(), actor, chi.URLParam(r, "id"), toModuleInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"module": toModuleResponse(m)})
}

// DeleteModule はモジュールを削除する。
// DELETE /api/modules/{id}
func (h *ContentHandler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.DeleteModule(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListLessons はモジュール配下のレッスン一覧を返す。
// 受講者には公開済みレッスンのみが見える。
// GET /api/modules/{id}/lessons
func (h *ContentHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	lessons, err := h.service.ListLessons(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]lessonResponse, len(lessons))
	for i, l := range lessons {
		results[i] = toLessonResponse(l)
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"lessons": results})
}

// GetLesson はレッスン詳細を返す。
// GET /api/lessons/{id}
func (h *ContentHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	l, err := h.service.GetLesson(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"lesson": toLessonResponse(l)})
}

// CreateLesson はレッスンを作成する。
// POST /api/lessons
func (h *ContentHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	l, err := h.service.CreateLesson(r.Context(), actor, req.ModuleID, toLessonInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{"lesson": toLessonResponse(l)})
}

// UpdateLesson はレッスンを更新する。
// PUT /api/lessons/{id}
func (h *ContentHandler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	l, err := h.service.UpdateLesson(r.Context(), actor, chi.URLParam(r, "id"), toLessonInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"lesson": toLessonResponse(l)})
}

// DeleteLesson はレッスンを削除する。
// DELETE /api/lessons/{id}
func (h *ContentHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.DeleteLesson(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toModuleInput はリクエストボディをユースケース入力に変換する。
func toModuleInput(req moduleRequest) content.ModuleInput {
	return content.ModuleInput{
		Title:       req.Title,
		Description: req.Description,
		OrderIndex:  req.OrderIndex,
		Content:     req.Content,
		IsPublished: req.IsPublished,
	}
}

// toLessonInput はリクエストボディをユースケース入力に変換する。
func toLessonInput(req lessonRequest) content.LessonInput {
	return content.LessonInput{
		Title:           req.Title,
		Content:         req.Content,
		OrderIndex:      req.OrderIndex,
		DurationMinutes: req.DurationMinutes,
		IsPublished:     req.IsPublished,
	}
}

// toModuleResponse はmodel.CourseModuleからAPIレスポンスに変換する。
func toModuleResponse(m *model.CourseModule) moduleResponse {
	return moduleResponse{
		ID:          m.ID,
		CourseID:    m.CourseID,
		Title:       m.Title,
		Description: m.Description,
		OrderIndex:  m.OrderIndex,
		Content:     m.Content,
		IsPublished: m.IsPublished,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// toLessonResponse はmodel.LessonからAPIレスポンスに変換する。
func toLessonResponse(l *model.Lesson) lessonResponse {
	return lessonResponse{
		ID:              l.ID,
		ModuleID:        l.ModuleID,
		Title:           l.Title,
		Content:         l.Content,
		OrderIndex:      l.OrderIndex,
		DurationMinutes: l.DurationMinutes,
		IsPublished:     l.IsPublished,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}
