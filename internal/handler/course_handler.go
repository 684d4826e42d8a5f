package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aula/internal/announce"
	"github.com/hitoshi/aula/internal/course"
	"github.com/hitoshi/aula/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	GetByID(ctx context.Context, actor *model.Profile, courseID string) (*model.Course, error)
	List(ctx context.Context, actor *model.Profile) ([]*model.Course, error)
	Create(ctx context.Context, actor *model.Profile, input course.Input) (*model.Course, error)
	Update(ctx context.Context, actor *model.Profile, courseID string, input course.Input) (*model.Course, error)
	Delete(ctx context.Context, actor *model.Profile, courseID string) error
	ListTeacherIDs(ctx context.Context, actor *model.Profile, courseID string) ([]string, error)
	AssignTeacher(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error
	RemoveTeacher(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error
}

// CourseModuleLister はコース配下のモジュール一覧を取得するポート。
// content.Serviceの部分集合として定義する。
type CourseModuleLister interface {
	ListModules(ctx context.Context, actor *model.Profile, courseID string) ([]*model.CourseModule, error)
}

// AnnouncementLister はコースのお知らせフィードを取得するポート。
type AnnouncementLister interface {
	ListByCourse(ctx context.Context, actor *model.Profile, courseID string) ([]*announce.Announcement, error)
}

// CourseHandler はコース管理のHTTPハンドラー。
type CourseHandler struct {
	service       CourseServiceInterface
	modules       CourseModuleLister
	announcements AnnouncementLister
	profiles      ProfileFinder
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface, modules CourseModuleLister, announcements AnnouncementLister, profiles ProfileFinder) *CourseHandler {
	return &CourseHandler{
		service:       service,
		modules:       modules,
		announcements: announcements,
		profiles:      profiles,
	}
}

// courseRequest はコース作成・更新のリクエストボディ。
type courseRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	IsActive         bool      `json:"is_active"`
	AnnouncementsURL string    `json:"announcements_url"`
}

// courseResponse はコース情報のAPIレスポンス。
type courseResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	IsActive         bool      `json:"is_active"`
	CreatedBy        string    `json:"created_by"`
	AnnouncementsURL string    `json:"announcements_url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// announcementResponse はお知らせのAPIレスポンス。
type announcementResponse struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"published_at"`
}

// List はコース一覧を返す。
// GET /api/courses
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	courses, err := h.service.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]courseResponse, len(courses))
	for i, c := range courses {
		results[i] = toCourseResponse(c)
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"courses": results})
}

// Get はコース詳細を返す。
// GET /api/courses/{id}
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	c, err := h.service.GetByID(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"course": toCourseResponse(c)})
}

// Create はコースを作成する。
// POST /api/courses
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	c, err := h.service.Create(r.Context(), actor, toCourseInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{"course": toCourseResponse(c)})
}

// Update はコースを更新する。
// PUT /api/courses/{id}
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	c, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), toCourseInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"course": toCourseResponse(c)})
}

// Delete はコースを削除する。
// DELETE /api/courses/{id}
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTeachers はコースに割り当てられた講師のユーザーID一覧を返す。
// GET /api/courses/{id}/teachers
func (h *CourseHandler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	teacherIDs, err := h.service.ListTeacherIDs(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"teacher_ids": teacherIDs})
}

// AssignTeacher は講師をコースに割り当てる。
// POST /api/courses/{id}/teachers/{userId}
func (h *CourseHandler) AssignTeacher(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.AssignTeacher(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, nil)
}

// RemoveTeacher は講師の割り当てを解除する。
// DELETE /api/courses/{id}/teachers/{userId}
func (h *CourseHandler) RemoveTeacher(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.RemoveTeacher(r.Context(), actor, chi.URLParam(r, "id"), chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListModules はコース配下のモジュール一覧を返す。
// 受講者には公開済みモジュールのみが見える。
// GET /api/courses/{id}/modules
func (h *CourseHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	modules, err := h.modules.ListModules(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]moduleResponse, len(modules))
	for i, m := range modules {
		results[i] = toModuleResponse(m)
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"modules": results})
}

// ListAnnouncements はコースのお知らせフィードを取得して返す。
// GET /api/courses/{id}/announcements
func (h *CourseHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	actor, err := currentActor(r, h.profiles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	announcements, err := h.announcements.ListByCourse(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]announcementResponse, len(announcements))
	for i, a := range announcements {
		results[i] = announcementResponse{
			Title:       a.Title,
			Link:        a.Link,
			Summary:     a.Summary,
			Author:      a.Author,
			PublishedAt: a.PublishedAt,
		}
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"announcements": results})
}

// toCourseInput はリクエストボディをユースケース入力に変換する。
func toCourseInput(req courseRequest) course.Input {
	return course.Input{
		Title:            req.Title,
		Description:      req.Description,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		IsActive:         req.IsActive,
		AnnouncementsURL: req.AnnouncementsURL,
	}
}

// toCourseResponse はmodel.CourseからAPIレスポンスに変換する。
func toCourseResponse(c *model.Course) courseResponse {
	return courseResponse{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		IsActive:         c.IsActive,
		CreatedBy:        c.CreatedBy,
		AnnouncementsURL: c.AnnouncementsURL,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
