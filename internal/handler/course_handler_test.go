package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aula/internal/announce"
	"github.com/hitoshi/aula/internal/course"
	"github.com/hitoshi/aula/internal/middleware"
	"github.com/hitoshi/aula/internal/model"
)

// --- 共通モック定義 ---

// mockProfileFinder はコンテキストのユーザーIDを操作主体プロフィールに解決するモック。
type mockProfileFinder struct {
	profiles map[string]*model.Profile
}

func (m *mockProfileFinder) GetByUserID(_ context.Context, userID string) (*model.Profile, error) {
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, model.NewProfileNotFoundError()
}

func profileFinderWith(profiles ...*model.Profile) *mockProfileFinder {
	m := &mockProfileFinder{profiles: make(map[string]*model.Profile)}
	for _, p := range profiles {
		m.profiles[p.UserID] = p
	}
	return m
}

func adminProfile() *model.Profile {
	return &model.Profile{ID: "p-admin", UserID: "u-admin", Role: model.RoleAdmin}
}

func teacherProfile() *model.Profile {
	return &model.Profile{ID: "p-teacher", UserID: "u-teacher", Role: model.RoleTeacher}
}

func studentProfile() *model.Profile {
	return &model.Profile{ID: "p-student", UserID: "u-student", Role: model.RoleStudent}
}

// asUser はセッションミドルウェア通過後と同じコンテキストを持つリクエストを返す。
func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

type mockCourseService struct {
	getByIDFn        func(ctx context.Context, actor *model.Profile, courseID string) (*model.Course, error)
	listFn           func(ctx context.Context, actor *model.Profile) ([]*model.Course, error)
	createFn         func(ctx context.Context, actor *model.Profile, input course.Input) (*model.Course, error)
	updateFn         func(ctx context.Context, actor *model.Profile, courseID string, input course.Input) (*model.Course, error)
	deleteFn         func(ctx context.Context, actor *model.Profile, courseID string) error
	listTeacherIDsFn func(ctx context.Context, actor *model.Profile, courseID string) ([]string, error)
	assignTeacherFn  func(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error
	removeTeacherFn  func(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error
}

func (m *mockCourseService) GetByID(ctx context.Context, actor *model.Profile, courseID string) (*model.Course, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, actor, courseID)
	}
	return &model.Course{ID: courseID}, nil
}

func (m *mockCourseService) List(ctx context.Context, actor *model.Profile) ([]*model.Course, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockCourseService) Create(ctx context.Context, actor *model.Profile, input course.Input) (*model.Course, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, input)
	}
	return &model.Course{ID: "c-new", Title: input.Title}, nil
}

func (m *mockCourseService) Update(ctx context.Context, actor *model.Profile, courseID string, input course.Input) (*model.Course, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, courseID, input)
	}
	return &model.Course{ID: courseID, Title: input.Title}, nil
}

func (m *mockCourseService) Delete(ctx context.Context, actor *model.Profile, courseID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, courseID)
	}
	return nil
}

func (m *mockCourseService) ListTeacherIDs(ctx context.Context, actor *model.Profile, courseID string) ([]string, error) {
	if m.listTeacherIDsFn != nil {
		return m.listTeacherIDsFn(ctx, actor, courseID)
	}
	return nil, nil
}

func (m *mockCourseService) AssignTeacher(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error {
	if m.assignTeacherFn != nil {
		return m.assignTeacherFn(ctx, actor, courseID, teacherUserID)
	}
	return nil
}

func (m *mockCourseService) RemoveTeacher(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error {
	if m.removeTeacherFn != nil {
		return m.removeTeacherFn(ctx, actor, courseID, teacherUserID)
	}
	return nil
}

type mockModuleLister struct {
	listModulesFn func(ctx context.Context, actor *model.Profile, courseID string) ([]*model.CourseModule, error)
}

func (m *mockModuleLister) ListModules(ctx context.Context, actor *model.Profile, courseID string) ([]*model.CourseModule, error) {
	if m.listModulesFn != nil {
		return m.listModulesFn(ctx, actor, courseID)
	}
	return nil, nil
}

type mockAnnouncementLister struct {
	listByCourseFn func(ctx context.Context, actor *model.Profile, courseID string) ([]*announce.Announcement, error)
}

func (m *mockAnnouncementLister) ListByCourse(ctx context.Context, actor *model.Profile, courseID string) ([]*announce.Announcement, error) {
	if m.listByCourseFn != nil {
		return m.listByCourseFn(ctx, actor, courseID)
	}
	return nil, nil
}

// compile-time interface checks
var (
	_ ProfileFinder          = (*mockProfileFinder)(nil)
	_ CourseServiceInterface = (*mockCourseService)(nil)
	_ CourseModuleLister     = (*mockModuleLister)(nil)
	_ AnnouncementLister     = (*mockAnnouncementLister)(nil)
)

// courseRouter はコースハンドラーのルーティングだけを持つテスト用ルーター。
func courseRouter(h *CourseHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/courses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/teachers", h.ListTeachers)
			r.Post("/teachers/{userId}", h.AssignTeacher)
			r.Delete("/teachers/{userId}", h.RemoveTeacher)
			r.Get("/modules", h.ListModules)
			r.Get("/announcements", h.ListAnnouncements)
		})
	})
	return r
}

func newCourseHandler(service *mockCourseService, modules *mockModuleLister, announcements *mockAnnouncementLister, profiles *mockProfileFinder) *CourseHandler {
	if service == nil {
		service = &mockCourseService{}
	}
	if modules == nil {
		modules = &mockModuleLister{}
	}
	if announcements == nil {
		announcements = &mockAnnouncementLister{}
	}
	if profiles == nil {
		profiles = profileFinderWith(adminProfile(), teacherProfile(), studentProfile())
	}
	return NewCourseHandler(service, modules, announcements, profiles)
}

// --- テスト ---

func TestCourseList_ReturnsCourses(t *testing.T) {
	service := &mockCourseService{
		listFn: func(ctx context.Context, actor *model.Profile) ([]*model.Course, error) {
			if actor == nil || actor.UserID != "u-student" {
				t.Errorf("unexpected actor: %+v", actor)
			}
			return []*model.Course{
				{ID: "c-1", Title: "Programación I"},
				{ID: "c-2", Title: "Bases de Datos"},
			}, nil
		},
	}
	router := courseRouter(newCourseHandler(service, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/courses", nil), "u-student")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Success bool `json:"success"`
		Courses []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"courses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !body.Success {
		t.Error("success should be true")
	}
	if len(body.Courses) != 2 || body.Courses[0].Title != "Programación I" {
		t.Errorf("courses = %+v", body.Courses)
	}
}

func TestCourseList_NoSessionContext_Returns401(t *testing.T) {
	router := courseRouter(newCourseHandler(nil, nil, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	code, _ := decodeErrorEnvelope(t, resp)
	if code != model.ErrCodeNotAuthenticated {
		t.Errorf("code = %q, want %q", code, model.ErrCodeNotAuthenticated)
	}
}

func TestCourseGet_NotFound_Returns404(t *testing.T) {
	service := &mockCourseService{
		getByIDFn: func(ctx context.Context, actor *model.Profile, courseID string) (*model.Course, error) {
			return nil, model.NewCourseNotFoundError(courseID)
		},
	}
	router := courseRouter(newCourseHandler(service, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/courses/missing", nil), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	code, _ := decodeErrorEnvelope(t, resp)
	if code != model.ErrCodeCourseNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeCourseNotFound)
	}
}

func TestCourseCreate_Admin_Returns201(t *testing.T) {
	service := &mockCourseService{
		createFn: func(ctx context.Context, actor *model.Profile, input course.Input) (*model.Course, error) {
			if !actor.IsAdmin() {
				t.Errorf("actor role = %s, want admin", actor.Role)
			}
			if input.Title != "Programación I" {
				t.Errorf("title = %q", input.Title)
			}
			return &model.Course{
				ID:        "c-new",
				Title:     input.Title,
				StartDate: input.StartDate,
				EndDate:   input.EndDate,
				CreatedBy: actor.UserID,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	router := courseRouter(newCourseHandler(service, nil, nil, nil))

	payload := `{"title":"Programación I","start_date":"2026-09-01T00:00:00Z","end_date":"2026-12-15T00:00:00Z","is_active":true}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/courses", strings.NewReader(payload)), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body struct {
		Course struct {
			ID        string `json:"id"`
			CreatedBy string `json:"created_by"`
		} `json:"course"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Course.ID != "c-new" || body.Course.CreatedBy != "u-admin" {
		t.Errorf("course = %+v", body.Course)
	}
}

func TestCourseCreate_Forbidden_Returns403(t *testing.T) {
	service := &mockCourseService{
		createFn: func(ctx context.Context, actor *model.Profile, input course.Input) (*model.Course, error) {
			return nil, model.NewForbiddenError()
		},
	}
	router := courseRouter(newCourseHandler(service, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/courses",
		strings.NewReader(`{"title":"x"}`)), "u-student")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestCourseCreate_InvalidJSON_Returns400(t *testing.T) {
	router := courseRouter(newCourseHandler(nil, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/courses",
		strings.NewReader(`{broken`)), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCourseDelete_Returns204(t *testing.T) {
	router := courseRouter(newCourseHandler(nil, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/courses/c-1", nil), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestAssignTeacher_PassesURLParams(t *testing.T) {
	var gotCourseID, gotUserID string
	service := &mockCourseService{
		assignTeacherFn: func(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error {
			gotCourseID = courseID
			gotUserID = teacherUserID
			return nil
		},
	}
	router := courseRouter(newCourseHandler(service, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/courses/c-1/teachers/u-teacher", nil), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
	if gotCourseID != "c-1" || gotUserID != "u-teacher" {
		t.Errorf("AssignTeacher(%q, %q)", gotCourseID, gotUserID)
	}
}

func TestAssignTeacher_Duplicate_Returns422(t *testing.T) {
	service := &mockCourseService{
		assignTeacherFn: func(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error {
			return model.NewDuplicateAssignmentError()
		},
	}
	router := courseRouter(newCourseHandler(service, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/courses/c-1/teachers/u-teacher", nil), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	code, _ := decodeErrorEnvelope(t, resp)
	if code != model.ErrCodeDuplicateAssignment {
		t.Errorf("code = %q, want %q", code, model.ErrCodeDuplicateAssignment)
	}
}

func TestRemoveTeacher_Returns204(t *testing.T) {
	router := courseRouter(newCourseHandler(nil, nil, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/courses/c-1/teachers/u-teacher", nil), "u-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestCourseListModules_ReturnsModules(t *testing.T) {
	modules := &mockModuleLister{
		listModulesFn: func(ctx context.Context, actor *model.Profile, courseID string) ([]*model.CourseModule, error) {
			return []*model.CourseModule{
				{ID: "m-1", CourseID: courseID, Title: "Introducción", IsPublished: true},
			}, nil
		},
	}
	router := courseRouter(newCourseHandler(nil, modules, nil, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/courses/c-1/modules", nil), "u-student")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Modules []struct {
			ID       string `json:"id"`
			CourseID string `json:"course_id"`
		} `json:"modules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Modules) != 1 || body.Modules[0].CourseID != "c-1" {
		t.Errorf("modules = %+v", body.Modules)
	}
}

func TestCourseListAnnouncements_ReturnsAnnouncements(t *testing.T) {
	published := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	announcements := &mockAnnouncementLister{
		listByCourseFn: func(ctx context.Context, actor *model.Profile, courseID string) ([]*announce.Announcement, error) {
			return []*announce.Announcement{
				{Title: "Examen parcial", Link: "https://example.com/1", PublishedAt: &published},
			}, nil
		},
	}
	router := courseRouter(newCourseHandler(nil, nil, announcements, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/courses/c-1/announcements", nil), "u-student")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Announcements []struct {
			Title string `json:"title"`
		} `json:"announcements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Announcements) != 1 || body.Announcements[0].Title != "Examen parcial" {
		t.Errorf("announcements = %+v", body.Announcements)
	}
}

func TestCourseListAnnouncements_InvalidURL_Returns422(t *testing.T) {
	announcements := &mockAnnouncementLister{
		listByCourseFn: func(ctx context.Context, actor *model.Profile, courseID string) ([]*announce.Announcement, error) {
			return nil, model.NewInvalidAnnouncementsURLError("blocked IP address")
		},
	}
	router := courseRouter(newCourseHandler(nil, nil, announcements, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/courses/c-1/announcements", nil), "u-student")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	code, _ := decodeErrorEnvelope(t, resp)
	if code != model.ErrCodeInvalidAnnouncementsURL {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidAnnouncementsURL)
	}
}
