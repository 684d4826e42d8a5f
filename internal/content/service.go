// Package content はモジュールとレッスンのユースケースを提供する。
//
// 書き込み経路ではHTMLコンテンツを保存前にサニタイズする。
// 閲覧経路の可視性はauthzの安定フィルタが決める。
// 検査順序: 未認証 → 対象未検出 → 権限。
package content

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/aula/internal/authz"
	"github.com/hitoshi/aula/internal/model"
	"github.com/hitoshi/aula/internal/repository"
	"github.com/hitoshi/aula/internal/security"
)

// ModuleInput はモジュール作成・更新の入力。
type ModuleInput struct {
	Title       string
	Description string
	OrderIndex  int
	Content     string
	IsPublished bool
}

// LessonInput はレッスン作成・更新の入力。
type LessonInput struct {
	Title           string
	Content         string
	OrderIndex      int
	DurationMinutes int
	IsPublished     bool
}

// Service はモジュール・レッスン管理のユースケースを提供する。
type Service struct {
	courseRepo repository.CourseRepository
	moduleRepo repository.ModuleRepository
	lessonRepo repository.LessonRepository
	sanitizer  security.ContentSanitizerService
}

// NewService はコンテンツServiceを生成する。
func NewService(courseRepo repository.CourseRepository, moduleRepo repository.ModuleRepository, lessonRepo repository.LessonRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		courseRepo: courseRepo,
		moduleRepo: moduleRepo,
		lessonRepo: lessonRepo,
		sanitizer:  sanitizer,
	}
}

// ListModules はコースのモジュール一覧を返す。
// 受講者には公開済みのみが、管理者・講師には全件が元の順序のまま返る。
func (s *Service) ListModules(ctx context.Context, actor *model.Profile, courseID string) ([]*model.CourseModule, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al cargar los módulos")
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	modules, err := s.moduleRepo.ListByCourseID(ctx, courseID)
	if err != nil {
		slog.Error("failed to list modules", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al cargar los módulos")
	}

	return authz.VisibleModules(actor, modules), nil
}

// GetModule は指定IDのモジュールを返す。
// 受講者が未公開モジュールを参照した場合は未検出として扱う。
func (s *Service) GetModule(ctx context.Context, actor *model.Profile, moduleID string) (*model.CourseModule, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		slog.Error("failed to find module", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al cargar el módulo")
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(moduleID)
	}
	if actor.IsStudent() && !module.IsPublished {
		return nil, model.NewModuleNotFoundError(moduleID)
	}
	return module, nil
}

// CreateModule はモジュールを作成する。管理者、またはコースの担当講師のみ。
func (s *Service) CreateModule(ctx context.Context, actor *model.Profile, courseID string, input ModuleInput) (*model.CourseModule, error) {
	if actor == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al crear módulo")
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	teacherIDs, err := s.courseRepo.ListTeacherIDs(ctx, courseID)
	if err != nil {
		slog.Error("failed to list course teachers", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al crear módulo")
	}

	if apiErr := authz.CanWriteModule(actor, teacherIDs); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now()
	module := &model.CourseModule{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       input.Title,
		Description: input.Description,
		OrderIndex:  input.OrderIndex,
		Content:     s.sanitizer.Sanitize(input.Content),
		IsPublished: input.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.moduleRepo.Create(ctx, module); err != nil {
		slog.Error("failed to create module", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al crear módulo")
	}

	slog.Info("module created",
		"module_id", module.ID, "course_id", courseID, "actor_user_id", actor.UserID)
	return module, nil
}

// UpdateModule はモジュールを更新する。管理者、またはコースの担当講師のみ。
func (s *Service) UpdateModule(ctx context.Context, actor *model.Profile, moduleID string, input ModuleInput) (*model.CourseModule, error) {
	if actor == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		slog.Error("failed to find module", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al actualizar módulo")
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(moduleID)
	}

	teacherIDs, err := s.courseRepo.ListTeacherIDs(ctx, module.CourseID)
	if err != nil {
		slog.Error("failed to list course teachers", "error", err, "course_id", module.CourseID)
		return nil, model.NewUpstreamFaultError("Error al actualizar módulo")
	}

	if apiErr := authz.CanWriteModule(actor, teacherIDs); apiErr != nil {
		return nil, apiErr
	}

	module.Title = input.Title
	module.Description = input.Description
	module.OrderIndex = input.OrderIndex
	module.Content = s.sanitizer.Sanitize(input.Content)
	module.IsPublished = input.IsPublished
	module.UpdatedAt = time.Now()

	if err := s.moduleRepo.Update(ctx, module); err != nil {
		slog.Error("failed to update module", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al actualizar módulo")
	}

	slog.Info("module updated",
		"module_id", moduleID, "actor_user_id", actor.UserID)
	return module, nil
}

// DeleteModule はモジュールを削除する。管理者のみ。所有レッスンも削除される。
func (s *Service) DeleteModule(ctx context.Context, actor *model.Profile, moduleID string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		slog.Error("failed to find module", "error", err, "module_id", moduleID)
		return model.NewUpstreamFaultError("Error al eliminar módulo")
	}
	if module == nil {
		return model.NewModuleNotFoundError(moduleID)
	}

	if apiErr := authz.CanDeleteModule(actor); apiErr != nil {
		return apiErr
	}

	if err := s.moduleRepo.Delete(ctx, moduleID); err != nil {
		slog.Error("failed to delete module", "error", err, "module_id", moduleID)
		return model.NewUpstreamFaultError("Error al eliminar módulo")
	}

	slog.Info("module deleted",
		"module_id", moduleID, "actor_user_id", actor.UserID)
	return nil
}

// ListLessons はモジュールのレッスン一覧を返す。
// 可視性規則はListModulesと同一。
func (s *Service) ListLessons(ctx context.Context, actor *model.Profile, moduleID string) ([]*model.Lesson, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		slog.Error("failed to find module", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al cargar las lecciones")
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(moduleID)
	}

	lessons, err := s.lessonRepo.ListByModuleID(ctx, moduleID)
	if err != nil {
		slog.Error("failed to list lessons", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al cargar las lecciones")
	}

	return authz.VisibleLessons(actor, lessons), nil
}

// GetLesson は指定IDのレッスンを返す。
// 受講者が未公開レッスンを参照した場合は未検出として扱う。
func (s *Service) GetLesson(ctx context.Context, actor *model.Profile, lessonID string) (*model.Lesson, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	lesson, err := s.lessonRepo.FindByID(ctx, lessonID)
	if err != nil {
		slog.Error("failed to find lesson", "error", err, "lesson_id", lessonID)
		return nil, model.NewUpstreamFaultError("Error al cargar la lección")
	}
	if lesson == nil {
		return nil, model.NewLessonNotFoundError(lessonID)
	}
	if actor.IsStudent() && !lesson.IsPublished {
		return nil, model.NewLessonNotFoundError(lessonID)
	}
	return lesson, nil
}

// CreateLesson はレッスンを作成する。
// 管理者、またはレッスンが属するモジュールのコースの担当講師のみ。
func (s *Service) CreateLesson(ctx context.Context, actor *model.Profile, moduleID string, input LessonInput) (*model.Lesson, error) {
	if actor == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	module, err := s.moduleRepo.FindByID(ctx, moduleID)
	if err != nil {
		slog.Error("failed to find module", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al crear lección")
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(moduleID)
	}

	teacherIDs, err := s.courseRepo.ListTeacherIDs(ctx, module.CourseID)
	if err != nil {
		slog.Error("failed to list course teachers", "error", err, "course_id", module.CourseID)
		return nil, model.NewUpstreamFaultError("Error al crear lección")
	}

	if apiErr := authz.CanWriteLesson(actor, teacherIDs); apiErr != nil {
		return nil, apiErr
	}

	now := time.Now()
	lesson := &model.Lesson{
		ID:              uuid.NewString(),
		ModuleID:        moduleID,
		Title:           input.Title,
		Content:         s.sanitizer.Sanitize(input.Content),
		OrderIndex:      input.OrderIndex,
		DurationMinutes: input.DurationMinutes,
		IsPublished:     input.IsPublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.lessonRepo.Create(ctx, lesson); err != nil {
		slog.Error("failed to create lesson", "error", err, "module_id", moduleID)
		return nil, model.NewUpstreamFaultError("Error al crear lección")
	}

	slog.Info("lesson created",
		"lesson_id", lesson.ID, "module_id", moduleID, "actor_user_id", actor.UserID)
	return lesson, nil
}

// UpdateLesson はレッスンを更新する。
// 管理者、またはレッスンが属するモジュールのコースの担当講師のみ。
func (s *Service) UpdateLesson(ctx context.Context, actor *model.Profile, lessonID string, input LessonInput) (*model.Lesson, error) {
	if actor == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	lesson, err := s.lessonRepo.FindByID(ctx, lessonID)
	if err != nil {
		slog.Error("failed to find lesson", "error", err, "lesson_id", lessonID)
		return nil, model.NewUpstreamFaultError("Error al actualizar lección")
	}
	if lesson == nil {
		return nil, model.NewLessonNotFoundError(lessonID)
	}

	module, err := s.moduleRepo.FindByID(ctx, lesson.ModuleID)
	if err != nil {
		slog.Error("failed to find module", "error", err, "module_id", lesson.ModuleID)
		return nil, model.NewUpstreamFaultError("Error al actualizar lección")
	}
	if module == nil {
		return nil, model.NewModuleNotFoundError(lesson.ModuleID)
	}

	teacherIDs, err := s.courseRepo.ListTeacherIDs(ctx, module.CourseID)
	if err != nil {
		slog.Error("failed to list course teachers", "error", err, "course_id", module.CourseID)
		return nil, model.NewUpstreamFaultError("Error al actualizar lección")
	}

	if apiErr := authz.CanWriteLesson(actor, teacherIDs); apiErr != nil {
		return nil, apiErr
	}

	lesson.Title = input.Title
	lesson.Content = s.sanitizer.Sanitize(input.Content)
	lesson.OrderIndex = input.OrderIndex
	lesson.DurationMinutes = input.DurationMinutes
	lesson.IsPublished = input.IsPublished
	lesson.UpdatedAt = time.Now()

	if err := s.lessonRepo.Update(ctx, lesson); err != nil {
		slog.Error("failed to update lesson", "error", err, "lesson_id", lessonID)
		return nil, model.NewUpstreamFaultError("Error al actualizar lección")
	}

	slog.Info("lesson updated",
		"lesson_id", lessonID, "actor_user_id", actor.UserID)
	return lesson, nil
}

// DeleteLesson はレッスンを削除する。管理者のみ。
func (s *Service) DeleteLesson(ctx context.Context, actor *model.Profile, lessonID string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	lesson, err := s.lessonRepo.FindByID(ctx, lessonID)
	if err != nil {
		slog.Error("failed to find lesson", "error", err, "lesson_id", lessonID)
		return model.NewUpstreamFaultError("Error al eliminar lección")
	}
	if lesson == nil {
		return model.NewLessonNotFoundError(lessonID)
	}

	if apiErr := authz.CanDeleteLesson(actor); apiErr != nil {
		return apiErr
	}

	if err := s.lessonRepo.Delete(ctx, lessonID); err != nil {
		slog.Error("failed to delete lesson", "error", err, "lesson_id", lessonID)
		return model.NewUpstreamFaultError("Error al eliminar lección")
	}

	slog.Info("lesson deleted",
		"lesson_id", lessonID, "actor_user_id", actor.UserID)
	return nil
}
