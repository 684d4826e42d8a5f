// Package course はコースと講師割り当てのユースケースを提供する。
//
// 認可判定はauthzパッケージの純粋関数に委譲する。
// 検査順序: 未認証 → 対象未検出 → 権限 → 値の妥当性。
package course

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

// Input はコース作成・更新の入力。
type Input struct {
	Title            string
	Description      string
	StartDate        time.Time
	EndDate          time.Time
	IsActive         bool
	AnnouncementsURL string
}

// Service はコース管理のユースケースを提供する。
type Service struct {
	courseRepo  repository.CourseRepository
	profileRepo repository.ProfileRepository
	ssrfGuard   security.SSRFGuardService
}

// NewService はコースServiceを生成する。
func NewService(courseRepo repository.CourseRepository, profileRepo repository.ProfileRepository, ssrfGuard security.SSRFGuardService) *Service {
	return &Service{
		courseRepo:  courseRepo,
		profileRepo: profileRepo,
		ssrfGuard:   ssrfGuard,
	}
}

// GetByID は指定IDのコースを返す。認証済みプロフィールであれば閲覧できる。
func (s *Service) GetByID(ctx context.Context, actor *model.Profile, courseID string) (*model.Course, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al cargar el curso")
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	return course, nil
}

// List は全コースを開始日順で返す。認証済みプロフィールであれば閲覧できる。
func (s *Service) List(ctx context.Context, actor *model.Profile) ([]*model.Course, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	courses, err := s.courseRepo.List(ctx)
	if err != nil {
		slog.Error("failed to list courses", "error", err)
		return nil, model.NewUpstreamFaultError("Error al cargar los cursos")
	}
	return courses, nil
}

// Create はコースを作成する。管理者のみ。
func (s *Service) Create(ctx context.Context, actor *model.Profile, input Input) (*model.Course, error) {
	if apiErr := authz.CanCreateCourse(actor, input.StartDate, input.EndDate); apiErr != nil {
		return nil, apiErr
	}

	if err := s.validateAnnouncementsURL(input.AnnouncementsURL); err != nil {
		return nil, err
	}

	now := time.Now()
	course := &model.Course{
		ID:               uuid.NewString(),
		Title:            input.Title,
		Description:      input.Description,
		StartDate:        input.StartDate,
		EndDate:          input.EndDate,
		IsActive:         input.IsActive,
		CreatedBy:        actor.UserID,
		AnnouncementsURL: input.AnnouncementsURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		slog.Error("failed to create course", "error", err, "title", input.Title)
		return nil, model.NewUpstreamFaultError("Error al crear curso")
	}

	slog.Info("course created",
		"course_id", course.ID, "actor_user_id", actor.UserID)
	return course, nil
}

// Update はコースを更新する。管理者、またはそのコースの担当講師のみ。
func (s *Service) Update(ctx context.Context, actor *model.Profile, courseID string, input Input) (*model.Course, error) {
	if actor == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al actualizar curso")
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	teacherIDs, err := s.courseRepo.ListTeacherIDs(ctx, courseID)
	if err != nil {
		slog.Error("failed to list course teachers", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al actualizar curso")
	}

	if apiErr := authz.CanUpdateCourse(actor, teacherIDs, input.StartDate, input.EndDate); apiErr != nil {
		return nil, apiErr
	}

	if err := s.validateAnnouncementsURL(input.AnnouncementsURL); err != nil {
		return nil, err
	}

	course.Title = input.Title
	course.Description = input.Description
	course.StartDate = input.StartDate
	course.EndDate = input.EndDate
	course.IsActive = input.IsActive
	course.AnnouncementsURL = input.AnnouncementsURL
	course.UpdatedAt = time.Now()

	if err := s.courseRepo.Update(ctx, course); err != nil {
		slog.Error("failed to update course", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al actualizar curso")
	}

	slog.Info("course updated",
		"course_id", courseID, "actor_user_id", actor.UserID)
	return course, nil
}

// Delete はコースを削除する。管理者のみ。
// 所有するモジュール・レッスン・講師割り当てもあわせて削除される。
func (s *Service) Delete(ctx context.Context, actor *model.Profile, courseID string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return model.NewUpstreamFaultError("Error al eliminar curso")
	}
	if course == nil {
		return model.NewCourseNotFoundError(courseID)
	}

	if apiErr := authz.CanDeleteCourse(actor); apiErr != nil {
		return apiErr
	}

	if err := s.courseRepo.Delete(ctx, courseID); err != nil {
		slog.Error("failed to delete course", "error", err, "course_id", courseID)
		return model.NewUpstreamFaultError("Error al eliminar curso")
	}

	slog.Info("course deleted",
		"course_id", courseID, "actor_user_id", actor.UserID)
	return nil
}

// ListTeacherIDs はコースに割り当て済みの講師のuserID一覧を返す。
func (s *Service) ListTeacherIDs(ctx context.Context, actor *model.Profile, courseID string) ([]string, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	teacherIDs, err := s.courseRepo.ListTeacherIDs(ctx, courseID)
	if err != nil {
		slog.Error("failed to list course teachers", "error", err, "course_id", courseID)
		return nil, model.NewUpstreamFaultError("Error al cargar los profesores")
	}
	return teacherIDs, nil
}

// AssignTeacher は講師をコースに割り当てる。管理者のみ。
// 対象プロフィールは講師ロールでなければならず、重複割り当ては明示的に拒否する。
func (s *Service) AssignTeacher(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return model.NewUpstreamFaultError("Error al asignar profesor")
	}
	if course == nil {
		return model.NewCourseNotFoundError(courseID)
	}

	target, err := s.profileRepo.FindByUserID(ctx, teacherUserID)
	if err != nil {
		slog.Error("failed to find target profile", "error", err, "user_id", teacherUserID)
		return model.NewUpstreamFaultError("Error al asignar profesor")
	}
	if target == nil {
		return model.NewProfileNotFoundError()
	}

	alreadyAssigned, err := s.courseRepo.IsTeacherAssigned(ctx, courseID, teacherUserID)
	if err != nil {
		slog.Error("failed to check assignment", "error", err,
			"course_id", courseID, "user_id", teacherUserID)
		return model.NewUpstreamFaultError("Error al asignar profesor")
	}

	if apiErr := authz.CanAssignTeacher(actor, target, alreadyAssigned); apiErr != nil {
		return apiErr
	}

	if err := s.courseRepo.AssignTeacher(ctx, courseID, teacherUserID); err != nil {
		slog.Error("failed to assign teacher", "error", err,
			"course_id", courseID, "user_id", teacherUserID)
		return model.NewUpstreamFaultError("Error al asignar profesor")
	}

	slog.Info("teacher assigned",
		"course_id", courseID, "teacher_user_id", teacherUserID, "actor_user_id", actor.UserID)
	return nil
}

// RemoveTeacher は講師の割り当てを解除する。管理者のみ。
func (s *Service) RemoveTeacher(ctx context.Context, actor *model.Profile, courseID, teacherUserID string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		slog.Error("failed to find course", "error", err, "course_id", courseID)
		return model.NewUpstreamFaultError("Error al quitar profesor")
	}
	if course == nil {
		return model.NewCourseNotFoundError(courseID)
	}

	if apiErr := authz.CanRemoveTeacher(actor); apiErr != nil {
		return apiErr
	}

	if err := s.courseRepo.RemoveTeacher(ctx, courseID, teacherUserID); err != nil {
		slog.Error("failed to remove teacher", "error", err,
			"course_id", courseID, "user_id", teacherUserID)
		return model.NewUpstreamFaultError("Error al quitar profesor")
	}

	slog.Info("teacher removed",
		"course_id", courseID, "teacher_user_id", teacherUserID, "actor_user_id", actor.UserID)
	return nil
}

// validateAnnouncementsURL はお知らせフィードURLを検証する。空は許容する。
func (s *Service) validateAnnouncementsURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		return model.NewInvalidAnnouncementsURLError(err.Error())
	}
	return nil
}
