// Package profile はプロフィールとロール管理のユースケースを提供する。
//
// 認可判定はauthzパッケージの純粋関数に委譲し、本パッケージは
// 事実の取得（リポジトリ呼び出し）と判定結果に基づく実行のみを行う。
// 1回の呼び出しにつきリポジトリへの変更は最大1回。
package profile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/aula/internal/authz"
	"github.com/hitoshi/aula/internal/model"
	"github.com/hitoshi/aula/internal/repository"
)

// People は一覧画面用の受講者・講師のプロフィール集合。
type People struct {
	Students []*model.Profile
	Teachers []*model.Profile
}

// Service はプロフィール管理のユースケースを提供する。
type Service struct {
	profileRepo repository.ProfileRepository
}

// NewService はプロフィールServiceを生成する。
func NewService(profileRepo repository.ProfileRepository) *Service {
	return &Service{profileRepo: profileRepo}
}

// GetByUserID はユーザーIDに対応するプロフィールを取得する。
// 見つからない場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		slog.Error("failed to find profile", "error", err, "user_id", userID)
		return nil, model.NewUpstreamFaultError("Error al cargar el perfil")
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// ListPeople は受講者と講師の一覧を返す。
// 認証済みプロフィールであれば閲覧できる。
// 受講者と講師は独立した問い合わせのため並行に取得する。
func (s *Service) ListPeople(ctx context.Context, actor *model.Profile) (*People, error) {
	if apiErr := authz.CanListContent(actor); apiErr != nil {
		return nil, apiErr
	}

	var (
		wg          sync.WaitGroup
		students    []*model.Profile
		teachers    []*model.Profile
		studentsErr error
		teachersErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		students, studentsErr = s.profileRepo.ListByRole(ctx, model.RoleStudent)
	}()
	go func() {
		defer wg.Done()
		teachers, teachersErr = s.profileRepo.ListByRole(ctx, model.RoleTeacher)
	}()
	wg.Wait()

	if studentsErr != nil || teachersErr != nil {
		slog.Error("failed to list people",
			"students_error", studentsErr, "teachers_error", teachersErr)
		return nil, model.NewUpstreamFaultError("Error al cargar los perfiles")
	}

	return &People{Students: students, Teachers: teachers}, nil
}

// PromoteToTeacher は対象プロフィールを講師ロールに昇格させる。管理者のみ。
func (s *Service) PromoteToTeacher(ctx context.Context, actor *model.Profile, targetUserID string) error {
	return s.changeRole(ctx, actor, targetUserID, model.RoleTeacher, "Error al promover el perfil")
}

// DemoteToStudent は対象プロフィールを受講者ロールに降格させる。管理者のみ。
func (s *Service) DemoteToStudent(ctx context.Context, actor *model.Profile, targetUserID string) error {
	return s.changeRole(ctx, actor, targetUserID, model.RoleStudent, "Error al degradar el perfil")
}

// changeRole はロール変更の共通処理。
// 検査順序: 未認証 → 対象未検出 → 権限。
func (s *Service) changeRole(ctx context.Context, actor *model.Profile, targetUserID string, role model.Role, fallback string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	target, err := s.profileRepo.FindByUserID(ctx, targetUserID)
	if err != nil {
		slog.Error("failed to find target profile", "error", err, "user_id", targetUserID)
		return model.NewUpstreamFaultError(fallback)
	}
	if target == nil {
		return model.NewProfileNotFoundError()
	}

	if apiErr := authz.CanChangeRole(actor); apiErr != nil {
		return apiErr
	}

	if err := s.profileRepo.UpdateRole(ctx, targetUserID, role); err != nil {
		slog.Error("failed to update role",
			"error", err, "user_id", targetUserID, "role", role)
		return model.NewUpstreamFaultError(fallback)
	}

	slog.Info("role updated",
		"actor_user_id", actor.UserID, "target_user_id", targetUserID, "role", role)
	return nil
}

// DeleteProfile は対象プロフィールを削除する。
// 管理者のみ。自己削除と最後の管理者の削除は拒否する。
// 管理者数は呼び出しのたびに再取得する。
func (s *Service) DeleteProfile(ctx context.Context, actor *model.Profile, targetUserID string) error {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}

	target, err := s.profileRepo.FindByUserID(ctx, targetUserID)
	if err != nil {
		slog.Error("failed to find target profile", "error", err, "user_id", targetUserID)
		return model.NewUpstreamFaultError("Error al eliminar el perfil")
	}
	if target == nil {
		return model.NewProfileNotFoundError()
	}

	adminCount, err := s.profileRepo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		slog.Error("failed to count admins", "error", err)
		return model.NewUpstreamFaultError("Error al eliminar el perfil")
	}

	if apiErr := authz.CanDeleteProfile(actor, target, adminCount); apiErr != nil {
		return apiErr
	}

	if err := s.profileRepo.DeleteByUserID(ctx, targetUserID); err != nil {
		slog.Error("failed to delete profile", "error", err, "user_id", targetUserID)
		return model.NewUpstreamFaultError("Error al eliminar el perfil")
	}

	slog.Info("profile deleted",
		"actor_user_id", actor.UserID, "target_user_id", targetUserID)
	return nil
}
