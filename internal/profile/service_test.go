package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/aula/internal/model"
	"github.com/hitoshi/aula/internal/repository"
)

type mockProfileRepo struct {
	findByUserIDFn   func(ctx context.Context, userID string) (*model.Profile, error)
	listByRoleFn     func(ctx context.Context, role model.Role) ([]*model.Profile, error)
	countByRoleFn    func(ctx context.Context, role model.Role) (int, error)
	updateRoleFn     func(ctx context.Context, userID string, role model.Role) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
	updateRoleCalls  int
	deleteCalls      int
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProfileRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	if m.listByRoleFn != nil {
		return m.listByRoleFn(ctx, role)
	}
	return nil, nil
}

func (m *mockProfileRepo) CountByRole(ctx context.Context, role model.Role) (int, error) {
	if m.countByRoleFn != nil {
		return m.countByRoleFn(ctx, role)
	}
	return 0, nil
}

func (m *mockProfileRepo) Create(_ context.Context, _ *model.Profile) error {
	return nil
}

func (m *mockProfileRepo) Update(_ context.Context, _ *model.Profile) error {
	return nil
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	m.updateRoleCalls++
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, userID, role)
	}
	return nil
}

func (m *mockProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	m.deleteCalls++
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// compile-time interface check
var _ repository.ProfileRepository = (*mockProfileRepo)(nil)

func adminActor() *model.Profile {
	return &model.Profile{ID: "p-admin", UserID: "u-admin", Role: model.RoleAdmin}
}

func studentActor() *model.Profile {
	return &model.Profile{ID: "p-student", UserID: "u-student", Role: model.RoleStudent}
}

func wantErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s, got nil", code)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("error code = %s, want %s", apiErr.Code, code)
	}
}

func TestGetByUserID_NotFound(t *testing.T) {
	svc := NewService(&mockProfileRepo{})

	_, err := svc.GetByUserID(context.Background(), "unknown")
	wantErrorCode(t, err, model.ErrCodeProfileNotFound)
}

func TestListPeople_ReturnsStudentsAndTeachers(t *testing.T) {
	repo := &mockProfileRepo{
		listByRoleFn: func(ctx context.Context, role model.Role) ([]*model.Profile, error) {
			switch role {
			case model.RoleStudent:
				return []*model.Profile{
					{UserID: "s-1", Role: model.RoleStudent},
					{UserID: "s-2", Role: model.RoleStudent},
				}, nil
			case model.RoleTeacher:
				return []*model.Profile{
					{UserID: "t-1", Role: model.RoleTeacher},
				}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo)

	people, err := svc.ListPeople(context.Background(), studentActor())
	if err != nil {
		t.Fatalf("ListPeople() error = %v", err)
	}
	if len(people.Students) != 2 {
		t.Errorf("students = %d, want 2", len(people.Students))
	}
	if len(people.Teachers) != 1 {
		t.Errorf("teachers = %d, want 1", len(people.Teachers))
	}
}

func TestListPeople_NilActor_NotAuthenticated(t *testing.T) {
	svc := NewService(&mockProfileRepo{})

	_, err := svc.ListPeople(context.Background(), nil)
	wantErrorCode(t, err, model.ErrCodeNotAuthenticated)
}

func TestListPeople_RepoError_UpstreamFault(t *testing.T) {
	repo := &mockProfileRepo{
		listByRoleFn: func(ctx context.Context, role model.Role) ([]*model.Profile, error) {
			if role == model.RoleTeacher {
				return nil, errors.New("db down")
			}
			return nil, nil
		},
	}
	svc := NewService(repo)

	_, err := svc.ListPeople(context.Background(), adminActor())
	wantErrorCode(t, err, model.ErrCodeUpstreamFault)
}

func TestPromoteToTeacher_Success(t *testing.T) {
	var updatedUserID string
	var updatedRole model.Role

	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleStudent}, nil
		},
		updateRoleFn: func(ctx context.Context, userID string, role model.Role) error {
			updatedUserID = userID
			updatedRole = role
			return nil
		},
	}
	svc := NewService(repo)

	if err := svc.PromoteToTeacher(context.Background(), adminActor(), "u-target"); err != nil {
		t.Fatalf("PromoteToTeacher() error = %v", err)
	}
	if updatedUserID != "u-target" || updatedRole != model.RoleTeacher {
		t.Errorf("updated (%q, %s), want (u-target, teacher)", updatedUserID, updatedRole)
	}
}

func TestPromoteToTeacher_NonAdmin_Forbidden(t *testing.T) {
	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleStudent}, nil
		},
	}
	svc := NewService(repo)

	err := svc.PromoteToTeacher(context.Background(), studentActor(), "u-target")
	wantErrorCode(t, err, model.ErrCodeForbidden)

	if repo.updateRoleCalls != 0 {
		t.Errorf("UpdateRole must not be called, got %d calls", repo.updateRoleCalls)
	}
}

func TestPromoteToTeacher_TargetNotFound(t *testing.T) {
	svc := NewService(&mockProfileRepo{})

	err := svc.PromoteToTeacher(context.Background(), adminActor(), "unknown")
	wantErrorCode(t, err, model.ErrCodeProfileNotFound)
}

func TestDemoteToStudent_Success(t *testing.T) {
	var updatedRole model.Role

	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleTeacher}, nil
		},
		updateRoleFn: func(ctx context.Context, userID string, role model.Role) error {
			updatedRole = role
			return nil
		},
	}
	svc := NewService(repo)

	if err := svc.DemoteToStudent(context.Background(), adminActor(), "u-target"); err != nil {
		t.Fatalf("DemoteToStudent() error = %v", err)
	}
	if updatedRole != model.RoleStudent {
		t.Errorf("role = %s, want student", updatedRole)
	}
}

func TestDeleteProfile_Success(t *testing.T) {
	var deletedUserID string

	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleStudent}, nil
		},
		countByRoleFn: func(ctx context.Context, role model.Role) (int, error) {
			return 2, nil
		},
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			deletedUserID = userID
			return nil
		},
	}
	svc := NewService(repo)

	if err := svc.DeleteProfile(context.Background(), adminActor(), "u-target"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}
	if deletedUserID != "u-target" {
		t.Errorf("deleted = %q, want u-target", deletedUserID)
	}
}

func TestDeleteProfile_SelfDelete_Rejected(t *testing.T) {
	actor := adminActor()

	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleAdmin}, nil
		},
		countByRoleFn: func(ctx context.Context, role model.Role) (int, error) {
			return 5, nil
		},
	}
	svc := NewService(repo)

	err := svc.DeleteProfile(context.Background(), actor, actor.UserID)
	wantErrorCode(t, err, model.ErrCodeSelfDelete)

	if repo.deleteCalls != 0 {
		t.Errorf("DeleteByUserID must not be called, got %d calls", repo.deleteCalls)
	}
}

func TestDeleteProfile_LastAdmin_Rejected(t *testing.T) {
	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleAdmin}, nil
		},
		countByRoleFn: func(ctx context.Context, role model.Role) (int, error) {
			// 削除対象以外に管理者がいない
			return 1, nil
		},
	}
	svc := NewService(repo)

	err := svc.DeleteProfile(context.Background(), adminActor(), "u-other-admin")
	wantErrorCode(t, err, model.ErrCodeLastAdmin)

	if repo.deleteCalls != 0 {
		t.Errorf("DeleteByUserID must not be called, got %d calls", repo.deleteCalls)
	}
}

func TestDeleteProfile_AdminCountRefetchedEachCall(t *testing.T) {
	countCalls := 0
	repo := &mockProfileRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Role: model.RoleStudent}, nil
		},
		countByRoleFn: func(ctx context.Context, role model.Role) (int, error) {
			countCalls++
			return 2, nil
		},
	}
	svc := NewService(repo)

	ctx := context.Background()
	actor := adminActor()
	if err := svc.DeleteProfile(ctx, actor, "u-1"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}
	if err := svc.DeleteProfile(ctx, actor, "u-2"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}

	// 管理者数はキャッシュせず呼び出しごとに再取得する
	if countCalls != 2 {
		t.Errorf("CountByRole calls = %d, want 2", countCalls)
	}
}

func TestDeleteProfile_NilActor_NotAuthenticated(t *testing.T) {
	svc := NewService(&mockProfileRepo{})

	err := svc.DeleteProfile(context.Background(), nil, "u-target")
	wantErrorCode(t, err, model.ErrCodeNotAuthenticated)
}
