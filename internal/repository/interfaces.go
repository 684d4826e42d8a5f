// Package repository はデータ永続化のインターフェースを定義する。
//
// 各インターフェースは外部データストアに対するケイパビリティポートであり、
// ユースケース層はこのポート経由でのみ永続化に触れる。
// 実装はPostgreSQLアダプターとテスト用モックの2系統。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/aula/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを単独で作成する（パスワードサインアップ用）。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する
	// （OAuth初回ログイン用）。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// ConfirmEmail はメール確認日時を記録する。
	ConfirmEmail(ctx context.Context, userID string, confirmedAt time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、credentials、profiles、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// CredentialRepository はパスワード資格情報の永続化インターフェース。
type CredentialRepository interface {
	// FindByUserID は指定ユーザーの資格情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Credential, error)

	// Upsert は資格情報を冪等に保存する（パスワード設定・更新の両方で使用）。
	Upsert(ctx context.Context, credential *model.Credential) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// OtpRepository はワンタイムトークンの永続化インターフェース。
type OtpRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.OtpToken) error

	// FindUsableByHash はハッシュと種別で未消費かつ期限内のトークンを検索する。
	// 見つからない場合はnilを返す。
	FindUsableByHash(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.OtpToken, error)

	// Consume はトークンを消費済みにする。再利用は不可能になる。
	Consume(ctx context.Context, id string, consumedAt time.Time) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
// プロフィールはuserIDで一意に特定される（Userと1対1）。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// ListByRole は指定ロールの全プロフィールを作成日時順で返す。
	ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error)

	// CountByRole は指定ロールのプロフィール数を返す。
	// 最後の管理者保護のため、削除判定のたびに呼び直すこと。
	CountByRole(ctx context.Context, role model.Role) (int, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// Update は氏名などの属性を更新する。ロールはUpdateRoleでのみ変更する。
	Update(ctx context.Context, profile *model.Profile) error

	// UpdateRole は指定ユーザーのロールを変更する。
	UpdateRole(ctx context.Context, userID string, role model.Role) error

	// DeleteByUserID は指定ユーザーのプロフィールを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CourseRepository はコースデータの永続化インターフェース。
// 講師割り当て（course_teachers）の操作も含む。
type CourseRepository interface {
	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)

	// List は全コースを開始日順で返す。
	List(ctx context.Context) ([]*model.Course, error)

	// Create はコースを作成する。
	Create(ctx context.Context, course *model.Course) error

	// Update はコースを更新する。
	Update(ctx context.Context, course *model.Course) error

	// Delete は指定IDのコースを削除する。
	// 所有するモジュール・レッスン・講師割り当てはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListTeacherIDs はコースに割り当て済みの講師のuserID一覧を返す。
	ListTeacherIDs(ctx context.Context, courseID string) ([]string, error)

	// IsTeacherAssigned は講師がコースに割り当て済みかを返す。
	// 重複割り当ての冪等ガードに使用する。
	IsTeacherAssigned(ctx context.Context, courseID, teacherUserID string) (bool, error)

	// AssignTeacher は講師をコースに割り当てる。
	AssignTeacher(ctx context.Context, courseID, teacherUserID string) error

	// RemoveTeacher は講師の割り当てを解除する。
	RemoveTeacher(ctx context.Context, courseID, teacherUserID string) error
}

// ModuleRepository はコースモジュールの永続化インターフェース。
type ModuleRepository interface {
	// FindByID は指定IDのモジュールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CourseModule, error)

	// ListByCourseID はコースのモジュール一覧をorder_index昇順で返す。
	// order_indexが同値の場合は作成日時順。
	ListByCourseID(ctx context.Context, courseID string) ([]*model.CourseModule, error)

	// Create はモジュールを作成する。
	Create(ctx context.Context, module *model.CourseModule) error

	// Update はモジュールを更新する。
	Update(ctx context.Context, module *model.CourseModule) error

	// Delete は指定IDのモジュールを削除する。所有レッスンはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// LessonRepository はレッスンの永続化インターフェース。
type LessonRepository interface {
	// FindByID は指定IDのレッスンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Lesson, error)

	// ListByModuleID はモジュールのレッスン一覧をorder_index昇順で返す。
	ListByModuleID(ctx context.Context, moduleID string) ([]*model.Lesson, error)

	// Create はレッスンを作成する。
	Create(ctx context.Context, lesson *model.Lesson) error

	// Update はレッスンを更新する。
	Update(ctx context.Context, lesson *model.Lesson) error

	// Delete は指定IDのレッスンを削除する。
	Delete(ctx context.Context, id string) error
}
