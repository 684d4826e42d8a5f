// Package authz は認可判定エンジンを提供する。
//
// すべての関数は事実（実行者プロフィール、対象エンティティ、担当講師集合）を
// 受け取り判定結果を返す純粋関数であり、I/Oを行わない。
// 事実の取得（リポジトリ呼び出し）はユースケース層の責務。
//
// 検査順序は固定: 未認証 → ロール/担当 → 値の妥当性。
// 呼び出しごとに全条件を再評価し、過去の判定をキャッシュしない。
package authz

import (
	"time"

	"github.com/hitoshi/aula/internal/model"
)

// CanCreateCourse はコース作成の可否を判定する。
// 管理者のみ。終了日は開始日より後でなければならない。
func CanCreateCourse(actor *model.Profile, startDate, endDate time.Time) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	if !actor.IsAdmin() {
		return model.NewForbiddenError()
	}
	if !endDate.After(startDate) {
		return model.NewInvalidDateRangeError()
	}
	return nil
}

// CanUpdateCourse はコース更新の可否を判定する。
// 管理者、またはそのコースの担当講師のみ。
// teacherIDsにはコースに割り当て済みの講師のuserIDを渡す。
func CanUpdateCourse(actor *model.Profile, teacherIDs []string, startDate, endDate time.Time) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	if !actor.IsAdmin() && !(actor.IsTeacher() && isAssigned(actor.UserID, teacherIDs)) {
		return model.NewForbiddenError()
	}
	if !endDate.After(startDate) {
		return model.NewInvalidDateRangeError()
	}
	return nil
}

// CanDeleteCourse はコース削除の可否を判定する。管理者のみ。
func CanDeleteCourse(actor *model.Profile) *model.APIError {
	return adminOnly(actor)
}

// CanAssignTeacher は講師割り当ての可否を判定する。
// 管理者のみ。対象プロフィールは講師ロールでなければならず、
// 既に割り当て済みのペアは重複として明示的に拒否する。
func CanAssignTeacher(actor *model.Profile, target *model.Profile, alreadyAssigned bool) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	if !actor.IsAdmin() {
		return model.NewForbiddenError()
	}
	if !target.IsTeacher() {
		return model.NewTargetNotTeacherError()
	}
	if alreadyAssigned {
		return model.NewDuplicateAssignmentError()
	}
	return nil
}

// CanRemoveTeacher は講師割り当て解除の可否を判定する。管理者のみ。
func CanRemoveTeacher(actor *model.Profile) *model.APIError {
	return adminOnly(actor)
}

// CanWriteModule はモジュールの作成・更新の可否を判定する。
// 管理者、またはモジュールが属するコースの担当講師のみ。
func CanWriteModule(actor *model.Profile, teacherIDs []string) *model.APIError {
	return adminOrAssignedTeacher(actor, teacherIDs)
}

// CanDeleteModule はモジュール削除の可否を判定する。管理者のみ。
func CanDeleteModule(actor *model.Profile) *model.APIError {
	return adminOnly(actor)
}

// CanWriteLesson はレッスンの作成・更新の可否を判定する。
// 管理者、またはレッスンが属するモジュールのコースの担当講師のみ。
func CanWriteLesson(actor *model.Profile, teacherIDs []string) *model.APIError {
	return adminOrAssignedTeacher(actor, teacherIDs)
}

// CanDeleteLesson はレッスン削除の可否を判定する。管理者のみ。
func CanDeleteLesson(actor *model.Profile) *model.APIError {
	return adminOnly(actor)
}

// CanChangeRole はロールの昇格・降格の可否を判定する。管理者のみ。
func CanChangeRole(actor *model.Profile) *model.APIError {
	return adminOnly(actor)
}

// CanDeleteProfile はプロフィール削除の可否を判定する。
// 管理者のみ。自分自身は削除できない。
// adminCountには削除前の管理者数を渡す。対象が管理者で削除後に
// 管理者が0人になる場合は拒否する。
func CanDeleteProfile(actor *model.Profile, target *model.Profile, adminCount int) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	if !actor.IsAdmin() {
		return model.NewForbiddenError()
	}
	if actor.UserID == target.UserID {
		return model.NewSelfDeleteError()
	}
	if target.IsAdmin() && adminCount <= 1 {
		return model.NewLastAdminError()
	}
	return nil
}

// CanListContent はモジュール・レッスン一覧の閲覧可否を判定する。
// 認証済みプロフィールであれば閲覧できる。何が見えるかはVisibleModules/
// VisibleLessonsのフィルタが決める。
func CanListContent(actor *model.Profile) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	return nil
}

// adminOnly は管理者限定操作の共通判定。
func adminOnly(actor *model.Profile) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	if !actor.IsAdmin() {
		return model.NewForbiddenError()
	}
	return nil
}

// adminOrAssignedTeacher は「管理者または担当講師」操作の共通判定。
func adminOrAssignedTeacher(actor *model.Profile, teacherIDs []string) *model.APIError {
	if actor == nil {
		return model.NewNotAuthenticatedError()
	}
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsTeacher() && isAssigned(actor.UserID, teacherIDs) {
		return nil
	}
	return model.NewForbiddenError()
}

// isAssigned はuserIDが担当講師集合に含まれるかを返す。
func isAssigned(userID string, teacherIDs []string) bool {
	for _, id := range teacherIDs {
		if id == userID {
			return true
		}
	}
	return false
}
