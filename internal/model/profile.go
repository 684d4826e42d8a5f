package model

import "time"

// Role はプロフィールのロールを表す。
// student / teacher / admin の3値で、1プロフィールにつき必ず1つ。
type Role string

const (
	// RoleStudent は受講者ロール。公開済みコンテンツのみ閲覧できる。
	RoleStudent Role = "student"
	// RoleTeacher は講師ロール。担当コースのコンテンツを編集できる。
	RoleTeacher Role = "teacher"
	// RoleAdmin は管理者ロール。全操作が許可される。
	RoleAdmin Role = "admin"
)

// IsValid はロールが定義済みの3値のいずれかであることを検証する。
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Profile はユーザーのアプリケーション上のプロフィールを表す。
// Userと1対1で対応し、ロールの正本はProfileが持つ。
type Profile struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin は管理者ロールかどうかを返す。
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsTeacher は講師ロールかどうかを返す。
func (p *Profile) IsTeacher() bool {
	return p.Role == RoleTeacher
}

// IsStudent は受講者ロールかどうかを返す。
func (p *Profile) IsStudent() bool {
	return p.Role == RoleStudent
}

// FullName は姓名を結合した表示用フルネームを返す。
func (p *Profile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}
