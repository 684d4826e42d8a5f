// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// displayNameFallback は表示名が一切得られない場合の既定値。
// UIがスペイン語圏向けのため "Usuario" を使用する。
const displayNameFallback = "Usuario"

// User は認証基盤上のユーザーアイデンティティを表す。
// ロールはUserではなくProfileが保持する。
type User struct {
	ID               string
	Email            string
	FullName         string
	AvatarURL        string
	Metadata         map[string]string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName はUIに表示するユーザー名を返す。
// 優先順位: FullName → Metadata["full_name"] → メールアドレスのローカル部 → "Usuario"。
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if name := u.Metadata["full_name"]; name != "" {
		return name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return displayNameFallback
}

// IsEmailConfirmed はメールアドレスがOTPで確認済みかどうかを返す。
func (u *User) IsEmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Identity は外部IdPとの紐付け情報を表す。
// 現状はGoogleのみだが、複数IdPに対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Credential はパスワードログイン用の資格情報を表す。
// PasswordHashはbcryptハッシュを保持する。
type Credential struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
