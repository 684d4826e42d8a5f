package model

import "time"

// OtpType はワンタイムトークンの用途を表す。
type OtpType string

const (
	// OtpTypeSignup はメールアドレス確認用トークン。
	OtpTypeSignup OtpType = "signup"
	// OtpTypeRecovery はパスワード再設定用トークン。
	// 検証成功後は必ずパスワード更新画面に遷移する。
	OtpTypeRecovery OtpType = "recovery"
)

// OtpToken はメールで送付するワンタイム検証トークンを表す。
// 平文トークンは保存せず、SHA-256ハッシュのみをTokenHashに保持する。
type OtpToken struct {
	ID         string
	UserID     string
	TokenHash  string
	Type       OtpType
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// IsUsable はトークンが未消費かつ有効期限内であることを検証する。
func (t *OtpToken) IsUsable(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
