// Package authflow は認証コールバックの解決ステートマシンを提供する。
//
// 1つの到着コールバックを消費し、リダイレクト先またはエラーコードの
// どちらか一方だけを決定論的に生成する。状態遷移は
// Start → (ExchangingCode | VerifyingOtp | ProbingSession) → (Redirecting | Failed)
// で、入力の有無により分岐は相互排他になる。
//
// 分岐の評価順序は仕様上の要: OAuthプロバイダーはcodeのみを返すため
// code分岐を最初に検査し、recovery種別のOTPは呼び出し元が指定した
// nextを無視して必ずパスワード更新画面へ遷移させる
// （パスワード再設定後のオープンリダイレクトを塞ぐ）。
package authflow

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/hitoshi/aula/internal/model"
)

// リダイレクト先の固定パス。
const (
	// DefaultRedirect はnext未指定時の認証後遷移先。
	DefaultRedirect = "/dashboard"
	// RecoveryRedirect はrecovery種別OTP成功時の強制遷移先。
	RecoveryRedirect = "/auth/update-password"
	// ErrorPage はエラーコードを表示する固定ページ。
	ErrorPage = "/auth/error"
)

// ErrorCode は境界に公開する安定エラーコード。
// プレゼンテーション層がローカライズできるよう自由文ではなく識別子を使う。
type ErrorCode string

const (
	// ErrAuthFailed はOAuth認可コード交換の失敗。
	ErrAuthFailed ErrorCode = "auth_failed"
	// ErrOtpVerificationFailed はワンタイムトークン検証の失敗。
	ErrOtpVerificationFailed ErrorCode = "otp_verification_failed"
	// ErrInvalidAuthParams はcodeもトークンも有効セッションもない場合。
	ErrInvalidAuthParams ErrorCode = "invalid_auth_params"
	// ErrUnexpected は外部コラボレーターの予期しない障害。
	ErrUnexpected ErrorCode = "unexpected_error"
)

// CodeExchanger はOAuth認可コードをセッションに交換するポート。
type CodeExchanger interface {
	// ExchangeOAuthCode は認可コードを検証しセッションを発行する。
	// コードが無効・期限切れの場合はエラーを返す。
	ExchangeOAuthCode(ctx context.Context, code string) (*model.Session, error)
}

// OtpVerifier はワンタイムトークンを検証するポート。
type OtpVerifier interface {
	// VerifyOtp はトークンハッシュと種別を検証し、成功時はセッションを発行する。
	// トークンが無効・期限切れの場合はエラーを返す。
	VerifyOtp(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error)
}

// SessionProbe は既存セッションの有効性を照会するポート。
type SessionProbe interface {
	// FindByID は有効なセッションを返す。存在しない・期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// Request は到着したコールバックの入力を表す。
type Request struct {
	Code      string // OAuth認可コード
	TokenHash string // OTPトークンハッシュ
	OtpType   string // OTP種別（signup / recovery 等）
	Next      string // 呼び出し元指定の認証後遷移先
	SessionID string // CookieのセッションID（セッション照会用）
}

// Outcome は解決結果。RedirectとErrはどちらか一方だけが設定される。
type Outcome struct {
	Redirect string          // 成功時のリダイレクト先パス
	Session  *model.Session  // 新規発行されたセッション（既存セッション通過時はnil）
	Err      ErrorCode       // 失敗時のエラーコード
}

// Succeeded はリダイレクト結果かどうかを返す。
func (o Outcome) Succeeded() bool {
	return o.Err == ""
}

// Location はHTTPリダイレクト層が使用する最終的な遷移先を返す。
// 失敗時はエラーコード付きの固定エラーページを返す。
func (o Outcome) Location() string {
	if o.Succeeded() {
		return o.Redirect
	}
	return ErrorPage + "?error=" + url.QueryEscape(string(o.Err))
}

// Resolver は認証コールバックの解決ステートマシン。
// 判定はすべて1パスで完了し、呼び出し間で状態を共有しない。
type Resolver struct {
	exchanger CodeExchanger
	verifier  OtpVerifier
	probe     SessionProbe
	logger    *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(exchanger CodeExchanger, verifier OtpVerifier, probe SessionProbe, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		exchanger: exchanger,
		verifier:  verifier,
		probe:     probe,
		logger:    logger,
	}
}

// Resolve はコールバック要求を分類し、結果を1つだけ返す。
// 最初に該当した分岐が終端となり、以降の分岐は評価されない。
func (r *Resolver) Resolve(ctx context.Context, req Request) Outcome {
	next := normalizeNext(req.Next)

	// 分岐1: OAuth認可コード。OAuthプロバイダーはcodeを単独で返すため
	// トークン分岐より先に検査する。
	if req.Code != "" {
		session, err := r.exchanger.ExchangeOAuthCode(ctx, req.Code)
		if err != nil || session == nil {
			r.logger.Warn("oauth code exchange failed",
				slog.String("error", errString(err)),
			)
			return Outcome{Err: ErrAuthFailed}
		}
		return Outcome{Redirect: next, Session: session}
	}

	// 分岐2: ワンタイムトークン。tokenHashと種別が両方揃っている場合のみ。
	if req.TokenHash != "" && req.OtpType != "" {
		otpType := model.OtpType(req.OtpType)
		session, err := r.verifier.VerifyOtp(ctx, req.TokenHash, otpType)
		if err != nil {
			r.logger.Warn("otp verification failed",
				slog.String("otp_type", req.OtpType),
				slog.String("error", err.Error()),
			)
			return Outcome{Err: ErrOtpVerificationFailed}
		}
		if otpType == model.OtpTypeRecovery {
			// recoveryは呼び出し元のnextを無視して必ずパスワード更新画面へ。
			// 攻撃者が細工したnextによるパスワード再設定後の
			// オープンリダイレクトを防ぐ。
			return Outcome{Redirect: RecoveryRedirect, Session: session}
		}
		return Outcome{Redirect: next, Session: session}
	}

	// 分岐3: codeもトークンもない場合は既存セッションを照会する。
	if req.SessionID != "" {
		session, err := r.probe.FindByID(ctx, req.SessionID)
		if err != nil {
			// セッション照会の失敗は入力不正ではなく外部障害として扱う。
			r.logger.Error("session probe failed",
				slog.String("error", err.Error()),
			)
			return Outcome{Err: ErrUnexpected}
		}
		if session != nil {
			// 認証済みユーザーの通過。セッションは発行しない。
			return Outcome{Redirect: next}
		}
	}

	return Outcome{Err: ErrInvalidAuthParams}
}

// normalizeNext は遷移先の既定値を適用する。
func normalizeNext(next string) string {
	if next == "" {
		return DefaultRedirect
	}
	return next
}

func errString(err error) string {
	if err == nil {
		return "no session established"
	}
	return err.Error()
}
