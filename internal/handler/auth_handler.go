// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/aula/internal/authflow"
	"github.com/hitoshi/aula/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	Login(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password, firstName, lastName string) (bool, error)
	SignOut(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
	ResetPasswordEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, userID, newPassword string) error
}

// CallbackResolver は認証コールバックを解決するポート。
// authflow.Resolverが実装する。
type CallbackResolver interface {
	Resolve(ctx context.Context, req authflow.Request) authflow.Outcome
}

// AuthMetrics は認証関連メトリクスの記録ポート。nilの場合は記録しない。
type AuthMetrics interface {
	RecordLogin(result string)
	RecordCallbackOutcome(outcome string)
	RecordOtpIssued()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	resolver CallbackResolver
	metrics  AuthMetrics
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, resolver CallbackResolver, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		resolver: resolver,
		metrics:  metrics,
		config:   config,
	}
}

// loginRequest はパスワードログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpRequest はユーザー登録のリクエストボディ。
type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// resetPasswordRequest はパスワード再設定メールのリクエストボディ。
type resetPasswordRequest struct {
	Email string `json:"email"`
}

// updatePasswordRequest はパスワード更新のリクエストボディ。
type updatePasswordRequest struct {
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードで認証しセッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLogin("failure")
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLogin("success")
	}
	h.setSessionCookie(w, session.ID)
	writeSuccess(w, http.StatusOK, nil)
}

// SignUp はパスワードでユーザーを登録し、確認メールを送信する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	needsConfirmation, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if needsConfirmation && h.metrics != nil {
		h.metrics.RecordOtpIssued()
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"needs_confirmation": needsConfirmation,
	})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback は認証コールバックを解決し、結果に応じてリダイレクトする。
// OAuth認可コード・ワンタイムトークン・既存セッションのいずれかを消費し、
// 失敗時はエラーコード付きで/auth/errorへ遷移させる。
// GET /auth/callback?code=...&token_hash=...&type=...&next=...
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")

	// OAuth分岐のみstateを検証する（CSRF対策）。
	if code != "" {
		stateCookie, err := r.Cookie(oauthStateCookie)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
			slog.Warn("oauth state mismatch")
			h.redirectCallbackFailure(w, r, authflow.ErrInvalidAuthParams)
			return
		}
		h.clearCookie(w, oauthStateCookie)
	}

	var sessionID string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	outcome := h.resolver.Resolve(r.Context(), authflow.Request{
		Code:      code,
		TokenHash: query.Get("token_hash"),
		OtpType:   query.Get("type"),
		Next:      query.Get("next"),
		SessionID: sessionID,
	})

	if h.metrics != nil {
		if outcome.Succeeded() {
			h.metrics.RecordCallbackOutcome("redirect")
		} else {
			h.metrics.RecordCallbackOutcome(string(outcome.Err))
		}
	}

	if outcome.Session != nil {
		h.setSessionCookie(w, outcome.Session.ID)
	}

	http.Redirect(w, r, h.config.BaseURL+outcome.Location(), http.StatusFound)
}

// Logout はセッションを破棄しCookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if signOutErr := h.service.SignOut(r.Context(), cookie.Value); signOutErr != nil {
			slog.Error("failed to sign out", slog.String("error", signOutErr.Error()))
			// サインアウト失敗してもCookieはクリアする
		}
	}

	h.clearCookie(w, sessionCookieName)
	writeSuccess(w, http.StatusOK, nil)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		handleServiceError(w, model.NewNotAuthenticatedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, model.NewNotAuthenticatedError())
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.DisplayName(),
			"avatar_url": user.AvatarURL,
		},
	})
}

// ResetPassword はパスワード再設定メールの送信を受け付ける。
// 未登録メールアドレスでも成功レスポンスを返す（登録状況の列挙を防ぐ）。
// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.ResetPasswordEmail(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordOtpIssued()
	}
	writeSuccess(w, http.StatusOK, nil)
}

// UpdatePassword は認証済みユーザーのパスワードを更新する。
// 更新後は全セッションが破棄されるため、Cookieもクリアする。
// POST /auth/update-password
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		handleServiceError(w, model.NewNotAuthenticatedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, model.NewNotAuthenticatedError())
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.UpdatePassword(r.Context(), user.ID, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	h.clearCookie(w, sessionCookieName)
	writeSuccess(w, http.StatusOK, nil)
}

// setSessionCookie はセッションCookie（HTTP Only）を設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie は指定Cookieを無効化する。
func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectCallbackFailure はコールバック失敗をエラーページへのリダイレクトに変換する。
func (h *AuthHandler) redirectCallbackFailure(w http.ResponseWriter, r *http.Request, code authflow.ErrorCode) {
	if h.metrics != nil {
		h.metrics.RecordCallbackOutcome(string(code))
	}
	http.Redirect(w, r, h.config.BaseURL+authflow.Outcome{Err: code}.Location(), http.StatusFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
