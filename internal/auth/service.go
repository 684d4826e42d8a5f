// Package auth は認証フロー（パスワード、OAuth、OTP）とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/aula/internal/authflow"
	"github.com/hitoshi/aula/internal/model"
	"github.com/hitoshi/aula/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// OtpMailer はワンタイムトークンのメール送信ポート。
type OtpMailer interface {
	// SendOtpEmail は検証リンクを含むメールを送信する。
	SendOtpEmail(ctx context.Context, email string, otpType model.OtpType, verifyURL string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int           // セッション有効期間（秒）
	OtpTTL        time.Duration // ワンタイムトークンの有効期間
	BaseURL       string        // 検証リンクの組み立てに使用する公開URL
}

// Service は認証に関するビジネスロジックを提供する。
// authflow.Resolverのポート（CodeExchanger / OtpVerifier）を実装する。
type Service struct {
	oauth       OAuthProvider
	mailer      OtpMailer
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	credRepo    repository.CredentialRepository
	sessionRepo repository.SessionRepository
	otpRepo     repository.OtpRepository
	profileRepo repository.ProfileRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	mailer OtpMailer,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	credRepo repository.CredentialRepository,
	sessionRepo repository.SessionRepository,
	otpRepo repository.OtpRepository,
	profileRepo repository.ProfileRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		mailer:      mailer,
		userRepo:    userRepo,
		identRepo:   identRepo,
		credRepo:    credRepo,
		sessionRepo: sessionRepo,
		otpRepo:     otpRepo,
		profileRepo: profileRepo,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// メール未登録とパスワード不一致はどちらもINVALID_CREDENTIALSを返す
// （攻撃者に登録状況を区別させない）。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	credential, err := s.credRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if credential == nil {
		// OAuthのみで登録したユーザーにはパスワードが存在しない。
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	// メール確認前はログインさせない。パスワード検証後に返すため登録状況は漏れない。
	if !user.IsEmailConfirmed() {
		return nil, model.NewEmailNotConfirmedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// SignUp はパスワードでユーザーを登録し、メール確認用のOTPを送信する。
// 登録直後はセッションを発行せず、メール確認後にログイン可能になる。
// 戻り値はメール確認が必要かどうか（現状は常にtrue）。
func (s *Service) SignUp(ctx context.Context, email, password, firstName, lastName string) (bool, error) {
	if len(password) < MinPasswordLength {
		return false, model.NewPasswordTooShortError()
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return false, model.NewEmailAlreadyUsedError()
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  joinName(firstName, lastName),
		Metadata:  map[string]string{"full_name": joinName(firstName, lastName)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	credential := &model.Credential{
		UserID:       user.ID,
		PasswordHash: string(passwordHash),
		UpdatedAt:    now,
	}
	if err := s.credRepo.Upsert(ctx, credential); err != nil {
		return false, fmt.Errorf("failed to save credential: %w", err)
	}

	// 新規登録は常に受講者ロールから開始する。ロール昇格は管理者の操作。
	profile := &model.Profile{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		FirstName: firstName,
		LastName:  lastName,
		Role:      model.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return false, fmt.Errorf("failed to create profile: %w", err)
	}

	if err := s.issueOtp(ctx, user, model.OtpTypeSignup); err != nil {
		// メール送信失敗で登録自体は失敗させない。再送で回復できる。
		slog.Error("failed to send signup otp",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)
	return true, nil
}

// ExchangeOAuthCode はOAuthコールバックの認可コードを処理し、セッションを発行する。
// 未登録ユーザーの場合はusers、identities、profilesレコードを自動作成する。
// 登録済みユーザーの場合はidentitiesテーブルで既存ユーザーを特定しログインする。
func (s *Service) ExchangeOAuthCode(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string

	if identity != nil {
		// 3a. 既存ユーザー: identityからユーザーIDを取得
		userID = identity.UserID
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
		newUserID := uuid.New().String()
		now := time.Now()
		confirmedAt := now // IdPがメールアドレスを検証済みのため確認済みとして扱う

		newUser := &model.User{
			ID:               newUserID,
			Email:            userInfo.Email,
			FullName:         userInfo.Name,
			AvatarURL:        userInfo.AvatarURL,
			Metadata:         map[string]string{"full_name": userInfo.Name},
			EmailConfirmedAt: &confirmedAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUserID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		profile := &model.Profile{
			ID:        uuid.New().String(),
			UserID:    newUserID,
			Role:      model.RoleStudent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.profileRepo.Create(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}

		userID = newUserID
		slog.Info("new user created",
			slog.String("user_id", userID),
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// VerifyOtp はワンタイムトークンを検証し、成功時はセッションを発行する。
// トークンは検証成功時に消費され、再利用できない。
// signup種別の場合はメールアドレスを確認済みにする。
func (s *Service) VerifyOtp(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error) {
	token, err := s.otpRepo.FindUsableByHash(ctx, tokenHash, otpType)
	if err != nil {
		return nil, fmt.Errorf("failed to find otp token: %w", err)
	}
	if token == nil {
		return nil, model.NewInvalidOtpError()
	}

	now := time.Now()
	if err := s.otpRepo.Consume(ctx, token.ID, now); err != nil {
		return nil, fmt.Errorf("failed to consume otp token: %w", err)
	}

	if otpType == model.OtpTypeSignup {
		if err := s.userRepo.ConfirmEmail(ctx, token.UserID, now); err != nil {
			return nil, fmt.Errorf("failed to confirm email: %w", err)
		}
	}

	session, err := s.createSession(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("otp verified",
		slog.String("user_id", token.UserID),
		slog.String("otp_type", string(otpType)),
	)
	return session, nil
}

// ResetPasswordEmail はパスワード再設定用のOTPメールを送信する。
// 未登録メールアドレスでもエラーを返さない（登録状況の列挙を防ぐ）。
func (s *Service) ResetPasswordEmail(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		slog.Info("password reset requested for unknown email")
		return nil
	}

	if err := s.issueOtp(ctx, user, model.OtpTypeRecovery); err != nil {
		return fmt.Errorf("failed to issue recovery otp: %w", err)
	}

	slog.Info("password reset email sent", slog.String("user_id", user.ID))
	return nil
}

// UpdatePassword はユーザーのパスワードを更新する。
// バリデーションは永続化より先に行い、失敗時はリポジトリに一切触れない。
// 更新後は既存セッションを全て破棄する（再設定したパスワードでのみログイン可能）。
func (s *Service) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return model.NewPasswordTooShortError()
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	credential := &model.Credential{
		UserID:       userID,
		PasswordHash: string(passwordHash),
		UpdatedAt:    time.Now(),
	}
	if err := s.credRepo.Upsert(ctx, credential); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("password updated", slog.String("user_id", userID))
	return nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// issueOtp はワンタイムトークンを発行し、検証リンクをメールで送信する。
// DBにはSHA-256ハッシュのみを保存し、リンクにも同じハッシュを載せる。
func (s *Service) issueOtp(ctx context.Context, user *model.User, otpType model.OtpType) error {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate otp token: %w", err)
	}
	sum := sha256.Sum256(raw)
	tokenHash := hex.EncodeToString(sum[:])

	now := time.Now()
	token := &model.OtpToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		Type:      otpType,
		ExpiresAt: now.Add(s.config.OtpTTL),
		CreatedAt: now,
	}
	if err := s.otpRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to save otp token: %w", err)
	}

	verifyURL := fmt.Sprintf("%s/auth/callback?token_hash=%s&type=%s",
		s.config.BaseURL, url.QueryEscape(tokenHash), url.QueryEscape(string(otpType)))

	if err := s.mailer.SendOtpEmail(ctx, user.Email, otpType, verifyURL); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}

	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func joinName(firstName, lastName string) string {
	switch {
	case firstName != "" && lastName != "":
		return firstName + " " + lastName
	case firstName != "":
		return firstName
	default:
		return lastName
	}
}

// authflowのポート適合を確認する。
var (
	_ authflow.CodeExchanger = (*Service)(nil)
	_ authflow.OtpVerifier   = (*Service)(nil)
)
