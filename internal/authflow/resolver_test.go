package authflow

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/aula/internal/model"
)

// --- モック ---

type mockExchanger struct {
	fn    func(ctx context.Context, code string) (*model.Session, error)
	calls int
}

func (m *mockExchanger) ExchangeOAuthCode(ctx context.Context, code string) (*model.Session, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, code)
	}
	return nil, errors.New("not configured")
}

type mockVerifier struct {
	fn    func(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error)
	calls int
}

func (m *mockVerifier) VerifyOtp(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, tokenHash, otpType)
	}
	return nil, errors.New("not configured")
}

type mockProbe struct {
	fn    func(ctx context.Context, id string) (*model.Session, error)
	calls int
}

func (m *mockProbe) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, id)
	}
	return nil, nil
}

func okSession() *model.Session {
	return &model.Session{ID: "sess-1", UserID: "u-1"}
}

func newTestResolver(e *mockExchanger, v *mockVerifier, p *mockProbe) *Resolver {
	if e == nil {
		e = &mockExchanger{}
	}
	if v == nil {
		v = &mockVerifier{}
	}
	if p == nil {
		p = &mockProbe{}
	}
	return NewResolver(e, v, p, nil)
}

// TestResolve_CodeExchangeSuccess はcode交換成功時にnextへ遷移することを検証する。
func TestResolve_CodeExchangeSuccess(t *testing.T) {
	e := &mockExchanger{fn: func(ctx context.Context, code string) (*model.Session, error) {
		if code != "valid-code" {
			t.Errorf("code = %q, want valid-code", code)
		}
		return okSession(), nil
	}}
	r := newTestResolver(e, nil, nil)

	out := r.Resolve(context.Background(), Request{Code: "valid-code", Next: "/cursos/c1"})
	if !out.Succeeded() {
		t.Fatalf("expected success, got error %s", out.Err)
	}
	if out.Redirect != "/cursos/c1" {
		t.Errorf("Redirect = %q, want /cursos/c1", out.Redirect)
	}
	if out.Session == nil {
		t.Error("expected session to be issued")
	}
}

// TestResolve_CodeExchangeDefaultNext はnext未指定時に/dashboardへ遷移することを検証する。
func TestResolve_CodeExchangeDefaultNext(t *testing.T) {
	e := &mockExchanger{fn: func(ctx context.Context, code string) (*model.Session, error) {
		return okSession(), nil
	}}
	r := newTestResolver(e, nil, nil)

	out := r.Resolve(context.Background(), Request{Code: "valid"})
	if out.Redirect != DefaultRedirect {
		t.Errorf("Redirect = %q, want %q", out.Redirect, DefaultRedirect)
	}
}

// TestResolve_CodeExchangeFailure は交換失敗時にauth_failedになることを検証する。
func TestResolve_CodeExchangeFailure(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, code string) (*model.Session, error)
	}{
		{"交換がエラーを返す", func(ctx context.Context, code string) (*model.Session, error) {
			return nil, errors.New("invalid code")
		}},
		{"エラーなしだがセッションが確立されない", func(ctx context.Context, code string) (*model.Session, error) {
			return nil, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(&mockExchanger{fn: tt.fn}, nil, nil)
			out := r.Resolve(context.Background(), Request{Code: "bad", Next: "/x"})
			if out.Err != ErrAuthFailed {
				t.Errorf("Err = %s, want %s", out.Err, ErrAuthFailed)
			}
			if out.Redirect != "" {
				t.Errorf("Redirect must be empty on failure, got %q", out.Redirect)
			}
		})
	}
}

// TestResolve_RecoveryOtpIgnoresNext はrecovery種別の成功時に、
// 細工された外部URLを含むどんなnextでも必ずパスワード更新画面へ
// 遷移することを検証する。
func TestResolve_RecoveryOtpIgnoresNext(t *testing.T) {
	nexts := []string{
		"",
		"/dashboard",
		"/cursos/c1",
		"https://evil.example.com/phish",
		"//evil.example.com",
	}

	for _, next := range nexts {
		t.Run("next="+next, func(t *testing.T) {
			v := &mockVerifier{fn: func(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error) {
				return okSession(), nil
			}}
			r := newTestResolver(nil, v, nil)

			out := r.Resolve(context.Background(), Request{
				TokenHash: "hash-1",
				OtpType:   "recovery",
				Next:      next,
			})
			if !out.Succeeded() {
				t.Fatalf("expected success, got %s", out.Err)
			}
			if out.Redirect != RecoveryRedirect {
				t.Errorf("Redirect = %q, want %q", out.Redirect, RecoveryRedirect)
			}
		})
	}
}

// TestResolve_SignupOtpFollowsNext はrecovery以外のOTP成功時にnextへ遷移することを検証する。
func TestResolve_SignupOtpFollowsNext(t *testing.T) {
	v := &mockVerifier{fn: func(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error) {
		if otpType != model.OtpTypeSignup {
			t.Errorf("otpType = %s, want signup", otpType)
		}
		return okSession(), nil
	}}
	r := newTestResolver(nil, v, nil)

	out := r.Resolve(context.Background(), Request{
		TokenHash: "hash-1",
		OtpType:   "signup",
		Next:      "/bienvenida",
	})
	if out.Redirect != "/bienvenida" {
		t.Errorf("Redirect = %q, want /bienvenida", out.Redirect)
	}
}

// TestResolve_OtpFailure はトークン検証失敗時にotp_verification_failedになることを検証する。
func TestResolve_OtpFailure(t *testing.T) {
	v := &mockVerifier{fn: func(ctx context.Context, tokenHash string, otpType model.OtpType) (*model.Session, error) {
		return nil, errors.New("expired token")
	}}
	r := newTestResolver(nil, v, nil)

	out := r.Resolve(context.Background(), Request{TokenHash: "old", OtpType: "recovery"})
	if out.Err != ErrOtpVerificationFailed {
		t.Errorf("Err = %s, want %s", out.Err, ErrOtpVerificationFailed)
	}
}

// TestResolve_CodeTakesPrecedenceOverOtp はcodeとトークンが同時に存在する場合に
// code分岐だけが評価されることを検証する。
func TestResolve_CodeTakesPrecedenceOverOtp(t *testing.T) {
	e := &mockExchanger{fn: func(ctx context.Context, code string) (*model.Session, error) {
		return okSession(), nil
	}}
	v := &mockVerifier{}
	r := newTestResolver(e, v, nil)

	out := r.Resolve(context.Background(), Request{
		Code:      "valid",
		TokenHash: "hash",
		OtpType:   "signup",
	})
	if !out.Succeeded() {
		t.Fatalf("expected success, got %s", out.Err)
	}
	if e.calls != 1 {
		t.Errorf("exchanger calls = %d, want 1", e.calls)
	}
	if v.calls != 0 {
		t.Errorf("verifier must not be called, got %d calls", v.calls)
	}
}

// TestResolve_TokenWithoutTypeFallsThrough はtokenHashのみで種別がない場合に
// OTP分岐へ入らないことを検証する。
func TestResolve_TokenWithoutTypeFallsThrough(t *testing.T) {
	v := &mockVerifier{}
	r := newTestResolver(nil, v, nil)

	out := r.Resolve(context.Background(), Request{TokenHash: "hash"})
	if out.Err != ErrInvalidAuthParams {
		t.Errorf("Err = %s, want %s", out.Err, ErrInvalidAuthParams)
	}
	if v.calls != 0 {
		t.Errorf("verifier must not be called, got %d calls", v.calls)
	}
}

// TestResolve_ExistingSessionPassthrough は既存セッションがあればnextへ通過することを検証する。
func TestResolve_ExistingSessionPassthrough(t *testing.T) {
	p := &mockProbe{fn: func(ctx context.Context, id string) (*model.Session, error) {
		if id != "sess-1" {
			t.Errorf("id = %q, want sess-1", id)
		}
		return okSession(), nil
	}}
	r := newTestResolver(nil, nil, p)

	out := r.Resolve(context.Background(), Request{SessionID: "sess-1", Next: "/perfil"})
	if out.Redirect != "/perfil" {
		t.Errorf("Redirect = %q, want /perfil", out.Redirect)
	}
	if out.Session != nil {
		t.Error("passthrough must not issue a new session")
	}
}

// TestResolve_NoInputsNoSession は入力もセッションもない場合にinvalid_auth_paramsになることを検証する。
func TestResolve_NoInputsNoSession(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"完全に空の要求", Request{}},
		{"セッションIDはあるが無効", Request{SessionID: "expired"}},
		{"otpTypeのみでトークンがない", Request{OtpType: "signup"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(nil, nil, &mockProbe{})
			out := r.Resolve(context.Background(), tt.req)
			if out.Err != ErrInvalidAuthParams {
				t.Errorf("Err = %s, want %s", out.Err, ErrInvalidAuthParams)
			}
		})
	}
}

// TestResolve_ProbeFault はセッション照会の障害がunexpected_errorになることを検証する。
func TestResolve_ProbeFault(t *testing.T) {
	p := &mockProbe{fn: func(ctx context.Context, id string) (*model.Session, error) {
		return nil, errors.New("db connection lost")
	}}
	r := newTestResolver(nil, nil, p)

	out := r.Resolve(context.Background(), Request{SessionID: "sess-1"})
	if out.Err != ErrUnexpected {
		t.Errorf("Err = %s, want %s", out.Err, ErrUnexpected)
	}
}

// TestOutcome_Location は最終遷移先の組み立てを検証する。
func TestOutcome_Location(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"成功時はリダイレクト先そのまま", Outcome{Redirect: "/dashboard"}, "/dashboard"},
		{"失敗時はエラーページにコードを付与", Outcome{Err: ErrAuthFailed}, "/auth/error?error=auth_failed"},
		{"invalid_auth_paramsも同様", Outcome{Err: ErrInvalidAuthParams}, "/auth/error?error=invalid_auth_params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Location(); got != tt.want {
				t.Errorf("Location() = %q, want %q", got, tt.want)
			}
		})
	}
}
