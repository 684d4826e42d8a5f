package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。メッセージはスペイン語。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, permission, validation, not_found, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated        = "NOT_AUTHENTICATED"
	ErrCodeProfileNotFound         = "PROFILE_NOT_FOUND"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeCourseNotFound          = "COURSE_NOT_FOUND"
	ErrCodeModuleNotFound          = "MODULE_NOT_FOUND"
	ErrCodeLessonNotFound          = "LESSON_NOT_FOUND"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInvalidDateRange        = "INVALID_DATE_RANGE"
	ErrCodePasswordTooShort        = "PASSWORD_TOO_SHORT"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed       = "EMAIL_NOT_CONFIRMED"
	ErrCodeEmailAlreadyUsed        = "EMAIL_ALREADY_USED"
	ErrCodeDuplicateAssignment     = "DUPLICATE_TEACHER_ASSIGNMENT"
	ErrCodeTargetNotTeacher        = "TARGET_NOT_TEACHER"
	ErrCodeLastAdmin               = "LAST_ADMIN"
	ErrCodeSelfDelete              = "SELF_DELETE"
	ErrCodeInvalidOtp              = "INVALID_OTP"
	ErrCodeInvalidAnnouncementsURL = "INVALID_ANNOUNCEMENTS_URL"
	ErrCodeUpstreamFault           = "UPSTREAM_FAULT"
)

// NewNotAuthenticatedError は未認証エラーを生成する。
// ロール判定より必ず先に検査される。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "Debes iniciar sesión para continuar.",
		Category: "auth",
		Action:   "Inicia sesión e inténtalo de nuevo.",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
// 未認証とは区別される（認証済みだがプロフィール行が存在しない状態）。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "No se encontró tu perfil.",
		Category: "not_found",
		Action:   "Contacta al administrador de la plataforma.",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Usuario no encontrado.",
		Category: "not_found",
		Action:   "Vuelve a iniciar sesión.",
	}
}

// NewCourseNotFoundError はコース未検出エラーを生成する。
func NewCourseNotFoundError(courseID string) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("No se encontró el curso: %s", courseID),
		Category: "not_found",
		Action:   "Verifica que el curso exista.",
	}
}

// NewModuleNotFoundError はモジュール未検出エラーを生成する。
func NewModuleNotFoundError(moduleID string) *APIError {
	return &APIError{
		Code:     ErrCodeModuleNotFound,
		Message:  fmt.Sprintf("No se encontró el módulo: %s", moduleID),
		Category: "not_found",
		Action:   "Verifica que el módulo exista.",
	}
}

// NewLessonNotFoundError はレッスン未検出エラーを生成する。
func NewLessonNotFoundError(lessonID string) *APIError {
	return &APIError{
		Code:     ErrCodeLessonNotFound,
		Message:  fmt.Sprintf("No se encontró la lección: %s", lessonID),
		Category: "not_found",
		Action:   "Verifica que la lección exista.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
// 認証済みかつ対象が存在するが、ロール/担当条件を満たさない場合。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "No tienes permisos para realizar esta acción.",
		Category: "permission",
		Action:   "Contacta al administrador si crees que es un error.",
	}
}

// NewInvalidDateRangeError は日付範囲エラーを生成する。
func NewInvalidDateRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateRange,
		Message:  "La fecha de fin debe ser posterior a la fecha de inicio.",
		Category: "validation",
		Action:   "Corrige las fechas del curso.",
	}
}

// NewPasswordTooShortError はパスワード長エラーを生成する。
func NewPasswordTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  "La contraseña debe tener al menos 6 caracteres.",
		Category: "validation",
		Action:   "Elige una contraseña más larga.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メール未登録とパスワード不一致は攻撃者に区別させないため同一メッセージ。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Correo o contraseña incorrectos.",
		Category: "auth",
		Action:   "Verifica tus credenciales e inténtalo de nuevo.",
	}
}

// NewEmailNotConfirmedError はメール未確認エラーを生成する。
// パスワード検証に成功した場合のみ返される。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "Debes confirmar tu correo antes de iniciar sesión.",
		Category: "auth",
		Action:   "Revisa tu bandeja de entrada y sigue el enlace de confirmación.",
	}
}

// NewEmailAlreadyUsedError はメール重複エラーを生成する。
func NewEmailAlreadyUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyUsed,
		Message:  "El correo ya está registrado.",
		Category: "validation",
		Action:   "Inicia sesión o usa la recuperación de contraseña.",
	}
}

// NewDuplicateAssignmentError は講師の重複割り当てエラーを生成する。
// サイレントに無視せず、明示的に拒否する。
func NewDuplicateAssignmentError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateAssignment,
		Message:  "El profesor ya está asignado a este curso.",
		Category: "validation",
		Action:   "Verifica la lista de profesores del curso.",
	}
}

// NewTargetNotTeacherError は講師ロールでないプロフィールを割り当てようとした場合のエラーを生成する。
func NewTargetNotTeacherError() *APIError {
	return &APIError{
		Code:     ErrCodeTargetNotTeacher,
		Message:  "El perfil seleccionado no tiene rol de profesor.",
		Category: "validation",
		Action:   "Promueve el perfil a profesor antes de asignarlo.",
	}
}

// NewLastAdminError は最後の管理者を削除しようとした場合のエラーを生成する。
func NewLastAdminError() *APIError {
	return &APIError{
		Code:     ErrCodeLastAdmin,
		Message:  "No se puede eliminar al último administrador.",
		Category: "validation",
		Action:   "Promueve otro perfil a administrador primero.",
	}
}

// NewSelfDeleteError は自分自身のプロフィール削除エラーを生成する。
func NewSelfDeleteError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDelete,
		Message:  "No puedes eliminar tu propio perfil.",
		Category: "validation",
		Action:   "Pide a otro administrador que lo elimine.",
	}
}

// NewInvalidOtpError はOTP検証失敗エラーを生成する。
func NewInvalidOtpError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOtp,
		Message:  "El enlace de verificación es inválido o ha expirado.",
		Category: "auth",
		Action:   "Solicita un nuevo enlace de verificación.",
	}
}

// NewInvalidAnnouncementsURLError はお知らせフィードURLの検証失敗エラーを生成する。
func NewInvalidAnnouncementsURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAnnouncementsURL,
		Message:  fmt.Sprintf("La URL de anuncios no es válida: %s", reason),
		Category: "validation",
		Action:   "Introduce una URL pública que empiece por http:// o https://.",
	}
}

// NewUpstreamFaultError は外部コラボレーター障害時のフォールバックエラーを生成する。
// messageにはユースケースごとの固定文言（例: "Error al crear curso"）を渡す。
func NewUpstreamFaultError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFault,
		Message:  message,
		Category: "system",
		Action:   "Inténtalo de nuevo en unos minutos.",
	}
}
