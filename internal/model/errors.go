package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（トーストにそのまま表示される）
	Category string // カテゴリ: auth, validation, notice, query, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken           = "EMAIL_ALREADY_REGISTERED"
	ErrCodePasswordAccount      = "EMAIL_REGISTERED_WITH_PASSWORD"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodeQueryNotFound        = "QUERY_NOT_FOUND"
	ErrCodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	ErrCodeSubmissionInFlight   = "SUBMISSION_IN_FLIGHT"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have permission to perform this action",
		Category: "auth",
		Action:   "Sign in with an administrator account.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Fill in the required fields and try again.",
	}
}

// NewInvalidCredentialsError はサインイン失敗エラーを生成する。
// メールアドレスの存在有無を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "An account with this email already exists",
		Category: "auth",
		Action:   "Sign in instead, or use a different email address.",
	}
}

// NewPasswordAccountError はパスワード登録済みのメールアドレスでGoogleサインインした場合のエラーを生成する。
func NewPasswordAccountError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordAccount,
		Message:  "This email is registered with a password",
		Category: "auth",
		Action:   "Sign in with your email and password instead.",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("No profile found for %s", email),
		Category: "auth",
		Action:   "Ask the user to sign up first.",
	}
}

// NewQueryNotFoundError は質問未検出エラーを生成する。
func NewQueryNotFoundError(queryID string) *APIError {
	return &APIError{
		Code:     ErrCodeQueryNotFound,
		Message:  fmt.Sprintf("Query not found: %s", queryID),
		Category: "query",
		Action:   "Reload the list and try again.",
	}
}

// NewInvalidTransitionError はステータス遷移がポリシーで禁止されている場合のエラーを生成する。
func NewInvalidTransitionError(from, to QueryStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("Cannot change status from %s to %s", from, to),
		Category: "query",
		Action:   "Choose a status that moves the query forward.",
	}
}

// NewSubmissionInFlightError は同一操作の二重送信エラーを生成する。
func NewSubmissionInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionInFlight,
		Message:  "A previous submission is still being processed",
		Category: "query",
		Action:   "Wait for the previous submission to finish.",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Something went wrong. Please try again.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}
