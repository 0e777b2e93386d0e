// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	viewerContextKey  = contextKey("viewer")
	csrfContextKey    = contextKey("csrf_token")
	logInfoContextKey = contextKey("log_info")
)

// ViewerResolver はセッションIDから利用者を解決する。auth.Resolverが実装する。
type ViewerResolver interface {
	Resolve(ctx context.Context, sessionID string) (*model.Viewer, error)
}

// NewViewerMiddleware はCookieのセッションから利用者を1回だけ解決し、
// リクエストコンテキストに格納するミドルウェアを返す。
// 解決できない場合もリクエストは通し、利用者なしとして扱う。
// 認証の要否はRequireViewer、RequireRole、または各ページハンドラーが判断する。
func NewViewerMiddleware(resolver ViewerResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			viewer, err := resolver.Resolve(r.Context(), cookie.Value)
			if err != nil {
				slog.Debug("viewer not resolved",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			annotateUserID(r.Context(), viewer.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithViewer(r.Context(), viewer)))
		})
	}
}

// RequireViewer は利用者が解決済みのリクエストだけを通す。
// 未認証リクエストには401の統一エラーを返す。
func RequireViewer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ViewerFromContext(r.Context()) == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole は指定ロールの利用者だけを通す。
// 未認証は401、ロール不一致は403を返す。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer := ViewerFromContext(r.Context())
			if viewer == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if viewer.Role != role {
				slog.Warn("role check failed",
					slog.String("user_id", viewer.UserID),
					slog.String("required_role", string(role)),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ViewerFromContext はリクエストコンテキストから利用者を取得する。未認証の場合はnil。
func ViewerFromContext(ctx context.Context) *model.Viewer {
	v, _ := ctx.Value(viewerContextKey).(*model.Viewer)
	return v
}

// ContextWithViewer はコンテキストに利用者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithViewer(ctx context.Context, viewer *model.Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, viewer)
}

// UserIDFromContext はリクエストコンテキストから利用者のユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	v := ViewerFromContext(ctx)
	if v == nil || v.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return v.UserID, nil
}
