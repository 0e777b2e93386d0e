// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/collegeconnect/internal/auth"
	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GoogleEnabled() bool
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	SignUp(ctx context.Context, in auth.SignUpInput) (*model.Session, error)
	SignIn(ctx context.Context, in auth.SignInInput) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

func (c AuthHandlerConfig) cookies() CookieConfig {
	return CookieConfig{Domain: c.CookieDomain, Secure: c.CookieSecure}
}

// authPageData はサインイン画面のテンプレートデータ。
type authPageData struct {
	pageData
	Mode          string // "signin" または "signup"
	GoogleEnabled bool
	FullName      string
	Email         string
}

// AuthHandler はサインイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	views   *Renderer
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, views *Renderer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		views:   views,
		config:  config,
	}
}

// Page はサインイン・新規登録画面を表示する。認証済みの場合はダッシュボードへリダイレクトする。
// GET /auth?mode=signup
func (h *AuthHandler) Page(w http.ResponseWriter, r *http.Request) {
	if middleware.ViewerFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	mode := "signin"
	if r.URL.Query().Get("mode") == "signup" {
		mode = "signup"
	}
	h.render(w, r, http.StatusOK, authPageData{Mode: mode, pageData: pageData{Flash: popFlash(w, r, h.config.cookies())}})
}

// SignUp はメール/パスワードの新規登録フォームを処理する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	in := auth.SignUpInput{
		FullName: r.PostFormValue("full_name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	session, err := h.service.SignUp(r.Context(), in)
	if err != nil {
		apiErr, status := userFacingError(err)
		h.render(w, r, status, authPageData{
			Mode:     "signup",
			FullName: in.FullName,
			Email:    in.Email,
			pageData: pageData{Flash: errorFlash(apiErr.Message)},
		})
		return
	}

	h.setSessionCookie(w, session.ID)
	setFlash(w, h.config.cookies(), successFlash("Account created!", "Welcome to College Connect."))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// SignIn はメール/パスワードのサインインフォームを処理する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	in := auth.SignInInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	session, err := h.service.SignIn(r.Context(), in)
	if err != nil {
		apiErr, status := userFacingError(err)
		h.render(w, r, status, authPageData{
			Mode:     "signin",
			Email:    in.Email,
			pageData: pageData{Flash: errorFlash(apiErr.Message)},
		})
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.service.GoogleEnabled() {
		http.NotFound(w, r)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
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

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// 失敗時はサインイン画面へ戻し、エラーのトーストを表示する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.service.GoogleEnabled() {
		http.NotFound(w, r)
		return
	}

	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		flash := errorFlash("Google sign-in failed. Please try again.")
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			flash = errorFlash(apiErr.Message + ". " + apiErr.Action)
		} else {
			slog.Error("oauth callback failed", slog.String("error", err.Error()))
		}
		setFlash(w, h.config.cookies(), flash)
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	h.setSessionCookie(w, session.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout はセッションを破棄し、トップページへリダイレクトする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, data authPageData) {
	data.Title = "Sign in | College Connect"
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	data.GoogleEnabled = h.service.GoogleEnabled()
	h.views.Render(w, status, "auth", data)
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var _ AuthServiceInterface = (*auth.Service)(nil)
