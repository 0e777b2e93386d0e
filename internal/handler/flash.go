package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "flash"

// Flash はリダイレクト後のページに1回だけ表示するトースト。
type Flash struct {
	Kind    string `json:"kind"` // "success" または "error"
	Title   string `json:"title"`
	Message string `json:"message"`
}

// IsError はエラー表示かどうかを返す。
func (f *Flash) IsError() bool {
	return f != nil && f.Kind == "error"
}

func successFlash(title, message string) *Flash {
	return &Flash{Kind: "success", Title: title, Message: message}
}

func errorFlash(message string) *Flash {
	return &Flash{Kind: "error", Title: "Error", Message: message}
}

// CookieConfig はハンドラーが発行するCookieの共通属性。
type CookieConfig struct {
	Domain string
	Secure bool
}

// setFlash はトーストをCookieに保存する。次のGETでpopFlashにより取り出される。
func setFlash(w http.ResponseWriter, cfg CookieConfig, f *Flash) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   60,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash はトーストを取り出し、Cookieを削除する。なければnil。
func popFlash(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}
