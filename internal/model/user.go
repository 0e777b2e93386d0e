// Package model はドメインモデルを定義する。
package model

import "time"

// User はポータルにサインインする利用者（アイデンティティ）を表す。
// PasswordHashはメール/パスワード登録時のみ設定され、OAuthのみの利用者は空。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	Method    string // サインイン方法: "password" または "google"
	ExpiresAt time.Time
	CreatedAt time.Time
}

// サインイン方法
const (
	SignInPassword = "password"
	SignInGoogle   = "google"
)

// Role はプロフィールのロール。
type Role string

const (
	// RoleStudent は学生ロール。新規登録時の既定値。
	RoleStudent Role = "student"
	// RoleAdmin は管理者ロール。promoteコマンドでのみ付与される。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。
// admin以外の値（空や未知の値を含む）はそのまま保持し、IsAdminはfalseになる。
func ParseRole(s string) Role {
	return Role(s)
}

// IsValid はロールが定義済みの値かどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Profile は利用者ごとの表示名とロールを表す。1アイデンティティにつき1件。
type Profile struct {
	UserID    string
	FullName  string
	Role      Role
	CreatedAt time.Time
}

// Viewer はリクエスト中の認証済み利用者を表す。
// セッションとプロフィールから1リクエストにつき1回だけ解決される。
type Viewer struct {
	UserID    string
	SessionID string
	FullName  string
	Role      Role
}

// IsAdmin はロールがadminの場合のみtrueを返す。
func (v *Viewer) IsAdmin() bool {
	return v != nil && v.Role == RoleAdmin
}
