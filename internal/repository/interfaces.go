// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// ErrDuplicate は一意制約違反を表す。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithProfile はユーザー、プロフィール、identity（任意）を同一トランザクションで作成する。
	// メールアドレスまたはidentityが重複する場合はErrDuplicateを返す。
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// UpdateRoleByEmail はメールアドレスで特定したユーザーのロールを更新する。
	// 該当ユーザーがいない場合はnilを返す。
	UpdateRoleByEmail(ctx context.Context, email string, role model.Role) (*model.Profile, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// NoticeRepository はお知らせの永続化インターフェース。
type NoticeRepository interface {
	// ListNewestFirst は全お知らせをcreated_at降順で返す。
	ListNewestFirst(ctx context.Context) ([]*model.Notice, error)

	// Create はお知らせを作成する。CreatedAtはストアの値で上書きされる。
	Create(ctx context.Context, notice *model.Notice) error

	// CreateImported はsource_key付きでお知らせを作成する。
	// 同じsource_keyが既に存在する場合は何もせずfalseを返す。
	CreateImported(ctx context.Context, notice *model.Notice, sourceKey string) (bool, error)
}

// QueryRepository は質問の永続化インターフェース。
type QueryRepository interface {
	// Create は質問を作成する。statusはストアの既定値（pending）になる。
	Create(ctx context.Context, query *model.Query) error

	// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Query, error)

	// ListByStudent は指定学生の質問をcreated_at降順で返す。
	ListByStudent(ctx context.Context, studentID string) ([]*model.Query, error)

	// ListAll は全質問をcreated_at降順で返す。
	ListAll(ctx context.Context) ([]*model.Query, error)

	// Respond は回答、ステータス、回答者、回答日時を1回のUPDATEで設定する。
	// 該当する質問がない場合はnilを返す。
	Respond(ctx context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error)
}
