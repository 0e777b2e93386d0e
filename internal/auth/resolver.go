package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/repository"
)

// ErrUnauthenticated は利用者を解決できなかったことを表す。
// セッションがない場合だけでなく、ストアのエラーやプロフィール欠損も含む。
var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver はセッションIDから現在の利用者（ロール付き）を解決する。
type Resolver struct {
	sessions repository.SessionRepository
	profiles repository.ProfileRepository
}

// NewResolver はResolverを生成する。
func NewResolver(sessions repository.SessionRepository, profiles repository.ProfileRepository) *Resolver {
	return &Resolver{sessions: sessions, profiles: profiles}
}

// Resolve はセッションとプロフィールを読み、Viewerを返す。
// 失敗時は常にErrUnauthenticatedをラップしたエラーを返し、部分的なViewerは返さない。
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (*model.Viewer, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}

	session, err := r.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %v", ErrUnauthenticated, err)
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}

	profile, err := r.profiles.FindByUserID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: profile lookup: %v", ErrUnauthenticated, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no profile for user %s", ErrUnauthenticated, session.UserID)
	}

	return &model.Viewer{
		UserID:    session.UserID,
		SessionID: session.ID,
		FullName:  profile.FullName,
		Role:      profile.Role,
	}, nil
}
