// Package auth はサインイン（メール/パスワード、Google OAuth）、セッション管理、
// リクエストごとの利用者解決を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/collegeconnect/internal/metrics"
	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/repository"
	"github.com/hitoshi/collegeconnect/internal/validation"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// SignUpInput はメール/パスワード登録フォームの入力。
type SignUpInput struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignInInput はメール/パスワードサインインフォームの入力。
type SignInInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
// oauthがnilの場合、Googleサインインは無効になる。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		metrics:     collector,
		config:      config,
	}
}

// GoogleEnabled はGoogleサインインが有効かどうかを返す。
func (s *Service) GoogleEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// SignUp はメール/パスワードで新規登録し、セッションを発行する。
// プロフィールは常にstudentロールで作成される。
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.Session, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &model.Profile{
		UserID:    user.ID,
		FullName:  in.FullName,
		Role:      model.RoleStudent,
		CreatedAt: now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, profile, nil); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("user_id", user.ID),
		slog.String("provider", model.SignInPassword),
	)

	return s.createSession(ctx, user.ID, model.SignInPassword)
}

// SignIn はメール/パスワードを検証し、セッションを発行する。
// 失敗理由（未登録、パスワード未設定、不一致）は区別せず同じエラーを返す。
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*model.Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		s.metrics.RecordSignIn(model.SignInPassword, false)
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.metrics.RecordSignIn(model.SignInPassword, false)
		return nil, model.NewInvalidCredentialsError()
	}

	s.metrics.RecordSignIn(model.SignInPassword, true)
	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("provider", model.SignInPassword),
	)

	return s.createSession(ctx, user.ID, model.SignInPassword)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// identityが登録済みならそのユーザーでログインする。
// 未登録で同じメールアドレスのユーザーがいる場合、パスワード未設定のユーザーにのみidentityを紐付ける。
// パスワード登録はメールアドレスを確認しないため、自動で紐付けるとアカウントを乗っ取られうる。
// どちらもなければユーザー、studentプロフィール、identityを同時に作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordSignIn(model.SignInGoogle, false)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	if identity != nil {
		userID = identity.UserID
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		userID, err = s.linkOrCreateUser(ctx, userInfo)
		if err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				s.metrics.RecordSignIn(model.SignInGoogle, false)
			}
			return nil, err
		}
	}

	s.metrics.RecordSignIn(model.SignInGoogle, true)
	return s.createSession(ctx, userID, model.SignInGoogle)
}

// linkOrCreateUser は既存ユーザーへのidentity紐付け、またはユーザーの新規作成を行う。
func (s *Service) linkOrCreateUser(ctx context.Context, userInfo *OAuthUserInfo) (string, error) {
	now := time.Now()

	existing, err := s.userRepo.FindByEmail(ctx, userInfo.Email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}

	if existing != nil {
		if existing.PasswordHash != "" {
			slog.Warn("google sign-in refused for password account",
				slog.String("user_id", existing.ID),
				slog.String("provider", userInfo.Provider),
			)
			return "", model.NewPasswordAccountError()
		}
		identity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         existing.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.identRepo.Create(ctx, identity); err != nil {
			return "", fmt.Errorf("failed to link identity: %w", err)
		}
		slog.Info("identity linked to existing user",
			slog.String("user_id", existing.ID),
			slog.String("provider", userInfo.Provider),
		)
		return existing.ID, nil
	}

	user := &model.User{
		ID:        uuid.New().String(),
		Email:     userInfo.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	profile := &model.Profile{
		UserID:    user.ID,
		FullName:  userInfo.Name,
		Role:      model.RoleStudent,
		CreatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, profile, identity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", userInfo.Provider),
	)
	return user.ID, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// Promote はメールアドレスで指定したユーザーのロールを変更する。
// 変更後のロールを反映させるため、そのユーザーの既存セッションは全て破棄する。
func (s *Service) Promote(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	if !role.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("role must be one of [%s %s]", model.RoleStudent, model.RoleAdmin))
	}

	profile, err := s.profileRepo.UpdateRoleByEmail(ctx, strings.TrimSpace(email), role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError(email)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, profile.UserID); err != nil {
		return nil, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.Info("profile role changed",
		slog.String("user_id", profile.UserID),
		slog.String("role", string(profile.Role)),
	)
	return profile, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID, method string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		Method:    method,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
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
