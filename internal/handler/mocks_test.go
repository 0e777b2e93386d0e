package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/collegeconnect/internal/auth"
	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
)

// --- モック定義 ---

type mockNoticeService struct {
	searchFn func(ctx context.Context, term string) ([]*model.Notice, error)
	createFn func(ctx context.Context, author *model.Viewer, in model.NoticeInput) (*model.Notice, error)

	mu    sync.Mutex
	terms []string
}

func (m *mockNoticeService) Search(ctx context.Context, term string) ([]*model.Notice, error) {
	m.mu.Lock()
	m.terms = append(m.terms, term)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, term)
	}
	return nil, nil
}

func (m *mockNoticeService) Create(ctx context.Context, author *model.Viewer, in model.NoticeInput) (*model.Notice, error) {
	if m.createFn != nil {
		return m.createFn(ctx, author, in)
	}
	return &model.Notice{ID: "notice-1", Title: in.Title, Content: in.Content, Category: model.NoticeCategory(in.Category), CreatedBy: author.UserID}, nil
}

func (m *mockNoticeService) searchedTerms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.terms...)
}

type mockQueryService struct {
	listForFn func(ctx context.Context, viewer *model.Viewer) ([]*model.Query, error)
	submitFn  func(ctx context.Context, student *model.Viewer, question string) (*model.Query, error)
	respondFn func(ctx context.Context, responder *model.Viewer, queryID string, in model.RespondInput) (*model.Query, error)
}

func (m *mockQueryService) ListFor(ctx context.Context, viewer *model.Viewer) ([]*model.Query, error) {
	if m.listForFn != nil {
		return m.listForFn(ctx, viewer)
	}
	return nil, nil
}

func (m *mockQueryService) Submit(ctx context.Context, student *model.Viewer, question string) (*model.Query, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, student, question)
	}
	return &model.Query{ID: "query-1", StudentID: student.UserID, Question: question, Status: model.StatusPending}, nil
}

func (m *mockQueryService) Respond(ctx context.Context, responder *model.Viewer, queryID string, in model.RespondInput) (*model.Query, error) {
	if m.respondFn != nil {
		return m.respondFn(ctx, responder, queryID, in)
	}
	return &model.Query{ID: queryID, Status: model.QueryStatus(in.Status), Response: &in.Response, RespondedBy: &responder.UserID}, nil
}

type mockAuthService struct {
	googleEnabled    bool
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	signUpFn         func(ctx context.Context, in auth.SignUpInput) (*model.Session, error)
	signInFn         func(ctx context.Context, in auth.SignInInput) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GoogleEnabled() bool { return m.googleEnabled }

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) SignUp(ctx context.Context, in auth.SignUpInput) (*model.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, in)
	}
	return &model.Session{ID: "sess-new", UserID: "user-new"}, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, in auth.SignInInput) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, in)
	}
	return &model.Session{ID: "sess-new", UserID: "user-new"}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

var (
	_ NoticeServiceInterface = (*mockNoticeService)(nil)
	_ QueryServiceInterface  = (*mockQueryService)(nil)
	_ AuthServiceInterface   = (*mockAuthService)(nil)
)

// --- ヘルパー ---

var (
	testStudent = &model.Viewer{UserID: "student-1", SessionID: "sess-student", FullName: "Sam Student", Role: model.RoleStudent}
	testAdmin   = &model.Viewer{UserID: "admin-1", SessionID: "sess-admin", FullName: "Ada Admin", Role: model.RoleAdmin}
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	views, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return views
}

// asViewer はリクエストのコンテキストに利用者を設定する。
func asViewer(r *http.Request, viewer *model.Viewer) *http.Request {
	return r.WithContext(middleware.ContextWithViewer(r.Context(), viewer))
}

// formBody はフォーム送信用のボディを作る。
func formBody(pairs ...string) *strings.Reader {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Set(pairs[i], pairs[i+1])
	}
	return strings.NewReader(values.Encode())
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
