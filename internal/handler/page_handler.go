package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/notice"
	"github.com/hitoshi/collegeconnect/internal/query"
	"github.com/hitoshi/collegeconnect/internal/view"
)

// NoticeServiceInterface はお知らせのサービスインターフェース。
type NoticeServiceInterface interface {
	Search(ctx context.Context, term string) ([]*model.Notice, error)
	Create(ctx context.Context, author *model.Viewer, in model.NoticeInput) (*model.Notice, error)
}

// QueryServiceInterface は質問のサービスインターフェース。
type QueryServiceInterface interface {
	ListFor(ctx context.Context, viewer *model.Viewer) ([]*model.Query, error)
	Submit(ctx context.Context, student *model.Viewer, question string) (*model.Query, error)
	Respond(ctx context.Context, responder *model.Viewer, queryID string, in model.RespondInput) (*model.Query, error)
}

const (
	tabNotices = "notices"
	tabQueries = "queries"
)

// dashboardData はダッシュボード（学生・管理者共通）のテンプレートデータ。
type dashboardData struct {
	pageData
	Tab        string
	Search     string
	Notices    []view.NoticeCardView
	Queries    []view.QueryCardView
	Categories []model.NoticeCategory
	Statuses   []statusOption

	// 送信失敗時に再表示するフォームの値
	NoticeForm    model.NoticeInput
	QuestionDraft string
}

// PageHandler はサーバーレンダリングのページを提供する。
type PageHandler struct {
	notices NoticeServiceInterface
	queries QueryServiceInterface
	views   *Renderer
	cookies CookieConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(notices NoticeServiceInterface, queries QueryServiceInterface, views *Renderer, cookies CookieConfig) *PageHandler {
	return &PageHandler{
		notices: notices,
		queries: queries,
		views:   views,
		cookies: cookies,
	}
}

// Landing はトップページを表示する。認証済みの場合はダッシュボードへリダイレクトする。
// GET /
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	if middleware.ViewerFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	h.views.Render(w, http.StatusOK, "landing", pageData{
		Title:     "College Connect",
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Flash:     popFlash(w, r, h.cookies),
	})
}

// Dashboard はロールに応じたダッシュボードを表示する。
// 未認証、またはセッション・プロフィールを解決できない場合は /auth へリダイレクトする。
// GET /dashboard?tab=notices|queries&q=...
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	if viewer == nil {
		http.Redirect(w, r, "/auth", http.StatusFound)
		return
	}

	data := h.newDashboardData(w, r, viewer)
	data.Tab = r.URL.Query().Get("tab")
	data.Search = r.URL.Query().Get("q")
	h.loadAndRender(w, r, http.StatusOK, data)
}

// CreateNotice は管理者のお知らせ作成フォームを処理する。
// 成功時はダッシュボードへリダイレクトし、失敗時は入力値を残したまま再表示する。
// POST /dashboard/notices
func (h *PageHandler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())

	in := model.NoticeInput{
		Title:    r.PostFormValue("title"),
		Content:  r.PostFormValue("content"),
		Category: r.PostFormValue("category"),
	}

	if _, err := h.notices.Create(r.Context(), viewer, in); err != nil {
		apiErr, status := userFacingError(err)
		data := h.newDashboardData(w, r, viewer)
		data.Tab = tabNotices
		data.Flash = errorFlash(apiErr.Message)
		data.NoticeForm = in
		h.loadAndRender(w, r, status, data)
		return
	}

	setFlash(w, h.cookies, successFlash("Success!", "Notice created successfully"))
	http.Redirect(w, r, "/dashboard?tab="+tabNotices, http.StatusSeeOther)
}

// SubmitQuery は学生の質問投稿フォームを処理する。
// POST /dashboard/queries
func (h *PageHandler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	question := r.PostFormValue("question")

	if _, err := h.queries.Submit(r.Context(), viewer, question); err != nil {
		apiErr, status := userFacingError(err)
		data := h.newDashboardData(w, r, viewer)
		data.Tab = tabQueries
		data.Flash = errorFlash(apiErr.Message)
		data.QuestionDraft = question
		h.loadAndRender(w, r, status, data)
		return
	}

	setFlash(w, h.cookies, successFlash("Query submitted!", "Your question has been sent to the admin team."))
	http.Redirect(w, r, "/dashboard?tab="+tabQueries, http.StatusSeeOther)
}

// RespondQuery は管理者の回答フォームを処理する。
// 他のカードの未送信の入力は再取得で破棄される。
// POST /dashboard/queries/{id}/response
func (h *PageHandler) RespondQuery(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	queryID := chi.URLParam(r, "id")

	in := model.RespondInput{
		Response: r.PostFormValue("response"),
		Status:   r.PostFormValue("status"),
	}

	if _, err := h.queries.Respond(r.Context(), viewer, queryID, in); err != nil {
		apiErr, status := userFacingError(err)
		data := h.newDashboardData(w, r, viewer)
		data.Tab = tabQueries
		data.Flash = errorFlash(apiErr.Message)
		h.loadAndRender(w, r, status, data)
		return
	}

	setFlash(w, h.cookies, successFlash("Success!", "Response sent successfully"))
	http.Redirect(w, r, "/dashboard?tab="+tabQueries, http.StatusSeeOther)
}

// RequirePageViewer は未認証のページリクエストを /auth へリダイレクトするミドルウェア。
func RequirePageViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.ViewerFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/auth", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *PageHandler) newDashboardData(w http.ResponseWriter, r *http.Request, viewer *model.Viewer) dashboardData {
	title := "College Connect"
	if viewer.IsAdmin() {
		title = "Admin Dashboard"
	}
	return dashboardData{
		pageData: pageData{
			Title:     title,
			Viewer:    viewer,
			CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
			Flash:     popFlash(w, r, h.cookies),
		},
		Categories: model.AllNoticeCategories,
		Statuses:   statusOptions(),
		NoticeForm: model.NoticeInput{Category: string(model.CategoryGeneral)},
	}
}

// loadAndRender はお知らせと質問を取得してダッシュボードを描画する。
// 取得に失敗した一覧は空のまま、エラーのトーストを表示する。
func (h *PageHandler) loadAndRender(w http.ResponseWriter, r *http.Request, status int, data dashboardData) {
	ctx := r.Context()
	viewer := data.Viewer

	if data.Tab != tabQueries {
		data.Tab = tabNotices
	}

	// 管理者の一覧は検索語で絞り込まない
	term := data.Search
	if viewer.IsAdmin() {
		term = ""
	}
	notices, err := h.notices.Search(ctx, term)
	if err != nil {
		slog.Error("failed to load notices", slog.String("error", err.Error()))
		if data.Flash == nil {
			data.Flash = errorFlash("Failed to load notices")
		}
	}
	data.Notices = view.NoticeCards(notices)

	queries, err := h.queries.ListFor(ctx, viewer)
	if err != nil {
		slog.Error("failed to load queries", slog.String("error", err.Error()))
		if data.Flash == nil {
			data.Flash = errorFlash("Failed to load queries")
		}
	}
	data.Queries = view.QueryCards(queries)

	page := "student"
	if viewer.IsAdmin() {
		page = "admin"
	}
	h.views.Render(w, status, page, data)
}

var (
	_ NoticeServiceInterface = (*notice.Service)(nil)
	_ QueryServiceInterface  = (*query.Service)(nil)
)
