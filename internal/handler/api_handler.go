package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
)

// meResponse は現在の利用者のAPIレスポンス。
type meResponse struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// noticeResponse はお知らせのAPIレスポンス。
type noticeResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// queryResponse は質問のAPIレスポンス。未回答の場合、回答関連のフィールドはnull。
type queryResponse struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	Question    string     `json:"question"`
	Status      string     `json:"status"`
	Response    *string    `json:"response"`
	RespondedBy *string    `json:"responded_by"`
	RespondedAt *time.Time `json:"responded_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// submitQueryRequest は質問投稿リクエストのボディ。
type submitQueryRequest struct {
	Question string `json:"question"`
}

// APIHandler はJSON APIのHTTPハンドラー。
// 全エンドポイントはViewerMiddlewareとRequireViewerの後に配置する。
type APIHandler struct {
	notices NoticeServiceInterface
	queries QueryServiceInterface
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(notices NoticeServiceInterface, queries QueryServiceInterface) *APIHandler {
	return &APIHandler{notices: notices, queries: queries}
}

// Me は現在の利用者を返す。
// GET /api/me
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		UserID:   viewer.UserID,
		FullName: viewer.FullName,
		Role:     string(viewer.Role),
	})
}

// ListNotices はお知らせを新しい順に返す。qで絞り込む。
// GET /api/notices?q=...
func (h *APIHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.notices.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]noticeResponse, 0, len(notices))
	for _, n := range notices {
		resp = append(resp, toNoticeResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateNotice はお知らせを作成する。
// POST /api/notices
func (h *APIHandler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	var in model.NoticeInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, err)
		return
	}

	n, err := h.notices.Create(r.Context(), middleware.ViewerFromContext(r.Context()), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoticeResponse(n))
}

// ListQueries は利用者が閲覧できる質問を新しい順に返す。
// GET /api/queries
func (h *APIHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := h.queries.ListFor(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]queryResponse, 0, len(queries))
	for _, q := range queries {
		resp = append(resp, toQueryResponse(q))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitQuery は質問を投稿する。
// POST /api/queries
func (h *APIHandler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	q, err := h.queries.Submit(r.Context(), middleware.ViewerFromContext(r.Context()), req.Question)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQueryResponse(q))
}

// RespondQuery は質問に回答する。
// PUT /api/queries/{id}/response
func (h *APIHandler) RespondQuery(w http.ResponseWriter, r *http.Request) {
	var in model.RespondInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, err)
		return
	}

	q, err := h.queries.Respond(r.Context(), middleware.ViewerFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueryResponse(q))
}

func toNoticeResponse(n *model.Notice) noticeResponse {
	return noticeResponse{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Category:  string(n.Category),
		CreatedBy: n.CreatedBy,
		CreatedAt: n.CreatedAt,
	}
}

func toQueryResponse(q *model.Query) queryResponse {
	return queryResponse{
		ID:          q.ID,
		StudentID:   q.StudentID,
		Question:    q.Question,
		Status:      string(q.Status),
		Response:    q.Response,
		RespondedBy: q.RespondedBy,
		RespondedAt: q.RespondedAt,
		CreatedAt:   q.CreatedAt,
	}
}
