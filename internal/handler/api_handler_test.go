package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
)

func jsonRequest(method, target, body string, viewer *model.Viewer) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return asViewer(req, viewer)
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var apiErr middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&apiErr); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return apiErr
}

func TestAPIHandler_Me(t *testing.T) {
	h := NewAPIHandler(&mockNoticeService{}, &mockQueryService{})
	w := httptest.NewRecorder()
	h.Me(w, asViewer(httptest.NewRequest(http.MethodGet, "/api/me", nil), testAdmin))

	var got meResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (meResponse{UserID: "admin-1", FullName: "Ada Admin", Role: "admin"}) {
		t.Errorf("me = %+v", got)
	}
}

func TestAPIHandler_ListNotices_PassesSearchTerm(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	notices := &mockNoticeService{
		searchFn: func(_ context.Context, term string) ([]*model.Notice, error) {
			return []*model.Notice{{ID: "n1", Title: "Midterm Schedule", Category: model.CategoryExam, CreatedAt: created}}, nil
		},
	}
	h := NewAPIHandler(notices, &mockQueryService{})

	w := httptest.NewRecorder()
	h.ListNotices(w, asViewer(httptest.NewRequest(http.MethodGet, "/api/notices?q=midterm", nil), testStudent))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if terms := notices.searchedTerms(); len(terms) != 1 || terms[0] != "midterm" {
		t.Errorf("terms = %q", terms)
	}
	var got []noticeResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Category != "exam" || !got[0].CreatedAt.Equal(created) {
		t.Errorf("notices = %+v", got)
	}
}

func TestAPIHandler_ListNotices_EmptyIsArray(t *testing.T) {
	h := NewAPIHandler(&mockNoticeService{}, &mockQueryService{})
	w := httptest.NewRecorder()
	h.ListNotices(w, asViewer(httptest.NewRequest(http.MethodGet, "/api/notices", nil), testStudent))

	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestAPIHandler_CreateNotice(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: `{"title":"Midterm Schedule","content":"Exams start Monday","category":"exam"}`, wantStatus: http.StatusCreated},
		{name: "malformed json", body: `{"title":`, wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeValidation},
		{name: "unknown field", body: `{"title":"a","content":"b","pinned":true}`, wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeValidation},
		{name: "service validation", body: `{"title":"","content":"b"}`, createErr: model.NewValidationError("title is required"), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeValidation},
		{name: "forbidden", body: `{"title":"a","content":"b"}`, createErr: model.NewForbiddenError(), wantStatus: http.StatusForbidden, wantCode: model.ErrCodeForbidden},
		{name: "internal", body: `{"title":"a","content":"b"}`, createErr: errors.New("insert failed"), wantStatus: http.StatusInternalServerError, wantCode: model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notices := &mockNoticeService{}
			if tt.createErr != nil {
				notices.createFn = func(context.Context, *model.Viewer, model.NoticeInput) (*model.Notice, error) {
					return nil, tt.createErr
				}
			}
			h := NewAPIHandler(notices, &mockQueryService{})

			w := httptest.NewRecorder()
			h.CreateNotice(w, jsonRequest(http.MethodPost, "/api/notices", tt.body, testAdmin))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				var got noticeResponse
				if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if got.Title != "Midterm Schedule" || got.CreatedBy != testAdmin.UserID {
					t.Errorf("notice = %+v", got)
				}
				return
			}
			if apiErr := decodeAPIError(t, w); apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestAPIHandler_ListQueries_UnansweredFieldsAreNull(t *testing.T) {
	queries := &mockQueryService{
		listForFn: func(context.Context, *model.Viewer) ([]*model.Query, error) {
			return []*model.Query{{ID: "q1", StudentID: "student-1", Question: "When is the library open?", Status: model.StatusPending}}, nil
		},
	}
	h := NewAPIHandler(&mockNoticeService{}, queries)

	w := httptest.NewRecorder()
	h.ListQueries(w, asViewer(httptest.NewRequest(http.MethodGet, "/api/queries", nil), testStudent))

	var raw []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("len = %d, want 1", len(raw))
	}
	for _, key := range []string{"response", "responded_by", "responded_at"} {
		v, ok := raw[0][key]
		if !ok || v != nil {
			t.Errorf("%s = %v (present=%v), want null", key, v, ok)
		}
	}
	if raw[0]["status"] != "pending" {
		t.Errorf("status = %v", raw[0]["status"])
	}
}

func TestAPIHandler_SubmitQuery(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h := NewAPIHandler(&mockNoticeService{}, &mockQueryService{})
		w := httptest.NewRecorder()
		h.SubmitQuery(w, jsonRequest(http.MethodPost, "/api/queries", `{"question":"When is the library open?"}`, testStudent))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
		}
		var got queryResponse
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.StudentID != testStudent.UserID || got.Status != "pending" || got.Response != nil {
			t.Errorf("query = %+v", got)
		}
	})

	t.Run("in flight", func(t *testing.T) {
		queries := &mockQueryService{
			submitFn: func(context.Context, *model.Viewer, string) (*model.Query, error) {
				return nil, model.NewSubmissionInFlightError()
			},
		}
		h := NewAPIHandler(&mockNoticeService{}, queries)
		w := httptest.NewRecorder()
		h.SubmitQuery(w, jsonRequest(http.MethodPost, "/api/queries", `{"question":"again"}`, testStudent))

		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
		}
		if apiErr := decodeAPIError(t, w); apiErr.Code != model.ErrCodeSubmissionInFlight {
			t.Errorf("code = %q", apiErr.Code)
		}
	})
}

func TestAPIHandler_RespondQuery(t *testing.T) {
	tests := []struct {
		name       string
		respondErr error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", model.NewQueryNotFoundError("q-42"), http.StatusNotFound},
		{"invalid transition", model.NewInvalidTransitionError(model.StatusResolved, model.StatusPending), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			queries := &mockQueryService{
				respondFn: func(_ context.Context, responder *model.Viewer, id string, in model.RespondInput) (*model.Query, error) {
					gotID = id
					if tt.respondErr != nil {
						return nil, tt.respondErr
					}
					return &model.Query{ID: id, Status: model.QueryStatus(in.Status), Response: &in.Response, RespondedBy: &responder.UserID}, nil
				},
			}
			h := NewAPIHandler(&mockNoticeService{}, queries)

			req := jsonRequest(http.MethodPut, "/api/queries/q-42/response", `{"response":"9am-9pm daily","status":"resolved"}`, testAdmin)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "q-42")
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			h.RespondQuery(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if gotID != "q-42" {
				t.Errorf("query id = %q", gotID)
			}
			if tt.respondErr != nil {
				return
			}
			var got queryResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Response == nil || *got.Response != "9am-9pm daily" || got.RespondedBy == nil || *got.RespondedBy != testAdmin.UserID {
				t.Errorf("query = %+v", got)
			}
		})
	}
}
