package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/repository"
)

type mockQueryRepo struct {
	createFn        func(ctx context.Context, q *model.Query) error
	findByIDFn      func(ctx context.Context, id string) (*model.Query, error)
	listByStudentFn func(ctx context.Context, studentID string) ([]*model.Query, error)
	listAllFn       func(ctx context.Context) ([]*model.Query, error)
	respondFn       func(ctx context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error)
}

func (m *mockQueryRepo) Create(ctx context.Context, q *model.Query) error {
	if m.createFn != nil {
		return m.createFn(ctx, q)
	}
	q.Status = model.StatusPending
	q.CreatedAt = time.Now()
	return nil
}

func (m *mockQueryRepo) FindByID(ctx context.Context, id string) (*model.Query, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockQueryRepo) ListByStudent(ctx context.Context, studentID string) ([]*model.Query, error) {
	if m.listByStudentFn != nil {
		return m.listByStudentFn(ctx, studentID)
	}
	return nil, nil
}

func (m *mockQueryRepo) ListAll(ctx context.Context) ([]*model.Query, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockQueryRepo) Respond(ctx context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error) {
	if m.respondFn != nil {
		return m.respondFn(ctx, id, adminID, response, status)
	}
	now := time.Now()
	return &model.Query{ID: id, Status: status, Response: &response, RespondedBy: &adminID, RespondedAt: &now}, nil
}

var _ repository.QueryRepository = (*mockQueryRepo)(nil)

const testQueryID = "5d1f0c3a-8e2b-4c7d-9a61-2f4e8b0c7d13"

var (
	admin   = &model.Viewer{UserID: "admin-1", Role: model.RoleAdmin}
	student = &model.Viewer{UserID: "student-1", Role: model.RoleStudent}
)

func assertCode(t *testing.T, err error, want string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError %s", err, want)
	}
	if apiErr.Code != want {
		t.Errorf("code = %s, want %s", apiErr.Code, want)
	}
}

func TestService_Submit_TrimsAndOwnsQuery(t *testing.T) {
	var saved *model.Query
	repo := &mockQueryRepo{createFn: func(_ context.Context, q *model.Query) error {
		saved = q
		q.Status = model.StatusPending
		return nil
	}}

	got, err := NewService(repo, nil, nil).Submit(context.Background(), student, "  When is the exam?  ")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if saved == nil {
		t.Fatal("repository was not called")
	}
	if saved.Question != "When is the exam?" {
		t.Errorf("Question = %q, want trimmed", saved.Question)
	}
	if saved.StudentID != student.UserID {
		t.Errorf("StudentID = %q, want %q", saved.StudentID, student.UserID)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Response != nil || got.RespondedBy != nil || got.RespondedAt != nil {
		t.Error("new query must not carry a response")
	}
}

func TestService_Submit_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		viewer   *model.Viewer
		question string
		wantCode string
	}{
		{"anonymous", nil, "q", model.ErrCodeUnauthorized},
		{"admin cannot ask", admin, "q", model.ErrCodeForbidden},
		{"empty question", student, "", model.ErrCodeValidation},
		{"whitespace question", student, " \t\n ", model.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockQueryRepo{createFn: func(context.Context, *model.Query) error {
				t.Error("repository must not be called")
				return nil
			}}
			_, err := NewService(repo, nil, nil).Submit(context.Background(), tt.viewer, tt.question)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestService_Submit_InFlightIsRejected(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var calls int
	var mu sync.Mutex

	repo := &mockQueryRepo{createFn: func(_ context.Context, q *model.Query) error {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-unblock
		q.Status = model.StatusPending
		return nil
	}}
	svc := NewService(repo, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), student, "first")
		done <- err
	}()
	<-entered

	_, err := svc.Submit(context.Background(), student, "second")
	if !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second Submit() error = %v, want ErrSubmissionInFlight", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("repository Create calls = %d, want 1", calls)
	}
}

func TestService_Submit_GuardReleasedAfterFailure(t *testing.T) {
	fail := true
	repo := &mockQueryRepo{createFn: func(_ context.Context, q *model.Query) error {
		if fail {
			return errors.New("connection refused")
		}
		q.Status = model.StatusPending
		return nil
	}}
	svc := NewService(repo, nil, nil)

	if _, err := svc.Submit(context.Background(), student, "q"); err == nil {
		t.Fatal("expected store error")
	}
	fail = false
	if _, err := svc.Submit(context.Background(), student, "q"); err != nil {
		t.Fatalf("retry Submit() error = %v", err)
	}
}

func TestService_ListFor(t *testing.T) {
	repo := &mockQueryRepo{
		listByStudentFn: func(_ context.Context, studentID string) ([]*model.Query, error) {
			return []*model.Query{{ID: "own", StudentID: studentID}}, nil
		},
		listAllFn: func(context.Context) ([]*model.Query, error) {
			return []*model.Query{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	svc := NewService(repo, nil, nil)

	mine, err := svc.ListFor(context.Background(), student)
	if err != nil {
		t.Fatalf("ListFor(student) error = %v", err)
	}
	if len(mine) != 1 || mine[0].StudentID != student.UserID {
		t.Errorf("student sees %+v, want only own queries", mine)
	}

	all, err := svc.ListFor(context.Background(), admin)
	if err != nil {
		t.Fatalf("ListFor(admin) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin sees %d queries, want 2", len(all))
	}

	if _, err := svc.ListFor(context.Background(), nil); err == nil {
		t.Error("anonymous ListFor must fail")
	}
}

func TestService_Respond_WritesAllFieldsTogether(t *testing.T) {
	var gotAdmin, gotResponse string
	var gotStatus model.QueryStatus
	repo := &mockQueryRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Query, error) {
			return &model.Query{ID: id, Status: model.StatusPending}, nil
		},
		respondFn: func(_ context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error) {
			gotAdmin, gotResponse, gotStatus = adminID, response, status
			now := time.Now()
			return &model.Query{ID: id, Status: status, Response: &response, RespondedBy: &adminID, RespondedAt: &now}, nil
		},
	}

	got, err := NewService(repo, nil, nil).Respond(context.Background(), admin, testQueryID,
		model.RespondInput{Response: "  See the notice board.  ", Status: "resolved"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if gotAdmin != admin.UserID {
		t.Errorf("responder = %q, want %q", gotAdmin, admin.UserID)
	}
	if gotResponse != "See the notice board." {
		t.Errorf("response = %q, want trimmed", gotResponse)
	}
	if gotStatus != model.StatusResolved {
		t.Errorf("status = %q, want resolved", gotStatus)
	}
	if !got.IsAnswered() {
		t.Error("responded query must be answered")
	}
}

func TestService_Respond_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		viewer   *model.Viewer
		in       model.RespondInput
		wantCode string
	}{
		{"student cannot respond", student, model.RespondInput{Response: "r", Status: "resolved"}, model.ErrCodeForbidden},
		{"anonymous cannot respond", nil, model.RespondInput{Response: "r", Status: "resolved"}, model.ErrCodeForbidden},
		{"empty response", admin, model.RespondInput{Response: "  ", Status: "resolved"}, model.ErrCodeValidation},
		{"missing status", admin, model.RespondInput{Response: "r"}, model.ErrCodeValidation},
		{"unknown status", admin, model.RespondInput{Response: "r", Status: "closed"}, model.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockQueryRepo{respondFn: func(context.Context, string, string, string, model.QueryStatus) (*model.Query, error) {
				t.Error("repository must not be called")
				return nil, nil
			}}
			_, err := NewService(repo, nil, nil).Respond(context.Background(), tt.viewer, testQueryID, tt.in)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestService_Respond_UnknownQuery(t *testing.T) {
	_, err := NewService(&mockQueryRepo{}, nil, nil).Respond(context.Background(), admin, "0b6f6c5e-2f0a-4b4e-9d55-1c7f3a1e9b00",
		model.RespondInput{Response: "r", Status: "resolved"})
	assertCode(t, err, model.ErrCodeQueryNotFound)
}

func TestService_Respond_MalformedID(t *testing.T) {
	for _, id := range []string{"abc", "", "q-1", "1' OR '1'='1"} {
		t.Run(id, func(t *testing.T) {
			repo := &mockQueryRepo{
				findByIDFn: func(context.Context, string) (*model.Query, error) {
					t.Fatal("malformed id must not reach the store")
					return nil, nil
				},
			}
			_, err := NewService(repo, nil, nil).Respond(context.Background(), admin, id,
				model.RespondInput{Response: "r", Status: "resolved"})
			assertCode(t, err, model.ErrCodeQueryNotFound)
		})
	}
}

func TestService_Respond_Policy(t *testing.T) {
	tests := []struct {
		name    string
		policy  model.TransitionPolicy
		from    model.QueryStatus
		to      string
		wantErr bool
	}{
		{"open allows reopening", model.OpenTransitions, model.StatusResolved, "pending", false},
		{"forward allows advancing", model.ForwardOnlyTransitions, model.StatusPending, "in_progress", false},
		{"forward allows same status", model.ForwardOnlyTransitions, model.StatusResolved, "resolved", false},
		{"forward rejects reopening", model.ForwardOnlyTransitions, model.StatusResolved, "pending", true},
		{"forward rejects step back", model.ForwardOnlyTransitions, model.StatusInProgress, "pending", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responded := false
			repo := &mockQueryRepo{
				findByIDFn: func(_ context.Context, id string) (*model.Query, error) {
					return &model.Query{ID: id, Status: tt.from}, nil
				},
				respondFn: func(_ context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error) {
					responded = true
					return &model.Query{ID: id, Status: status}, nil
				},
			}
			_, err := NewService(repo, tt.policy, nil).Respond(context.Background(), admin, testQueryID,
				model.RespondInput{Response: "r", Status: tt.to})
			if tt.wantErr {
				assertCode(t, err, model.ErrCodeInvalidTransition)
				if responded {
					t.Error("rejected transition must not be written")
				}
				return
			}
			if err != nil {
				t.Fatalf("Respond() error = %v", err)
			}
		})
	}
}

func TestService_Respond_InFlightIsRejected(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	repo := &mockQueryRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Query, error) {
			return &model.Query{ID: id, Status: model.StatusPending}, nil
		},
		respondFn: func(_ context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error) {
			close(entered)
			<-unblock
			return &model.Query{ID: id, Status: status}, nil
		},
	}
	svc := NewService(repo, nil, nil)
	in := model.RespondInput{Response: "r", Status: "in_progress"}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Respond(context.Background(), admin, testQueryID, in)
		done <- err
	}()
	<-entered

	if _, err := svc.Respond(context.Background(), admin, testQueryID, in); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second Respond() error = %v, want ErrSubmissionInFlight", err)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first Respond() error = %v", err)
	}
}

func TestNewService_DefaultsToOpenPolicy(t *testing.T) {
	if got := NewService(&mockQueryRepo{}, nil, nil).Policy().Name(); got != "open" {
		t.Errorf("Policy().Name() = %q, want open", got)
	}
}
