package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/collegeconnect/internal/model"
)

func TestResolver_Resolve(t *testing.T) {
	liveSession := &model.Session{ID: "sess-1", UserID: "user-1"}

	tests := []struct {
		name      string
		sessionID string
		session   *model.Session
		sessErr   error
		profile   *model.Profile
		profErr   error
		wantRole  model.Role
		wantAdmin bool
		wantErr   bool
	}{
		{name: "no session id", sessionID: "", wantErr: true},
		{name: "unknown session", sessionID: "sess-x", wantErr: true},
		{name: "session store error", sessionID: "sess-1", sessErr: errors.New("timeout"), wantErr: true},
		{name: "profile store error", sessionID: "sess-1", session: liveSession, profErr: errors.New("timeout"), wantErr: true},
		{name: "missing profile", sessionID: "sess-1", session: liveSession, wantErr: true},
		{name: "student", sessionID: "sess-1", session: liveSession, profile: &model.Profile{UserID: "user-1", FullName: "S", Role: model.RoleStudent}, wantRole: model.RoleStudent},
		{name: "admin", sessionID: "sess-1", session: liveSession, profile: &model.Profile{UserID: "user-1", FullName: "A", Role: model.RoleAdmin}, wantRole: model.RoleAdmin, wantAdmin: true},
		{name: "unknown role is not admin", sessionID: "sess-1", session: liveSession, profile: &model.Profile{UserID: "user-1", Role: "teacher"}, wantRole: "teacher"},
		{name: "empty role is not admin", sessionID: "sess-1", session: liveSession, profile: &model.Profile{UserID: "user-1"}, wantRole: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessionRepo{
				findByIDFn: func(context.Context, string) (*model.Session, error) { return tt.session, tt.sessErr },
			}
			profiles := &mockProfileRepo{
				findByUserIDFn: func(context.Context, string) (*model.Profile, error) { return tt.profile, tt.profErr },
			}

			viewer, err := NewResolver(sessions, profiles).Resolve(context.Background(), tt.sessionID)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("error = %v, want ErrUnauthenticated", err)
				}
				if viewer != nil {
					t.Errorf("viewer = %+v, want nil on failure", viewer)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if viewer.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", viewer.Role, tt.wantRole)
			}
			if viewer.IsAdmin() != tt.wantAdmin {
				t.Errorf("IsAdmin() = %v, want %v", viewer.IsAdmin(), tt.wantAdmin)
			}
			if viewer.UserID != "user-1" || viewer.SessionID != "sess-1" {
				t.Errorf("viewer ids = %q/%q", viewer.UserID, viewer.SessionID)
			}
		})
	}
}
