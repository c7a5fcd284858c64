package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"inkwell/internal/analytics"
	"inkwell/internal/backend"
	"inkwell/internal/content"
	"inkwell/internal/guard"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
)

type fakeUsers struct {
	users   []backend.User
	listErr error
	addErr  error
	editErr error
	delErr  error

	added   []backend.NewUser
	updated []backend.UserUpdate
	deleted []string
}

func (f *fakeUsers) ListUsers(context.Context, string) ([]backend.User, error) {
	return f.users, f.listErr
}

func (f *fakeUsers) AddUser(_ context.Context, _ string, u backend.NewUser) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, u)
	return "", nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, _ string, u backend.UserUpdate) (string, error) {
	if f.editErr != nil {
		return "", f.editErr
	}
	f.updated = append(f.updated, u)
	return "User updated successfully", nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, _, email string) (string, error) {
	if f.delErr != nil {
		return "", f.delErr
	}
	f.deleted = append(f.deleted, email)
	return "", nil
}

type fakeStats struct {
	dashboard *analytics.Dashboard
	err       error
}

func (f *fakeStats) Dashboard(context.Context, string) (*analytics.Dashboard, error) {
	return f.dashboard, f.err
}

type HandlerSuite struct {
	suite.Suite
	users     *fakeUsers
	stats     *fakeStats
	persister *session.MemoryPersister
	router    chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.users = &fakeUsers{users: []backend.User{
		{ID: 2, Username: "zed", Email: "zed@example.com", Verified: true},
		{ID: 1, Username: "root", Email: "root@example.com", Admin: true, Verified: true},
		{ID: 3, Username: "Amy", Email: "amy@example.com"},
	}}
	s.stats = &fakeStats{dashboard: &analytics.Dashboard{
		TotalUsers:   3,
		TotalContent: 1,
		Admins:       1,
		Unverified:   1,
		Recent:       []content.Item{{ID: 9, Title: "Hello world", Author: "zed"}},
		GeneratedAt:  time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
	}}
	s.persister = &session.MemoryPersister{Stored: session.Session{
		Token: "tok-root",
		User:  &session.User{ID: 1, Username: "root", Email: "root@example.com", Admin: true},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := web.NewRenderer(logger)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	s.router.Use(session.Middleware(func(http.ResponseWriter, *http.Request) session.Persister {
		return s.persister
	}, logger))
	New(NewService(s.users, s.stats, logger), renderer, logger).Register(s.router)
}

func (s *HandlerSuite) get(target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (s *HandlerSuite) post(target string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) TestHome() {
	s.Run("shows figures and links", func() {
		w := s.get("/admin")
		s.Equal(http.StatusOK, w.Code)
		body := w.Body.String()
		s.Contains(body, "Hello world")
		s.Contains(body, `href="/admin/analytics"`)
	})

	s.Run("failed figures keep the links", func() {
		s.stats.err = dErrors.New(dErrors.CodeUnavailable, "")
		defer func() { s.stats.err = nil }()
		w := s.get("/admin")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), "Failed to load statistics.")
		s.Contains(w.Body.String(), `href="/admin/users"`)
	})

	s.Run("rejected token logs out", func() {
		s.stats.err = dErrors.New(dErrors.CodeUnauthorized, "")
		defer func() { s.stats.err = nil }()
		w := s.get("/admin")
		s.Equal(http.StatusSeeOther, w.Code)
		s.Equal(web.ExpiredLoginURL, w.Header().Get("Location"))
	})
}

func (s *HandlerSuite) TestUsersAreSorted() {
	w := s.get("/admin/users")

	s.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	amy, root, zed := strings.Index(body, "amy@example.com"), strings.Index(body, "root@example.com"), strings.Index(body, "zed@example.com")
	s.Positive(amy)
	s.Less(amy, root)
	s.Less(root, zed)
	s.NotContains(body, `/admin/users/delete?email=root%40example.com`, "no delete link for yourself")
}

func (s *HandlerSuite) TestUsersLoadFailure() {
	s.users.listErr = dErrors.New(dErrors.CodeTimeout, "")
	w := s.get("/admin/users")
	s.Equal(http.StatusGatewayTimeout, w.Code)
	s.Contains(w.Body.String(), msgLoadUsers)
}

func (s *HandlerSuite) TestAddUser() {
	s.Run("password is required", func() {
		w := s.post("/admin/users", url.Values{"username": {"new"}, "email": {"new@example.com"}})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), msgPasswordNeeded)
		s.Contains(w.Body.String(), `value="new@example.com"`)
		s.Empty(s.users.added)
	})

	s.Run("invalid email", func() {
		w := s.post("/admin/users", url.Values{"username": {"new"}, "email": {"nope"}, "password": {"secret1"}})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "Email must be a valid email address")
	})

	s.Run("backend conflict", func() {
		s.users.addErr = dErrors.New(dErrors.CodeConflict, "Email already exists")
		defer func() { s.users.addErr = nil }()
		w := s.post("/admin/users", url.Values{"username": {"new"}, "email": {"new@example.com"}, "password": {"secret1"}})
		s.Equal(http.StatusConflict, w.Code)
		s.Contains(w.Body.String(), "Email already exists")
	})

	s.Run("success", func() {
		w := s.post("/admin/users", url.Values{
			"username": {" new "},
			"email":    {"new@example.com"},
			"password": {"secret1"},
			"admin":    {"yes"},
		})
		s.Equal(http.StatusSeeOther, w.Code)
		s.Equal("/admin/users", w.Header().Get("Location"))
		s.Require().Len(s.users.added, 1)
		s.Equal(backend.NewUser{Username: "new", Email: "new@example.com", Password: "secret1", Admin: true}, s.users.added[0])
	})
}

func (s *HandlerSuite) TestEditUser() {
	s.Run("prefills the form", func() {
		w := s.get("/admin/users/edit?email=ZED@example.com")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `name="original_email" value="zed@example.com"`)
		s.Contains(w.Body.String(), `value="zed"`)
	})

	s.Run("unknown user goes back to the list", func() {
		w := s.get("/admin/users/edit?email=ghost@example.com")
		s.Equal(http.StatusSeeOther, w.Code)
		s.Equal("/admin/users", w.Header().Get("Location"))
	})
}

func (s *HandlerSuite) TestUpdateUser() {
	s.Run("blank password keeps the current one", func() {
		w := s.post("/admin/users/update", url.Values{
			"original_email": {"zed@example.com"},
			"username":       {"zed"},
			"email":          {"zed@example.com"},
			"verified":       {"yes"},
		})
		s.Equal(http.StatusSeeOther, w.Code)
		s.Require().Len(s.users.updated, 1)
		s.Equal(backend.UserUpdate{Email: "zed@example.com", Username: "zed", Verified: true}, s.users.updated[0])
	})

	s.Run("changed email is sent as the new address", func() {
		s.users.updated = nil
		w := s.post("/admin/users/update", url.Values{
			"original_email": {"zed@example.com"},
			"username":       {"zed"},
			"email":          {"zed@new.example.com"},
			"password":       {"secret9"},
		})
		s.Equal(http.StatusSeeOther, w.Code)
		s.Require().Len(s.users.updated, 1)
		s.Equal("zed@example.com", s.users.updated[0].Email)
		s.Equal("zed@new.example.com", s.users.updated[0].NewEmail)
		s.Equal("secret9", s.users.updated[0].Password)
	})

	s.Run("short password", func() {
		w := s.post("/admin/users/update", url.Values{
			"original_email": {"zed@example.com"},
			"username":       {"zed"},
			"email":          {"zed@example.com"},
			"password":       {"abc"},
		})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "Password must be at least 6 characters")
	})

	s.Run("backend not found", func() {
		s.users.editErr = dErrors.New(dErrors.CodeNotFound, msgUserNotFound)
		defer func() { s.users.editErr = nil }()
		w := s.post("/admin/users/update", url.Values{
			"original_email": {"ghost@example.com"},
			"username":       {"ghost"},
			"email":          {"ghost@example.com"},
		})
		s.Equal(http.StatusNotFound, w.Code)
		s.Contains(w.Body.String(), msgUserNotFound)
	})
}

func (s *HandlerSuite) TestDemotingYourselfLeavesAdmin() {
	w := s.post("/admin/users/update", url.Values{
		"original_email": {"root@example.com"},
		"username":       {"root2"},
		"email":          {"root@example.com"},
	})

	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(guard.DashboardPath, w.Header().Get("Location"))
	s.Equal("root2", s.persister.Stored.User.Username)
	s.False(s.persister.Stored.User.Admin)
	s.Equal("tok-root", s.persister.Stored.Token)
}

func (s *HandlerSuite) TestDeleteUser() {
	s.Run("confirmation page", func() {
		w := s.get("/admin/users/delete?email=zed@example.com")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), "Are you sure you want to delete zed")
	})

	s.Run("requires confirmation", func() {
		w := s.post("/admin/users/delete", url.Values{"email": {"zed@example.com"}})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), msgConfirmDelete)
		s.Empty(s.users.deleted)
	})

	s.Run("not yourself", func() {
		w := s.post("/admin/users/delete", url.Values{"email": {"ROOT@example.com"}, "confirm": {"yes"}})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "You cannot delete your own account here.")
		s.Empty(s.users.deleted)
	})

	s.Run("confirmed", func() {
		w := s.post("/admin/users/delete", url.Values{"email": {"zed@example.com"}, "confirm": {"yes"}})
		s.Equal(http.StatusSeeOther, w.Code)
		s.Equal("/admin/users", w.Header().Get("Location"))
		s.Equal([]string{"zed@example.com"}, s.users.deleted)
	})

	s.Run("backend failure stays on the page", func() {
		s.users.delErr = dErrors.New(dErrors.CodeUnavailable, "")
		defer func() { s.users.delErr = nil }()
		w := s.post("/admin/users/delete", url.Values{"email": {"amy@example.com"}, "confirm": {"yes"}})
		s.Equal(http.StatusBadGateway, w.Code)
		s.Contains(w.Body.String(), `value="amy@example.com"`)
	})
}
