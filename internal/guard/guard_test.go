package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

type fakeIdentity struct {
	authenticated, admin bool
}

func (f fakeIdentity) IsAuthenticated() bool { return f.authenticated }
func (f fakeIdentity) IsAdmin() bool         { return f.admin }

type countingRecorder map[string]int

func (c countingRecorder) IncrementGuardDecision(requirement, decision string) {
	c[requirement+"/"+decision]++
}

type GuardSuite struct {
	suite.Suite
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) TestDecide() {
	anonymous := fakeIdentity{}
	user := fakeIdentity{authenticated: true}
	admin := fakeIdentity{authenticated: true, admin: true}

	cases := []struct {
		name string
		id   Identity
		req  Requirement
		want Decision
	}{
		{"public page for nobody", nil, None, Render},
		{"public page for anonymous", anonymous, None, Render},
		{"protected page for nil identity", nil, Authenticated, RedirectToLogin},
		{"protected page for anonymous", anonymous, Authenticated, RedirectToLogin},
		{"protected page for user", user, Authenticated, Render},
		{"admin page for anonymous", anonymous, Admin, RedirectToLogin},
		{"admin page for user", user, Admin, RedirectToDashboard},
		{"admin page for admin", admin, Admin, Render},
		{"protected page for admin", admin, Authenticated, Render},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, Decide(tc.id, tc.req))
		})
	}
}

func (s *GuardSuite) TestDecideIsStable() {
	id := fakeIdentity{authenticated: true}
	first := Decide(id, Admin)
	for range 5 {
		s.Equal(first, Decide(id, Admin))
	}
}

func (s *GuardSuite) serve(req Requirement, id Identity, target string, rec Recorder) (*httptest.ResponseRecorder, bool) {
	rendered := false
	h := Require(req, func(context.Context) Identity { return id }, WithRecorder(rec))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { rendered = true }),
	)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w, rendered
}

func (s *GuardSuite) TestRequire() {
	rec := countingRecorder{}

	s.Run("anonymous is sent to login with next", func() {
		w, rendered := s.serve(Authenticated, fakeIdentity{}, "/editor/new?draft=1", rec)
		s.False(rendered)
		s.Equal(http.StatusSeeOther, w.Code)
		s.Equal("/login?next=%2Feditor%2Fnew%3Fdraft%3D1", w.Header().Get("Location"))
	})

	s.Run("non admin is sent to dashboard", func() {
		w, rendered := s.serve(Admin, fakeIdentity{authenticated: true}, "/admin/users", rec)
		s.False(rendered)
		s.Equal("/dashboard", w.Header().Get("Location"))
	})

	s.Run("admin renders", func() {
		w, rendered := s.serve(Admin, fakeIdentity{authenticated: true, admin: true}, "/admin", rec)
		s.True(rendered)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Equal(1, rec["authenticated/redirect_login"])
	s.Equal(1, rec["admin/redirect_dashboard"])
	s.Equal(1, rec["admin/render"])
}

func (s *GuardSuite) TestSafeNext() {
	s.Equal("/content/4", SafeNext("/content/4", "/dashboard"))
	s.Equal("/dashboard", SafeNext("", "/dashboard"))
	s.Equal("/dashboard", SafeNext("https://evil.example", "/dashboard"))
	s.Equal("/dashboard", SafeNext("//evil.example", "/dashboard"))
	s.Equal("/dashboard", SafeNext(`/\evil.example`, "/dashboard"))
}

func (s *GuardSuite) TestLoginURL() {
	s.Equal("/login", LoginURL(""))
	s.Equal("/login", LoginURL("/login"))
	s.Equal("/login?next=%2Fadmin", LoginURL("/admin"))
}
