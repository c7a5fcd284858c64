package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"inkwell/internal/platform/tracer"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/requestcontext"
)

type observed struct {
	endpoint, outcome string
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []observed
}

func (r *recordingObserver) ObserveBackendCall(endpoint, outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, observed{endpoint, outcome})
}

type ClientSuite struct {
	suite.Suite
	ctx      context.Context
	mux      *http.ServeMux
	server   *httptest.Server
	observer *recordingObserver
	client   *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = requestcontext.WithRequestID(context.Background(), "req-1")
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.observer = &recordingObserver{}
	s.client = New(Config{BaseURL: s.server.URL + "/", Timeout: time.Second, Observer: s.observer})
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientSuite) TestAuthorizationHeader() {
	var auth, requestID string
	s.mux.HandleFunc("GET /api/content/getallcontent", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, []Content{})
	})

	s.Run("attached when a token is given", func() {
		_, err := s.client.ListContent(s.ctx, "tok-1")
		s.Require().NoError(err)
		s.Equal("Bearer tok-1", auth)
		s.Equal("req-1", requestID)
	})

	s.Run("absent without a token", func() {
		_, err := s.client.ListContent(s.ctx, "")
		s.Require().NoError(err)
		s.Empty(auth)
	})
}

func (s *ClientSuite) TestSignIn() {
	s.mux.HandleFunc("POST /api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["email"] {
		case "alice@example.com":
			writeJSON(w, http.StatusOK, map[string]any{
				"jwtToken": "jwt-abc",
				"isAdmin":  true,
				"user":     map[string]any{"id": 1, "username": "alice", "email": "alice@example.com", "admin": true},
			})
		case "broken@example.com":
			writeJSON(w, http.StatusOK, map[string]any{"isAdmin": false})
		case "nobody@example.com":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "nobody@example.com is not registered.")
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "Incorrect Password")
		}
	})

	s.Run("success", func() {
		res, err := s.client.SignIn(s.ctx, "alice@example.com", "pw")
		s.Require().NoError(err)
		s.Equal("jwt-abc", res.Token)
		s.True(res.User.Admin)
	})

	s.Run("wrong password is a validation error with the backend text", func() {
		_, err := s.client.SignIn(s.ctx, "bob@example.com", "bad")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Incorrect Password", dErrors.UserMessage(err))
	})

	s.Run("unknown email", func() {
		_, err := s.client.SignIn(s.ctx, "nobody@example.com", "pw")
		s.Equal("nobody@example.com is not registered.", dErrors.UserMessage(err))
	})

	s.Run("missing token is malformed", func() {
		_, err := s.client.SignIn(s.ctx, "broken@example.com", "pw")
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedResponse))
	})
}

func (s *ClientSuite) TestListDecoding() {
	var body string
	s.mux.HandleFunc("GET /api/content/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})

	s.Run("array", func() {
		body = `[{"id":1,"title":"First","author":"alice","authorId":7,"date":"March 4, 2026","data":"{}"}]`
		items, err := s.client.ListMyContent(s.ctx, "tok")
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(7, items[0].AuthorID)
	})

	s.Run("non-array bodies degrade to empty", func() {
		for _, b := range []string{`{"message":"none"}`, `"No content"`, ``, `null`} {
			body = b
			items, err := s.client.ListMyContent(s.ctx, "tok")
			s.Require().NoError(err, b)
			s.NotNil(items)
			s.Empty(items)
		}
	})

	s.Run("malformed array is an error", func() {
		body = `[{"id":"one"}]`
		_, err := s.client.ListMyContent(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedResponse))
	})
}

func (s *ClientSuite) TestErrorTaxonomy() {
	s.mux.HandleFunc("GET /api/content/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "1":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "Invalid token")
		case "2":
			writeJSON(w, http.StatusNotFound, "Content not found with id: 2")
		case "3":
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Title is required"})
		case "4":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "5":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "<html>stack trace</html>")
		case "6":
			_, _ = io.WriteString(w, "not json")
		}
	})

	cases := []struct {
		id   int
		code dErrors.Code
		msg  string
	}{
		{1, dErrors.CodeUnauthorized, "Invalid token"},
		{2, dErrors.CodeNotFound, "Content not found with id: 2"},
		{3, dErrors.CodeValidation, "Title is required"},
		{4, dErrors.CodeUnavailable, ""},
		{5, dErrors.CodeInternal, ""},
		{6, dErrors.CodeMalformedResponse, ""},
	}
	for _, tc := range cases {
		_, err := s.client.GetContent(s.ctx, "tok", tc.id)
		s.Require().Error(err)
		s.Equal(tc.code, dErrors.CodeOf(err), "id %d", tc.id)
		if tc.msg != "" {
			s.Equal(tc.msg, err.Error())
		}
		s.NotContains(dErrors.UserMessage(err), "stack trace")
	}

	s.Equal(observed{"content.get", "unauthorized"}, s.observer.calls[0])
}

func (s *ClientSuite) TestTransportFailures() {
	s.Run("unreachable", func() {
		c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		_, err := c.ListContent(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("timeout", func() {
		s.mux.HandleFunc("GET /api/content/getallcontent", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		c := New(Config{BaseURL: s.server.URL, Timeout: 50 * time.Millisecond})
		_, err := c.ListContent(s.ctx, "")
		s.True(dErrors.IsTransport(err), "got %v", err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

type flakyDoer struct {
	down bool
	next HTTPDoer
}

func (f *flakyDoer) Do(req *http.Request) (*http.Response, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	return f.next.Do(req)
}

func (s *ClientSuite) TestHealthFollowsTransportFailures() {
	s.mux.HandleFunc("GET /api/content/getallcontent", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})
	doer := &flakyDoer{down: true, next: s.server.Client()}
	events := &eventTracer{}
	c := New(Config{BaseURL: s.server.URL, HTTPClient: doer, FailureThreshold: 2, Tracer: events})
	s.NoError(c.Health(s.ctx))

	_, _ = c.ListContent(s.ctx, "")
	s.NoError(c.Health(s.ctx), "one failure is not enough")
	_, _ = c.ListContent(s.ctx, "")
	s.Error(c.Health(s.ctx))
	s.Equal([]string{tracer.EventBreakerOpened}, events.names())

	s.Run("abandoned requests do not count", func() {
		canceled, cancel := context.WithCancel(s.ctx)
		cancel()
		doer.down = false
		_, _ = c.ListContent(canceled, "")
		s.Error(c.Health(s.ctx))
	})

	s.Run("recovers after successes", func() {
		doer.down = false
		_, err := c.ListContent(s.ctx, "")
		s.Require().NoError(err)
		_, err = c.ListContent(s.ctx, "")
		s.Require().NoError(err)
		s.NoError(c.Health(s.ctx))
		s.Equal([]string{tracer.EventBreakerOpened, tracer.EventBreakerClosed}, events.names())
	})
}

// eventTracer keeps the names of span events in the order they were added.
type eventTracer struct {
	mu     sync.Mutex
	events []string
}

func (t *eventTracer) Start(ctx context.Context, _ string, _ ...tracer.Attribute) (context.Context, tracer.Span) {
	return ctx, eventSpan{t}
}

func (t *eventTracer) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

type eventSpan struct{ t *eventTracer }

func (eventSpan) End(error)                         {}
func (eventSpan) SetAttributes(...tracer.Attribute) {}

func (s eventSpan) AddEvent(name string, _ ...tracer.Attribute) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.t.events = append(s.t.events, name)
}

func (s *ClientSuite) TestCreateContentMultipart() {
	var got struct {
		title, excerpt, data, filename, fileBody string
	}
	s.mux.HandleFunc("POST /api/content/addcontent", func(w http.ResponseWriter, r *http.Request) {
		s.Require().NoError(r.ParseMultipartForm(1 << 20))
		got.title = r.FormValue("title")
		got.excerpt = r.FormValue("excerpt")
		got.data = r.FormValue("data")
		if f, h, err := r.FormFile("image"); err == nil {
			b, _ := io.ReadAll(f)
			got.filename = h.Filename
			got.fileBody = string(b)
		}
		writeJSON(w, http.StatusCreated, Content{ID: 9, Title: got.title})
	})

	s.Run("title is required locally", func() {
		_, err := s.client.CreateContent(s.ctx, "tok", ContentFields{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.observer.calls, "no request was sent")
	})

	s.Run("fields and image are sent", func() {
		created, err := s.client.CreateContent(s.ctx, "tok", ContentFields{
			Title:   "Hello",
			Excerpt: "Intro",
			Data:    `{"blocks":[]}`,
			Image:   &Upload{Filename: "cover.png", ContentType: "image/png", Data: strings.NewReader("PNG")},
		})
		s.Require().NoError(err)
		s.Equal(9, created.ID)
		s.Equal("Hello", got.title)
		s.Equal("Intro", got.excerpt)
		s.Equal(`{"blocks":[]}`, got.data)
		s.Equal("cover.png", got.filename)
		s.Equal("PNG", got.fileBody)
	})
}

func (s *ClientSuite) TestUpdateContentWithoutChanges() {
	s.mux.HandleFunc("PUT /api/content/update/4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "No changes made to content")
	})

	updated, err := s.client.UpdateContent(s.ctx, "tok", 4, ContentFields{Title: "Same"})
	s.Require().NoError(err)
	s.Nil(updated)

	_, err = s.client.UpdateContent(s.ctx, "tok", 0, ContentFields{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ClientSuite) TestUpdateProfileSendsJSONPart() {
	var partType string
	var sent ProfileUpdate
	s.mux.HandleFunc("POST /api/user/updateuser", func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		s.Require().NoError(err)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "user" {
				partType = part.Header.Get("Content-Type")
				_ = json.NewDecoder(part).Decode(&sent)
			}
		}
		_, _ = io.WriteString(w, "User details updated successfully")
	})

	msg, err := s.client.UpdateProfile(s.ctx, "tok", ProfileUpdate{Username: "alice2"})
	s.Require().NoError(err)
	s.Equal("User details updated successfully", msg)
	s.Equal("application/json", partType)
	s.Equal("alice2", sent.Username)
}

func (s *ClientSuite) TestVerifyEmailUpdate() {
	s.mux.HandleFunc("POST /api/user/email/update/verify", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email updated successfully", "token": "jwt-new"})
	})

	tok, err := s.client.VerifyEmailUpdate(s.ctx, "jwt-old", "123456")
	s.Require().NoError(err)
	s.Equal("jwt-new", tok)
}

func (s *ClientSuite) TestUploadImage() {
	s.mux.HandleFunc("POST /api/image/addimage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "https://cdn.example.com/a.png")
	})

	u, err := s.client.UploadImage(s.ctx, "tok", Upload{Filename: "a.png", Data: strings.NewReader("x")})
	s.Require().NoError(err)
	s.Equal("https://cdn.example.com/a.png", u)

	_, err = s.client.UploadImage(s.ctx, "tok", Upload{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ClientSuite) TestAdminEndpoints() {
	var updateBody, deleteBody map[string]string
	s.mux.HandleFunc("GET /api/admin/getallusers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "No users found")
	})
	s.mux.HandleFunc("POST /api/admin/updateuser", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&updateBody)
		_, _ = io.WriteString(w, "User updated successfully")
	})
	s.mux.HandleFunc("DELETE /api/admin/deleteuser", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&deleteBody)
		_, _ = io.WriteString(w, "User deleted successfully")
	})

	s.Run("no users is an empty list", func() {
		users, err := s.client.ListUsers(s.ctx, "tok")
		s.Require().NoError(err)
		s.Empty(users)
	})

	s.Run("update sends booleans as strings and omits blanks", func() {
		msg, err := s.client.UpdateUser(s.ctx, "tok", UserUpdate{Email: "a@example.com", Username: "al", Admin: true})
		s.Require().NoError(err)
		s.Equal("User updated successfully", msg)
		s.Equal(map[string]string{"email": "a@example.com", "username": "al", "admin": "true", "verified": "false"}, updateBody)
	})

	s.Run("delete carries the email in the body", func() {
		_, err := s.client.DeleteUser(s.ctx, "tok", "a@example.com")
		s.Require().NoError(err)
		s.Equal("a@example.com", deleteBody["email"])
	})
}

func (s *ClientSuite) TestBackendMessage() {
	s.Equal("x", backendMessage([]byte(`{"message":"x"}`)))
	s.Equal("y", backendMessage([]byte(`{"error":"y"}`)))
	s.Equal("z", backendMessage([]byte(`"z"`)))
	s.Equal("plain", backendMessage([]byte(" plain \n")))
	s.Empty(backendMessage([]byte("<html></html>")))
	s.Empty(backendMessage([]byte(strings.Repeat("a", 400))))
}
