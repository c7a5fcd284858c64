package content

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"inkwell/internal/blocks"
	"inkwell/internal/editor"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
)

type HandlerSuite struct {
	suite.Suite
	backend   *fakeBackend
	editors   *editor.Manager
	persister *session.MemoryPersister
	router    chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.backend = newFakeBackend(samplePosts()...)
	s.editors = editor.NewManager()
	s.persister = &session.MemoryPersister{Stored: session.Session{
		Token: "tok-alice",
		User:  &session.User{ID: 7, Username: "alice", Email: "alice@example.com", Verified: true},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer, err := web.NewRenderer(logger)
	s.Require().NoError(err)

	h := NewHandler(s.backend, s.editors, renderer, nil, logger, 1<<20)
	s.router = chi.NewRouter()
	s.router.Use(session.Middleware(func(http.ResponseWriter, *http.Request) session.Persister {
		return s.persister
	}, logger))
	h.RegisterPublic(s.router)
	h.RegisterAuthenticated(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) get(target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (s *HandlerSuite) postForm(target string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) postMultipart(target string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "cover.png")
		s.Require().NoError(err)
		_, _ = part.Write(image)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) readyEditor(contentID int) editor.Instance {
	inst := s.editors.Acquire(7, contentID, blocks.NewDocument())
	s.Require().NoError(s.editors.MarkReady(inst.ID, 7))
	return inst
}

const docJSON = `{"time":1,"blocks":[{"type":"paragraph","data":{"text":"Hello"}}]}`

func (s *HandlerSuite) TestPublicList() {
	s.Run("lists every post", func() {
		w := s.get("/content")
		s.Equal(http.StatusOK, w.Code)
		for _, title := range []string{"Go concurrency", "Baking bread", "async rust"} {
			s.Contains(w.Body.String(), title)
		}
	})

	s.Run("search narrows the list", func() {
		body := s.get("/content?q=bread").Body.String()
		s.Contains(body, "Baking bread")
		s.NotContains(body, "Go concurrency")
	})

	s.Run("backend outage shows a message", func() {
		s.backend.listErr = dErrors.New(dErrors.CodeUnavailable, "dial tcp: refused")
		w := s.get("/content")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), "The server could not be reached")
		s.NotContains(w.Body.String(), "dial tcp")
		s.backend.listErr = nil
	})
}

func (s *HandlerSuite) TestRejectedTokenLogsOut() {
	s.backend.listErr = dErrors.New(dErrors.CodeUnauthorized, "jwt expired")

	w := s.get("/dashboard/content")

	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(web.ExpiredLoginURL, w.Header().Get("Location"))
	s.True(s.persister.Stored.IsZero())
}

func (s *HandlerSuite) TestDetail() {
	s.Run("renders blocks", func() {
		w := s.get("/content/1")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), "Share memory by communicating.")
		s.Contains(w.Body.String(), "/editor/edit/1")
	})

	s.Run("other authors cannot edit", func() {
		s.NotContains(s.get("/content/2").Body.String(), "/editor/edit/2")
	})

	s.Run("legacy text falls back", func() {
		s.Contains(s.get("/content/3").Body.String(), `<div class="whitespace-pre-wrap">legacy plain text</div>`)
	})

	s.Run("missing post", func() {
		s.Equal(http.StatusNotFound, s.get("/content/99").Code)
	})

	s.Run("bad id", func() {
		s.Equal(http.StatusNotFound, s.get("/content/abc").Code)
	})
}

func (s *HandlerSuite) TestNewEditorAcquiresInstance() {
	w := s.get("/editor/new")

	s.Equal(http.StatusOK, w.Code)
	s.Equal(1, s.editors.Len())
	s.Contains(w.Body.String(), blocks.DefaultPlaceholder)
}

func (s *HandlerSuite) TestEditForbiddenForOtherAuthors() {
	w := s.get("/editor/edit/2")
	s.Equal(http.StatusForbidden, w.Code)
	s.Zero(s.editors.Len())
}

func (s *HandlerSuite) TestEditOpensStoredDocument() {
	w := s.get("/editor/edit/1")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `value="Go concurrency"`)
	s.Equal(1, s.editors.Len())
}

func (s *HandlerSuite) TestSaveCreatesPost() {
	inst := s.readyEditor(0)

	w := s.postMultipart("/editor/"+inst.ID+"/save", map[string]string{
		"title":   "Fresh post",
		"excerpt": "Short",
		"data":    docJSON,
	}, []byte("PNG"))

	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(dashboardContentPath, w.Header().Get("Location"))
	s.Equal(1, s.backend.callCount("create"))
	s.Equal("Fresh post", s.backend.lastSent.Title)
	s.JSONEq(docJSON, s.backend.lastSent.Data)
	s.Equal("PNG", s.backend.image)
	s.Zero(s.editors.Len())
}

func (s *HandlerSuite) TestDoubleSubmitCreatesOnePost() {
	inst := s.readyEditor(0)
	reqs := make([]*http.Request, 2)
	for i := range reqs {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		s.Require().NoError(mw.WriteField("title", "Twice"))
		s.Require().NoError(mw.WriteField("data", docJSON))
		s.Require().NoError(mw.Close())
		reqs[i] = httptest.NewRequest(http.MethodPost, "/editor/"+inst.ID+"/save", &buf)
		reqs[i].Header.Set("Content-Type", mw.FormDataContentType())
	}

	codes := make([]int, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *http.Request) {
			defer wg.Done()
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i, req)
	}
	wg.Wait()

	s.Equal(1, s.backend.callCount("create"))
	s.ElementsMatch([]int{http.StatusSeeOther, http.StatusNotFound}, codes)
}

func (s *HandlerSuite) TestSaveUpdatesExistingPost() {
	inst := s.readyEditor(1)

	w := s.postMultipart("/editor/"+inst.ID+"/save", map[string]string{
		"title":  "Go concurrency, revised",
		"data":   docJSON,
		"return": "/content/1",
	}, nil)

	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal("/content/1", w.Header().Get("Location"))
	s.Equal(1, s.backend.callCount("update"))
	s.Nil(s.backend.lastSent.Image)
}

func (s *HandlerSuite) TestSaveRefusedWhileLoading() {
	inst := s.editors.Acquire(7, 0, blocks.NewDocument())

	w := s.postMultipart("/editor/"+inst.ID+"/save", map[string]string{"title": "x", "data": docJSON}, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "still loading")
	s.Zero(s.backend.callCount("create"))
	s.Equal(1, s.editors.Len())
}

func (s *HandlerSuite) TestSaveRequiresTitle() {
	inst := s.readyEditor(0)

	w := s.postMultipart("/editor/"+inst.ID+"/save", map[string]string{"title": " ", "data": docJSON}, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "Please enter a title for your post")
	s.Zero(s.backend.callCount("create"))
	s.Equal(1, s.editors.Len())
}

func (s *HandlerSuite) TestSaveRejectsUnreadableDocument() {
	inst := s.readyEditor(0)

	w := s.postMultipart("/editor/"+inst.ID+"/save", map[string]string{"title": "x", "data": "{nope"}, nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "could not be read")
}

func (s *HandlerSuite) TestSaveWithRejectedToken() {
	inst := s.readyEditor(0)
	s.backend.writeErr = dErrors.New(dErrors.CodeUnauthorized, "expired")

	w := s.postMultipart("/editor/"+inst.ID+"/save", map[string]string{"title": "x", "data": docJSON}, nil)

	s.Equal(http.StatusSeeOther, w.Code)
	s.Equal(web.ExpiredLoginURL, w.Header().Get("Location"))
}

func (s *HandlerSuite) TestSaveUnknownEditor() {
	w := s.postMultipart("/editor/missing/save", map[string]string{"title": "x", "data": docJSON}, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestDelete() {
	s.Run("confirmation page", func() {
		w := s.get("/content/1/delete")
		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), "Go concurrency")
	})

	s.Run("unconfirmed", func() {
		w := s.postForm("/content/1/delete", url.Values{"title": {"Go concurrency"}})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "Please confirm")
		s.Zero(s.backend.callCount("delete"))
	})

	s.Run("confirmed", func() {
		w := s.postForm("/content/1/delete", url.Values{"confirm": {"yes"}})
		s.Equal(http.StatusSeeOther, w.Code)
		s.Equal(dashboardContentPath, w.Header().Get("Location"))
		s.Equal(1, s.backend.callCount("delete"))
	})

	s.Run("backend refusal is shown", func() {
		s.backend.writeErr = dErrors.New(dErrors.CodeForbidden, "You cannot delete this content")
		w := s.postForm("/content/2/delete", url.Values{"confirm": {"yes"}})
		s.Equal(http.StatusForbidden, w.Code)
		s.Contains(w.Body.String(), "You cannot delete this content")
	})
}

func (s *HandlerSuite) TestManageLists() {
	s.Run("mine", func() {
		body := s.get("/dashboard/content").Body.String()
		s.Contains(body, "My posts")
		s.Contains(body, "Go concurrency")
		s.NotContains(body, "Baking bread")
	})

	s.Run("admin sees every author", func() {
		body := s.get("/admin/content").Body.String()
		s.Contains(body, "Content management")
		s.Contains(body, "Baking bread")
		s.Contains(body, "<th class=\"p-3\">Author</th>")
	})
}
