package content

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/blocks"
	"inkwell/internal/editor"
	"inkwell/internal/guard"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/platform/httputil"
	psync "inkwell/pkg/platform/sync"
	"inkwell/pkg/requestcontext"
)

const (
	dashboardContentPath = "/dashboard/content"
	adminContentPath     = "/admin/content"
)

type Handler struct {
	backend        Backend
	editors        *editor.Manager
	renderer       *web.Renderer
	recorder       Recorder
	logger         *slog.Logger
	maxUploadBytes int64
	// saves holds one lock per editor instance so a double submit cannot
	// create the same post twice.
	saves *psync.ShardedMutex
}

func NewHandler(b Backend, editors *editor.Manager, renderer *web.Renderer, recorder Recorder, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		backend:        b,
		editors:        editors,
		renderer:       renderer,
		recorder:       recorder,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		saves:          psync.NewShardedMutex(),
	}
}

// RegisterPublic mounts the pages anyone may see.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/content", h.handleList)
	r.Get("/content/{contentID}", h.handleDetail)
}

// RegisterAuthenticated mounts the author's pages.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get(dashboardContentPath, h.handleMine)
	r.Get("/editor/new", h.handleNew)
	r.Get("/editor/edit/{contentID}", h.handleEdit)
	r.Post("/editor/{editorID}/save", h.handleSave)
	r.Get("/content/{contentID}/delete", h.handleConfirmDelete)
	r.Post("/content/{contentID}/delete", h.handleDelete)
}

// RegisterAdmin mounts content management for administrators.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get(adminContentPath, h.handleAdminList)
}

func (h *Handler) view(r *http.Request) *ListView {
	return NewListView(h.backend, session.FromContext(r.Context()).Token(), h.recorder)
}

func statusFor(err error) int {
	return httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err))
}

func contentID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "contentID"))
	return id, err == nil && id > 0
}

// returnTo is where a finished edit or delete goes back to.
func returnTo(r *http.Request) string {
	fallback := dashboardContentPath
	if session.FromContext(r.Context()).IsAdmin() {
		fallback = adminContentPath
	}
	if v := r.FormValue("return"); v != "" {
		return guard.SafeNext(v, fallback)
	}
	return fallback
}

type listPage struct {
	Items   []Item
	Query   Query
	Authors []string
	Sorts   []string
	Error   string
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := Query{
		Search: r.URL.Query().Get("q"),
		Author: r.URL.Query().Get("author"),
		Sort:   r.URL.Query().Get("sort"),
	}.Normalize()

	filter := Filter{}
	if id, err := strconv.Atoi(r.URL.Query().Get("authorId")); err == nil && id > 0 {
		filter.AuthorID = id
	}

	v := h.view(r)
	if err := v.Load(ctx, filter); err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "content list failed", "error", err, "request_id", requestcontext.RequestID(ctx))
	}

	h.renderer.Render(w, r, http.StatusOK, "content_list", "Content", listPage{
		Items:   Apply(v.Items, q),
		Query:   q,
		Authors: Authors(v.Items),
		Sorts:   []string{SortNewest, SortOldest, SortAlphabetical},
		Error:   dErrors.UserMessage(v.Err),
	})
}

type detailPage struct {
	Item    Item
	CanEdit bool
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "content_detail", item.Title, detailPage{
		Item:    item,
		CanEdit: canEdit(r, item),
	})
}

func canEdit(r *http.Request, item Item) bool {
	store := session.FromContext(r.Context())
	u := store.User()
	return u != nil && (u.Admin || item.OwnedBy(u.ID))
}

// load fetches the post named in the path and writes an error page when that
// fails.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Item, bool) {
	ctx := r.Context()
	id, ok := contentID(r)
	if !ok {
		h.renderer.NotFound(w, r)
		return Item{}, false
	}
	c, err := h.backend.GetContent(ctx, session.FromContext(ctx).Token(), id)
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return Item{}, false
		}
		h.logger.WarnContext(ctx, "content load failed", "content_id", id, "error", err, "request_id", requestcontext.RequestID(ctx))
		h.renderer.ErrorPage(w, r, statusFor(err), dErrors.UserMessage(err))
		return Item{}, false
	}
	return Item(*c), true
}

type managePage struct {
	Heading    string
	Items      []Item
	Query      Query
	ShowAuthor bool
	ReturnTo   string
	Error      string
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	h.renderManage(w, r, Filter{Mine: true}, managePage{Heading: "My posts", ReturnTo: dashboardContentPath})
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	h.renderManage(w, r, Filter{}, managePage{Heading: "Content management", ShowAuthor: true, ReturnTo: adminContentPath})
}

func (h *Handler) renderManage(w http.ResponseWriter, r *http.Request, filter Filter, page managePage) {
	ctx := r.Context()
	v := h.view(r)
	if err := v.Load(ctx, filter); err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "content list failed", "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	page.Query = Query{Search: r.URL.Query().Get("q"), Sort: r.URL.Query().Get("sort")}.Normalize()
	page.Items = Apply(v.Items, page.Query)
	page.Error = dErrors.UserMessage(v.Err)
	h.renderer.Render(w, r, http.StatusOK, "content_manage", page.Heading, page)
}

type editorPage struct {
	EditorID  string
	ContentID int
	Document  blocks.Document
	Image     string
	ReturnTo  string
	Form      *web.FormState
}

func (h *Handler) handleNew(w http.ResponseWriter, r *http.Request) {
	u := session.FromContext(r.Context()).User()
	if u == nil {
		web.SeeOther(w, r, guard.LoginURL(r.URL.RequestURI()))
		return
	}
	inst := h.editors.Acquire(u.ID, 0, blocks.NewDocument())
	h.renderer.Render(w, r, http.StatusOK, "editor", "New post", editorPage{
		EditorID: inst.ID,
		Document: inst.Document,
		ReturnTo: returnTo(r),
		Form:     web.NewFormState(),
	})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	u := session.FromContext(r.Context()).User()
	if u == nil {
		web.SeeOther(w, r, guard.LoginURL(r.URL.RequestURI()))
		return
	}
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	if !canEdit(r, item) {
		h.renderer.ErrorPage(w, r, http.StatusForbidden, "You can only edit your own posts.")
		return
	}

	inst := h.editors.Acquire(u.ID, item.ID, documentFor(item))
	form := web.NewFormState()
	form.Values["title"] = item.Title
	form.Values["excerpt"] = item.Excerpt
	h.renderer.Render(w, r, http.StatusOK, "editor", "Edit post", editorPage{
		EditorID:  inst.ID,
		ContentID: item.ID,
		Document:  inst.Document,
		Image:     item.Image,
		ReturnTo:  returnTo(r),
		Form:      form,
	})
}

// documentFor opens stored content in the editor. Text that predates the
// block format becomes a single paragraph.
func documentFor(item Item) blocks.Document {
	parsed := blocks.Deserialize(item.Data)
	if parsed.Document != nil {
		return *parsed.Document
	}
	b, err := blocks.NewBlock(blocks.TypeParagraph, blocks.ParagraphData{Text: parsed.Fallback})
	if err != nil {
		return blocks.NewDocument()
	}
	return blocks.Document{Blocks: []blocks.Block{b}}
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	u := session.FromContext(ctx).User()
	if u == nil {
		web.SeeOther(w, r, guard.LoginURL(dashboardContentPath))
		return
	}

	editorID := chi.URLParam(r, "editorID")
	h.saves.Lock(editorID)
	defer h.saves.Unlock(editorID)

	// A save that waited on the lock finds the instance released.
	inst, err := h.editors.Get(editorID, u.ID)
	if err != nil {
		h.renderer.ErrorPage(w, r, http.StatusNotFound, dErrors.UserMessage(err))
		return
	}

	form := web.NewFormState()
	page := editorPage{EditorID: inst.ID, ContentID: inst.ContentID, Document: inst.Document, Form: form}
	fail := func(err error) {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.InfoContext(ctx, "content save rejected", "editor_id", inst.ID, "error", err, "request_id", requestID)
		page.ReturnTo = returnTo(r)
		form.Fail(err)
		h.renderer.Render(w, r, statusFor(err), "editor", "Edit post", page)
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		fail(dErrors.New(dErrors.CodeValidation, "The upload is too large or unreadable"))
		return
	}
	form.Keep(r, "title", "excerpt")

	var doc blocks.Document
	if err := json.Unmarshal([]byte(r.PostFormValue("data")), &doc); err != nil {
		fail(dErrors.New(dErrors.CodeValidation, "The post content could not be read. Please try again."))
		return
	}
	page.Document = blocks.Normalize(doc)

	data, err := h.editors.Save(inst.ID, u.ID, doc)
	if err != nil {
		fail(err)
		return
	}

	image, closeImage, err := web.FormUpload(r, "image")
	if err != nil {
		fail(err)
		return
	}
	defer closeImage()

	fields := Fields{
		Title:   r.PostFormValue("title"),
		Excerpt: r.PostFormValue("excerpt"),
		Data:    data,
		Image:   image,
	}
	v := h.view(r)
	if inst.ContentID == 0 {
		_, err = v.Create(ctx, fields)
	} else {
		_, err = v.Update(ctx, inst.ContentID, fields)
	}
	if err != nil {
		fail(err)
		return
	}

	h.editors.Release(inst.ID)
	h.logger.InfoContext(ctx, "content saved", "content_id", inst.ContentID, "user_id", u.ID, "request_id", requestID)
	if inst.ContentID == 0 {
		web.SetFlash(w, r, web.FlashSuccess, "Your post has been published.")
	} else {
		web.SetFlash(w, r, web.FlashSuccess, "Your post has been updated.")
	}
	web.SeeOther(w, r, returnTo(r))
}

type deletePage struct {
	Item     Item
	ReturnTo string
	Error    string
}

func (h *Handler) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	if !canEdit(r, item) {
		h.renderer.ErrorPage(w, r, http.StatusForbidden, "You can only delete your own posts.")
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "content_delete", "Delete post", deletePage{Item: item, ReturnTo: returnTo(r)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := contentID(r)
	if !ok {
		h.renderer.NotFound(w, r)
		return
	}

	v := h.view(r)
	err := v.Delete(ctx, id, r.PostFormValue("confirm") == "yes")
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "content deleted", "content_id", id, "request_id", requestcontext.RequestID(ctx))
		web.SetFlash(w, r, web.FlashSuccess, "The post has been deleted.")
		web.SeeOther(w, r, returnTo(r))
		return
	case web.RedirectIfUnauthorized(w, r, err, h.logger):
		return
	}

	page := deletePage{Item: Item{ID: id, Title: r.PostFormValue("title")}, ReturnTo: returnTo(r)}
	status := statusFor(err)
	if errors.Is(err, ErrConfirmationRequired) {
		page.Error = "Please confirm that you want to delete this post."
		status = http.StatusBadRequest
	} else {
		page.Error = dErrors.UserMessage(err)
	}
	h.renderer.Render(w, r, status, "content_delete", "Delete post", page)
}
