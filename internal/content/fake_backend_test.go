package content

import (
	"context"
	"io"
	"sync"

	"inkwell/internal/backend"
	dErrors "inkwell/pkg/domain-errors"
)

// fakeBackend keeps posts in memory and records what it was asked.
type fakeBackend struct {
	mu       sync.Mutex
	posts    []backend.Content
	nextID   int
	listErr  error
	getErr   error
	writeErr error
	calls    []string
	tokens   []string
	lastSent backend.ContentFields
	image    string
}

func newFakeBackend(posts ...backend.Content) *fakeBackend {
	return &fakeBackend{posts: posts, nextID: 100}
}

func (f *fakeBackend) record(call, token string) {
	f.calls = append(f.calls, call)
	f.tokens = append(f.tokens, token)
}

func (f *fakeBackend) ListContent(_ context.Context, token string) ([]backend.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list", token)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]backend.Content(nil), f.posts...), nil
}

func (f *fakeBackend) ListMyContent(_ context.Context, token string) ([]backend.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("mine", token)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []backend.Content
	for _, p := range f.posts {
		if p.AuthorID == 7 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListContentByAuthor(_ context.Context, token string, authorID int) ([]backend.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("by_author", token)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []backend.Content
	for _, p := range f.posts {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetContent(_ context.Context, token string, id int) (*backend.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get", token)
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, p := range f.posts {
		if p.ID == id {
			c := p
			return &c, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "Content not found")
}

func (f *fakeBackend) capture(fields backend.ContentFields) {
	f.lastSent = fields
	f.image = ""
	if fields.Image != nil {
		data, _ := io.ReadAll(fields.Image.Data)
		f.image = string(data)
	}
}

func (f *fakeBackend) CreateContent(_ context.Context, token string, fields backend.ContentFields) (*backend.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create", token)
	f.capture(fields)
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.nextID++
	c := backend.Content{ID: f.nextID, Title: fields.Title, Excerpt: fields.Excerpt, Data: fields.Data, AuthorID: 7, Author: "alice"}
	f.posts = append(f.posts, c)
	return &c, nil
}

func (f *fakeBackend) UpdateContent(_ context.Context, token string, id int, fields backend.ContentFields) (*backend.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update", token)
	f.capture(fields)
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts[i].Title = fields.Title
			f.posts[i].Excerpt = fields.Excerpt
			f.posts[i].Data = fields.Data
			c := f.posts[i]
			return &c, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "Content not found")
}

func (f *fakeBackend) DeleteContent(_ context.Context, token string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete", token)
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "Content not found")
}

func (f *fakeBackend) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: map[string]int{}}
}

func (r *countingRecorder) IncrementContentMutation(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[op+":"+outcome]++
}

func samplePosts() []backend.Content {
	return []backend.Content{
		{ID: 1, Title: "Go concurrency", Excerpt: "Channels and goroutines", Author: "alice", AuthorID: 7, Date: "March 4, 2026",
			Data: `{"blocks":[{"type":"paragraph","data":{"text":"Share memory by communicating."}}]}`},
		{ID: 2, Title: "Baking bread", Author: "bob", AuthorID: 8, Date: "January 15, 2026",
			Data: `{"blocks":[{"type":"paragraph","data":{"text":"Flour, water, salt."}}]}`},
		{ID: 3, Title: "async rust", Excerpt: "Futures explained", Author: "alice", AuthorID: 7, Date: "February 1, 2026", Data: "legacy plain text"},
	}
}
