package content

import (
	"context"
	"errors"

	"inkwell/internal/backend"
	dErrors "inkwell/pkg/domain-errors"
)

// Backend is the part of the backend client the content views use.
type Backend interface {
	ListContent(ctx context.Context, token string) ([]backend.Content, error)
	ListMyContent(ctx context.Context, token string) ([]backend.Content, error)
	ListContentByAuthor(ctx context.Context, token string, authorID int) ([]backend.Content, error)
	GetContent(ctx context.Context, token string, id int) (*backend.Content, error)
	CreateContent(ctx context.Context, token string, fields backend.ContentFields) (*backend.Content, error)
	UpdateContent(ctx context.Context, token string, id int, fields backend.ContentFields) (*backend.Content, error)
	DeleteContent(ctx context.Context, token string, id int) error
}

// Recorder counts mutations by operation and outcome.
type Recorder interface {
	IncrementContentMutation(op, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) IncrementContentMutation(string, string) {}

// ErrConfirmationRequired is returned by Delete when the user has not
// confirmed. No request is sent.
var ErrConfirmationRequired = errors.New("delete requires confirmation")

// Filter selects which posts a list shows. The zero value lists everything.
type Filter struct {
	AuthorID int
	Mine     bool
}

// ListView is the state behind one rendering of a content list. It is
// rebuilt per request; nothing is cached between views.
type ListView struct {
	Items  []Item
	Filter Filter
	Err    error

	backend  Backend
	token    string
	recorder Recorder
	loaded   bool
}

func NewListView(b Backend, token string, recorder Recorder) *ListView {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &ListView{Items: []Item{}, backend: b, token: token, recorder: recorder}
}

// Load replaces the items with the backend's answer for filter. On failure
// the list is empty and Err is set, so items from another filter never show.
func (v *ListView) Load(ctx context.Context, filter Filter) error {
	v.Filter = filter
	v.loaded = true

	var (
		list []backend.Content
		err  error
	)
	switch {
	case filter.Mine:
		list, err = v.backend.ListMyContent(ctx, v.token)
	case filter.AuthorID > 0:
		list, err = v.backend.ListContentByAuthor(ctx, v.token, filter.AuthorID)
	default:
		list, err = v.backend.ListContent(ctx, v.token)
	}
	if err != nil {
		v.Items = []Item{}
		v.Err = err
		return err
	}
	v.Items = toItems(list)
	v.Err = nil
	return nil
}

// Create submits a new post and refreshes the list. A failed submit leaves
// the items untouched.
func (v *ListView) Create(ctx context.Context, fields Fields) (*Item, error) {
	if err := fields.Validate(); err != nil {
		v.recorder.IncrementContentMutation("create", "invalid")
		return nil, v.fail(err)
	}
	created, err := v.backend.CreateContent(ctx, v.token, fields.backend())
	if err != nil {
		v.recorder.IncrementContentMutation("create", string(dErrors.CodeOf(err)))
		return nil, v.fail(err)
	}
	v.recorder.IncrementContentMutation("create", "ok")
	v.refresh(ctx)
	if created == nil {
		return nil, nil
	}
	item := Item(*created)
	return &item, nil
}

// Update replaces the fields of post id and refreshes the list.
func (v *ListView) Update(ctx context.Context, id int, fields Fields) (*Item, error) {
	if id <= 0 {
		v.recorder.IncrementContentMutation("update", "invalid")
		return nil, v.fail(dErrors.New(dErrors.CodeValidation, "This post no longer exists"))
	}
	if err := fields.Validate(); err != nil {
		v.recorder.IncrementContentMutation("update", "invalid")
		return nil, v.fail(err)
	}
	updated, err := v.backend.UpdateContent(ctx, v.token, id, fields.backend())
	if err != nil {
		v.recorder.IncrementContentMutation("update", string(dErrors.CodeOf(err)))
		return nil, v.fail(err)
	}
	v.recorder.IncrementContentMutation("update", "ok")
	v.refresh(ctx)
	if updated == nil {
		return nil, nil
	}
	item := Item(*updated)
	return &item, nil
}

// Delete removes post id once the user confirmed. The item leaves the local
// list only after the backend accepted the delete.
func (v *ListView) Delete(ctx context.Context, id int, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := v.backend.DeleteContent(ctx, v.token, id); err != nil {
		v.recorder.IncrementContentMutation("delete", string(dErrors.CodeOf(err)))
		return v.fail(err)
	}
	v.recorder.IncrementContentMutation("delete", "ok")
	kept := v.Items[:0:0]
	for _, it := range v.Items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	v.Items = kept
	v.Err = nil
	return nil
}

func (v *ListView) fail(err error) error {
	v.Err = err
	return err
}

// refresh reloads after a successful mutation. A view that was never loaded
// has nothing to refresh; handlers that redirect to a list page rely on that
// page's own fetch. A failed reload shows as Err but does not undo the
// mutation.
func (v *ListView) refresh(ctx context.Context) {
	if !v.loaded {
		return
	}
	_ = v.Load(ctx, v.Filter)
}
