package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/redis/go-redis/v9"

	"inkwell/pkg/requestcontext"
)

const sessionKeyPrefix = "inkwell:session:"

// record is what RedisPersister stores under a session id.
type record struct {
	Session   Session `json:"session"`
	Device    string  `json:"device,omitempty"`
	CreatedAt int64   `json:"created_at"` // Unix seconds
}

// RedisPersister keeps the session in Redis; the cookie carries only an
// opaque id. Rotate issues a fresh id and drops the previous key; Save keeps
// the id, so requests still carrying the cookie stay signed in.
type RedisPersister struct {
	client redis.Cmdable
	w      http.ResponseWriter
	r      *http.Request
	opts   CookieOptions

	id     string
	loaded bool
}

func NewRedisPersister(client redis.Cmdable, w http.ResponseWriter, r *http.Request, opts CookieOptions) *RedisPersister {
	return &RedisPersister{client: client, w: w, r: r, opts: opts}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// currentID returns the id from the request cookie, or "" if absent or not a uuid.
func (p *RedisPersister) currentID() string {
	if p.loaded {
		return p.id
	}
	p.loaded = true
	c, err := p.r.Cookie(p.opts.Name)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	p.id = c.Value
	return p.id
}

func (p *RedisPersister) Load(ctx context.Context) (Session, error) {
	id := p.currentID()
	if id == "" {
		return Session{}, nil
	}
	data, err := p.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Session{}, fmt.Errorf("%w: unmarshal session: %w", ErrStale, err)
	}
	return rec.Session, nil
}

func (p *RedisPersister) Save(ctx context.Context, s Session) error {
	id := p.currentID()
	if id == "" {
		return p.Rotate(ctx, s)
	}
	data, err := p.encode(ctx, s)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, sessionKey(id), data, p.opts.MaxAge).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	p.opts.write(p.w, id)
	return nil
}

func (p *RedisPersister) Rotate(ctx context.Context, s Session) error {
	data, err := p.encode(ctx, s)
	if err != nil {
		return err
	}

	previous := p.currentID()
	next := uuid.NewString()

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, sessionKey(next), data, p.opts.MaxAge)
	if previous != "" {
		pipe.Del(ctx, sessionKey(previous))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}

	p.id = next
	p.opts.write(p.w, next)
	return nil
}

func (p *RedisPersister) encode(ctx context.Context, s Session) ([]byte, error) {
	data, err := json.Marshal(record{
		Session:   s,
		Device:    DeviceLabel(requestcontext.UserAgent(ctx)),
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func (p *RedisPersister) Clear(ctx context.Context) error {
	p.opts.expire(p.w)
	id := p.currentID()
	p.id = ""
	if id == "" {
		return nil
	}
	if err := p.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// DeviceLabel renders a User-Agent as "Browser on OS", or the platform for
// mobile browsers.
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
