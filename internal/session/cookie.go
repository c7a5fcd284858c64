package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// CookieOptions shape the session cookie for both persisters.
type CookieOptions struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (o CookieOptions) write(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(o.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (o CookieOptions) expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sealer encrypts and authenticates session payloads with NaCl secretbox.
type Sealer struct {
	key [32]byte
}

func NewSealer(key [32]byte) *Sealer {
	return &Sealer{key: key}
}

// Seal returns base64(nonce || box).
func (s *Sealer) Seal(plain []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

var errTampered = errors.New("session cookie failed authentication")

func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode session cookie: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, errTampered
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errTampered
	}
	return plain, nil
}

// CookiePersister keeps the whole session, sealed, in one cookie.
type CookiePersister struct {
	w      http.ResponseWriter
	r      *http.Request
	opts   CookieOptions
	sealer *Sealer
}

func NewCookiePersister(w http.ResponseWriter, r *http.Request, opts CookieOptions, sealer *Sealer) *CookiePersister {
	return &CookiePersister{w: w, r: r, opts: opts, sealer: sealer}
}

func (p *CookiePersister) Load(_ context.Context) (Session, error) {
	c, err := p.r.Cookie(p.opts.Name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	plain, err := p.sealer.Open(c.Value)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrStale, err)
	}
	var s Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return Session{}, fmt.Errorf("%w: unmarshal session: %w", ErrStale, err)
	}
	return s, nil
}

func (p *CookiePersister) Save(_ context.Context, s Session) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	sealed, err := p.sealer.Seal(plain)
	if err != nil {
		return err
	}
	p.opts.write(p.w, sealed)
	return nil
}

func (p *CookiePersister) Clear(_ context.Context) error {
	p.opts.expire(p.w)
	return nil
}
