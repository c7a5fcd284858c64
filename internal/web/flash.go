package web

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"

	"inkwell/internal/session"
)

const flashCookie = "inkwell_flash"

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a one-shot message carried across a redirect.
type Flash struct {
	Kind    FlashKind `json:"k"`
	Message string    `json:"m"`
}

type flashSealerKey struct{}

// processSealer seals flashes when no shared key is configured. A flash set
// by another instance then reads as absent.
var processSealer = func() *session.Sealer {
	var key [32]byte
	_, _ = rand.Read(key[:])
	return session.NewSealer(key)
}()

// FlashSealer makes every flash in the request sealed under sealer, so any
// instance sharing the key can show it.
func FlashSealer(sealer *session.Sealer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashSealerKey{}, sealer)))
		})
	}
}

func flashSealer(ctx context.Context) *session.Sealer {
	if s, ok := ctx.Value(flashSealerKey{}).(*session.Sealer); ok && s != nil {
		return s
	}
	return processSealer
}

// SetFlash queues a message for the next rendered page. The cookie is sealed
// so a visitor cannot plant text in the banner.
func SetFlash(w http.ResponseWriter, r *http.Request, kind FlashKind, message string) {
	data, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	sealed, err := flashSealer(r.Context()).Seal(data)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    sealed,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})

	data, err := flashSealer(r.Context()).Open(c.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if json.Unmarshal(data, &f) != nil || f.Message == "" {
		return nil
	}
	return &f
}
