package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	profileCookie = "reading-adventure"
	profileKey    = "profile_id"
)

// ProfileResolver identifies the reader through a signed cookie, minting a new
// profile id on first visit. There are no accounts; the cookie is the profile.
type ProfileResolver struct {
	store *sessions.CookieStore
}

func NewProfileResolver(secret []byte) *ProfileResolver {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &ProfileResolver{store: store}
}

// Resolve returns the profile id for the request, setting the cookie when it is new.
func (p *ProfileResolver) Resolve(w http.ResponseWriter, r *http.Request) (string, error) {
	// A tampered or stale cookie yields a fresh session rather than an error.
	session, _ := p.store.Get(r, profileCookie)
	if id, ok := session.Values[profileKey].(string); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	session.Values[profileKey] = id
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

// Lookup returns the profile id without creating one.
func (p *ProfileResolver) Lookup(r *http.Request) (string, bool) {
	session, err := p.store.Get(r, profileCookie)
	if err != nil {
		return "", false
	}
	id, ok := session.Values[profileKey].(string)
	return id, ok && id != ""
}
