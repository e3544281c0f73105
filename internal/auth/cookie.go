package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoCookie is returned when the request carries no sealed cookie.
var ErrNoCookie = errors.New("cookie not present")

// sealedCookie stores one encrypted JSON value in a named cookie.
type sealedCookie struct {
	name   string
	maxAge time.Duration
	secure bool
	sealer *sealer
}

func newSealedCookie(name string, key []byte, maxAge time.Duration, secure bool) (*sealedCookie, error) {
	s, err := newSealer(key)
	if err != nil {
		return nil, err
	}
	return &sealedCookie{name: name, maxAge: maxAge, secure: secure, sealer: s}, nil
}

func (c *sealedCookie) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.secure,
	}
}

func (c *sealedCookie) write(w http.ResponseWriter, v any) error {
	encoded, err := c.sealer.seal(v)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", c.name, err)
	}
	http.SetCookie(w, c.cookie(encoded, int(c.maxAge.Seconds())))
	return nil
}

func (c *sealedCookie) read(r *http.Request, v any) error {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return ErrNoCookie
	}
	if err := c.sealer.open(ck.Value, v); err != nil {
		return fmt.Errorf("opening %s: %w", c.name, err)
	}
	return nil
}

func (c *sealedCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}
