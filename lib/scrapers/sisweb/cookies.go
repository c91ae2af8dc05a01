package sisweb

import (
	"net/http"
	"strings"
)

// CookieSet accumulates Set-Cookie assignments across the CAS redirect
// chain into a single replayable Cookie header. The login flow crosses
// two hosts (the CAS server and the SIS itself) and both contribute
// cookies, so a plain per-host jar isn't enough, the final grades
// request needs everything merged together.
type CookieSet struct {
	order  []string
	values map[string]string
}

func NewCookieSet() *CookieSet {
	return &CookieSet{values: map[string]string{}}
}

// Absorb merges every Set-Cookie assignment from a response. Later
// assignments for the same name override earlier ones.
func (s *CookieSet) Absorb(header http.Header) {
	for _, raw := range header.Values("Set-Cookie") {
		assignment, _, _ := strings.Cut(raw, ";")
		name, value, found := strings.Cut(assignment, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		if _, seen := s.values[name]; !seen {
			s.order = append(s.order, name)
		}
		s.values[name] = strings.TrimSpace(value)
	}
}

// Header renders the accumulated set as an outgoing Cookie header value.
func (s *CookieSet) Header() string {
	pairs := make([]string, 0, len(s.order))
	for _, name := range s.order {
		pairs = append(pairs, name+"="+s.values[name])
	}
	return strings.Join(pairs, "; ")
}

// cookie names that only show up once CAS has authenticated the
// session: the ticket-granting cookie on the CAS host and the
// application session cookie on the SIS host
var authMarkerNames = []string{
	"TGC",
	"CASTGC",
	"JSESSIONID",
	"SESSION",
	"sessionid",
}

// HasAuthMarker reports whether the accumulated cookies prove a
// successful login. Checking cookie names is how the login driver
// decides success without parsing localized response bodies.
func (s *CookieSet) HasAuthMarker() bool {
	for _, name := range s.order {
		for _, marker := range authMarkerNames {
			if strings.EqualFold(name, marker) && s.values[name] != "" {
				return true
			}
		}
	}
	return false
}
