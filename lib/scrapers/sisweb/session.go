package sisweb

import (
	"sync"
	"time"

	"github.com/mazen160/go-random"
)

// Session is one authenticated CAS login. It only lives in memory,
// a process restart invalidates every outstanding id.
type Session struct {
	Id        string
	Username  string
	Cookies   string
	GradesUrl string
	CreatedAt time.Time
}

// SessionRegistry maps opaque session ids to accumulated login state.
// Entries are only ever removed by the periodic sweep, there is no
// logout. Unbounded growth between sweeps is fine at single-digit
// concurrent users.
type SessionRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]Session
}

const DefaultSessionTtl = time.Hour

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTtl
	}
	return &SessionRegistry{
		ttl:      ttl,
		sessions: map[string]Session{},
	}
}

// Create stores the session under a fresh id and returns it. Ids are
// collision-resistant for the registry's lifetime, they are not
// security tokens.
func (r *SessionRegistry) Create(session Session) (string, error) {
	id, err := random.String(24)
	if err != nil {
		return "", err
	}
	session.Id = id

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = session
	return id, nil
}

func (r *SessionRegistry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Sweep drops every entry older than the ttl.
func (r *SessionRegistry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if now.Sub(session.CreatedAt) > r.ttl {
			delete(r.sessions, id)
		}
	}
}
