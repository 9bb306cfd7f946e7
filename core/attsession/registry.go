package attsession

import "sync"

// registry is the sole owner of live Session objects, keyed by session ID.
// Lock ordering: the registry lock may be taken before a session's mu, never
// the other way around — no method of Service calls back into the registry
// while holding a session's mu.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

func (r *registry) get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// add inserts sess, deactivating and dropping any other active session
// belonging to the same teacher (last writer wins).
func (r *registry) add(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, other := range r.sessions {
		if other.TeacherID != sess.TeacherID {
			continue
		}
		other.mu.Lock()
		other.active = false
		other.mu.Unlock()
		delete(r.sessions, id)
	}
	r.sessions[sess.ID] = sess
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// len reports the number of live sessions; test helper.
func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
