package builder

import "sync"

// sessionPool tracks one bundle session per route. Sessions are created
// on first use and live until the pool is closed.
type sessionPool struct {
	mu       sync.Mutex
	sessions map[string]BundleSession
}

func newSessionPool() *sessionPool {
	return &sessionPool{sessions: make(map[string]BundleSession)}
}

func (p *sessionPool) acquire(route string, create func(string) (BundleSession, error)) (BundleSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[route]; ok {
		return s, nil
	}

	s, err := create(route)
	if err != nil {
		return nil, err
	}
	p.sessions[route] = s

	return s, nil
}

func (p *sessionPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for route, s := range p.sessions {
		s.Close()
		delete(p.sessions, route)
	}
}

func (p *sessionPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sessions)
}
