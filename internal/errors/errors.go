package errors

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// RouteError pairs a route with its most recent build failure.
type RouteError struct {
	Route     string
	Err       *TabiError
	Timestamp time.Time
}

// Collector tracks the most recent build failure per route. The dev
// server records failures here so the routes index can show which pages
// are broken; a successful build clears the route's entry.
type Collector struct {
	mu      sync.RWMutex
	byRoute map[string]RouteError
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		byRoute: make(map[string]RouteError),
	}
}

// Record stores err as the latest failure for route, replacing any
// previous entry. Plain errors are wrapped so every entry carries the
// structured fields.
func (c *Collector) Record(route string, err error) {
	if err == nil {
		return
	}

	var te *TabiError
	if !errors.As(err, &te) {
		te = WrapInternal(err, ErrCodeInternalError, "unclassified build failure")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRoute[route] = RouteError{
		Route:     route,
		Err:       te,
		Timestamp: time.Now(),
	}
}

// Clear removes the failure entry for route, typically after a
// successful rebuild.
func (c *Collector) Clear(route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byRoute, route)
}

// Latest returns the most recent failure for route, if any.
func (c *Collector) Latest(route string) (RouteError, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	re, ok := c.byRoute[route]

	return re, ok
}

// All returns every failing route sorted by route for stable display.
func (c *Collector) All() []RouteError {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]RouteError, 0, len(c.byRoute))
	for _, re := range c.byRoute {
		result = append(result, re)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Route < result[j].Route
	})

	return result
}

// HasErrors reports whether any route is currently failing.
func (c *Collector) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byRoute) > 0
}
