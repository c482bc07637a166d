package catalog

import (
	"context"
	"sync"
	"time"
)

// Source resolves a service-type name to its work area by consulting the
// three catalog reference sets. It returns store.ErrServiceTypeUnknown
// when the name belongs to none of them.
type Source interface {
	AreaOf(ctx context.Context, name string) (string, error)
}

// Resolver caches Source lookups. The catalog churns on the order of
// hours, so hits are served from memory until the TTL lapses. Misses are
// not cached: a name may be added to the catalog at any time.
type Resolver struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	area    string
	expires time.Time
}

func New(source Source, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Resolver{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (r *Resolver) AreaOf(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	cached, ok := r.entries[name]
	if ok && r.now().Before(cached.expires) {
		r.mu.Unlock()
		return cached.area, nil
	}
	r.mu.Unlock()

	area, err := r.source.AreaOf(ctx, name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.entries[name] = entry{area: area, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return area, nil
}
