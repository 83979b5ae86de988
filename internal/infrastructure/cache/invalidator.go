package cache

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/eelco2k/tenancy/internal/repositories/postgres"
	"github.com/lib/pq"
)

// TenantSetCache is the part of the target enumerator the invalidator
// talks to.
type TenantSetCache interface {
	// Invalidate drops the cached tenant set for one resource.
	Invalidate(globalID string)

	// InvalidateAll drops every cached tenant set.
	InvalidateAll()
}

// Invalidator keeps cached tenant sets honest across instances. It uses
// PostgreSQL LISTEN/NOTIFY: every attach/detach broadcasts the affected
// global identifier, and each instance drops its cached set on receipt.
// Losing a notification is tolerable because the cache TTL bounds
// staleness.
type Invalidator struct {
	mu       sync.Mutex
	cache    TenantSetCache
	connStr  string
	listener *pq.Listener
	stopCh   chan struct{}
	stopped  bool
}

// NewInvalidator creates an invalidator for the given central connection
// string.
func NewInvalidator(connStr string, cache TenantSetCache) *Invalidator {
	return &Invalidator{
		cache:   cache,
		connStr: connStr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins listening for mapping changes.
func (i *Invalidator) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// The TTL fallback covers missed notifications.
			log.Printf("mapping invalidator listener error: %v", err)
		}
	}

	i.listener = pq.NewListener(i.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := i.listener.Listen(postgres.MappingChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", postgres.MappingChannel, err)
	}

	go i.handleNotifications()
	return nil
}

// Stop stops the invalidator and cleans up resources.
func (i *Invalidator) Stop() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	close(i.stopCh)
	i.mu.Unlock()

	if i.listener != nil {
		return i.listener.Close()
	}
	return nil
}

// handleNotifications processes incoming NOTIFY events.
func (i *Invalidator) handleNotifications() {
	for {
		select {
		case <-i.stopCh:
			return
		case n, ok := <-i.listener.Notify:
			if !ok {
				return
			}
			// A nil notification signals a reconnect; anything may have
			// changed while the connection was down.
			if n == nil {
				i.cache.InvalidateAll()
				continue
			}
			if n.Extra == "" {
				i.cache.InvalidateAll()
				continue
			}
			i.cache.Invalidate(n.Extra)
		}
	}
}
