package cache

import (
	"strings"
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

type expiringItem[V any] struct {
	value     V
	expiresAt time.Time
}

func (i expiringItem[V]) live(now time.Time) bool {
	return now.Before(i.expiresAt)
}

// expiringMap is a mutex-guarded map whose entries lapse after their TTL.
// A background sweeper drops lapsed entries until Close.
type expiringMap[V any] struct {
	mu        sync.RWMutex
	items     map[string]expiringItem[V]
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExpiringMap[V any](sweepEvery time.Duration) *expiringMap[V] {
	m := &expiringMap[V]{
		items:  make(map[string]expiringItem[V]),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepInterval
	}
	m.wg.Add(1)
	go m.sweepLoop(sweepEvery)
	return m
}

func (m *expiringMap[V]) get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[key]
	if !ok || !it.live(m.now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

func (m *expiringMap[V]) set(key string, v V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = expiringItem[V]{value: v, expiresAt: m.now().Add(ttl)}
}

// setIfAbsent stores v unless a live entry exists and reports whether it stored
func (m *expiringMap[V]) setIfAbsent(key string, v V, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if it, ok := m.items[key]; ok && it.live(now) {
		return false
	}
	m.items[key] = expiringItem[V]{value: v, expiresAt: now.Add(ttl)}
	return true
}

func (m *expiringMap[V]) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *expiringMap[V]) deletePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

func (m *expiringMap[V]) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *expiringMap[V]) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, it := range m.items {
		if !it.live(now) {
			delete(m.items, k)
		}
	}
}

func (m *expiringMap[V]) sweepLoop(every time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *expiringMap[V]) close() {
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}
