package query

import (
	"container/list"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// memo is a small LRU of ordered result lists keyed by store version and
// query identity. A new store version makes every older entry unreachable;
// they age out as new entries arrive.
type memo struct {
	mu      sync.Mutex
	cap     int
	order   *list.List
	entries map[uint64]*list.Element
	hits    int
	misses  int
}

type memoEntry struct {
	key      uint64
	version  uint64
	identity string
	ids      []int
}

func newMemo(capacity int) *memo {
	capacity = max(capacity, 0)
	return &memo{
		cap:     capacity,
		order:   list.New(),
		entries: make(map[uint64]*list.Element, capacity),
	}
}

func memoKey(version uint64, identity string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(version, 10))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(identity)
	return d.Sum64()
}

func (m *memo) get(version uint64, identity string) ([]int, bool) {
	if m.cap <= 0 {
		return nil, false
	}
	key := memoKey(version, identity)

	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false
	}
	e := el.Value.(*memoEntry)
	// Hash collisions are possible in principle; compare the real key.
	if e.version != version || e.identity != identity {
		m.misses++
		return nil, false
	}
	m.order.MoveToFront(el)
	m.hits++
	return e.ids, true
}

func (m *memo) put(version uint64, identity string, ids []int) {
	if m.cap <= 0 {
		return
	}
	key := memoKey(version, identity)

	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		el.Value = &memoEntry{key: key, version: version, identity: identity, ids: ids}
		m.order.MoveToFront(el)
		return
	}
	m.entries[key] = m.order.PushFront(&memoEntry{key: key, version: version, identity: identity, ids: ids})
	for m.order.Len() > m.cap {
		last := m.order.Back()
		m.order.Remove(last)
		delete(m.entries, last.Value.(*memoEntry).key)
	}
}

func (m *memo) stats() (hits, misses, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses, m.order.Len()
}
