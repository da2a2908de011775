package offline

import (
	"net/http"
	"sort"
	"sync"
	"time"
)

// Entry is one stored response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Storage holds cache generations. Entries are never removed one by one:
// a generation is written in full by Put and dropped wholesale when another
// generation is activated.
type Storage interface {
	// Put replaces the content of generation with entries, atomically.
	Put(generation string, entries map[string]Entry) error
	// Get returns the entry stored for url in generation.
	Get(generation, url string) (Entry, bool, error)
	// Activate marks generation active and deletes every other generation.
	Activate(generation string) error
	// Active returns the active generation, if any.
	Active() (string, bool, error)
	// Keys lists the URLs stored in generation, sorted.
	Keys(generation string) ([]string, error)
	Close() error
}

// memoryStorage keeps generations in process memory.
type memoryStorage struct {
	mu          sync.RWMutex
	generations map[string]map[string]Entry
	active      string
}

// NewMemoryStorage returns a Storage that does not survive the process.
func NewMemoryStorage() Storage {
	return &memoryStorage{generations: make(map[string]map[string]Entry)}
}

func (m *memoryStorage) Put(generation string, entries map[string]Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := make(map[string]Entry, len(entries))
	for k, e := range entries {
		gen[k] = e
	}
	m.generations[generation] = gen
	return nil
}

func (m *memoryStorage) Get(generation, url string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.generations[generation][url]
	return e, ok, nil
}

func (m *memoryStorage) Activate(generation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.generations {
		if name != generation {
			delete(m.generations, name)
		}
	}
	if _, ok := m.generations[generation]; !ok {
		m.generations[generation] = make(map[string]Entry)
	}
	m.active = generation
	return nil
}

func (m *memoryStorage) Active() (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.active != "", nil
}

func (m *memoryStorage) Keys(generation string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.generations[generation]))
	for k := range m.generations[generation] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryStorage) Close() error { return nil }
