package store

import (
	"bytes"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// MemoryRepository keeps documents in process. It backs tests and
	// throwaway runs.
	MemoryRepository struct {
		mu          sync.RWMutex
		collections map[string][]memoryDoc
	}

	memoryDoc struct {
		seq       int
		timestamp float64
		raw       []byte
		fields    map[string]interface{}
	}
)

// NewMemoryRepository returns an empty in-process store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		collections: make(map[string][]memoryDoc),
	}
}

// CreateCollections registers empty collections
func (m *MemoryRepository) CreateCollections(names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		if _, ok := m.collections[name]; !ok {
			m.collections[name] = nil
		}
	}
	return nil
}

// Insert assigns doc an identity and appends it to the collection
func (m *MemoryRepository) Insert(collection string, doc Document) error {
	doc.SetID(newID())
	entry, err := encodeMemoryDoc(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry.seq = len(m.collections[collection])
	m.collections[collection] = append(m.collections[collection], entry)
	return nil
}

// ReplaceSingleton swaps the collection contents for doc
func (m *MemoryRepository) ReplaceSingleton(collection string, doc Document) error {
	doc.SetID(newID())
	entry, err := encodeMemoryDoc(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = []memoryDoc{entry}
	return nil
}

// FindOne decodes the oldest document of the collection into result
func (m *MemoryRepository) FindOne(collection string, result interface{}) error {
	m.mu.RLock()
	docs := m.collections[collection]
	if len(docs) == 0 {
		m.mu.RUnlock()
		return ErrNotFound
	}
	raw := docs[0].raw
	m.mu.RUnlock()

	return json.Unmarshal(raw, result)
}

// Recent decodes up to limit documents ordered by timestamp, newest first
func (m *MemoryRepository) Recent(collection string, limit int, result interface{}) error {
	m.mu.RLock()
	docs := make([]memoryDoc, len(m.collections[collection]))
	copy(docs, m.collections[collection])
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].timestamp != docs[j].timestamp {
			return docs[i].timestamp > docs[j].timestamp
		}
		return docs[i].seq > docs[j].seq
	})
	if limit >= 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, doc := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(doc.raw)
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), result)
}

// GroupCount counts documents per string value of field
func (m *MemoryRepository) GroupCount(collection, field string, limit int) ([]GroupCount, error) {
	counts := make(map[string]int)

	m.mu.RLock()
	for _, doc := range m.collections[collection] {
		value, _ := doc.fields[field].(string)
		counts[value]++
	}
	m.mu.RUnlock()

	groups := make([]GroupCount, 0, len(counts))
	for value, count := range counts {
		groups = append(groups, GroupCount{Value: value, Count: count})
	}
	return sortGroups(groups, limit), nil
}

// DeleteBefore drops documents whose timestamp is older than timestamp
func (m *MemoryRepository) DeleteBefore(collection string, timestamp float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	kept := docs[:0]
	for _, doc := range docs {
		if doc.timestamp >= timestamp {
			kept = append(kept, doc)
		}
	}
	removed := len(docs) - len(kept)
	if removed > 0 {
		m.collections[collection] = kept
	}
	return removed, nil
}

// Close is a no-op
func (m *MemoryRepository) Close() {}

func encodeMemoryDoc(doc Document) (memoryDoc, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return memoryDoc{}, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return memoryDoc{}, err
	}

	timestamp, _ := fields["timestamp"].(float64)
	return memoryDoc{
		timestamp: timestamp,
		raw:       raw,
		fields:    fields,
	}, nil
}
