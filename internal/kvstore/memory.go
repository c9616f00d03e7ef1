package kvstore

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory KVStore used by tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	codec Codec
}

func NewMemoryStore(codec Codec) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		codec: codec,
	}
}

func (m *MemoryStore) GetName() string {
	return "memory"
}

func (m *MemoryStore) Set(k string, v string) error {
	if k == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = []byte(v)
	return nil
}

func (m *MemoryStore) Get(k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[k]
	if !ok {
		return "", ErrKeyNotFound
	}
	return string(v), nil
}

func (m *MemoryStore) SetAny(k string, v any) error {
	if err := checkKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := m.codec.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = data
	return nil
}

func (m *MemoryStore) GetAny(k string, v any) (bool, error) {
	if err := checkKeyAndValue(k, v); err != nil {
		return false, err
	}
	m.mu.RLock()
	data, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, m.codec.Unmarshal(data, v)
}

func (m *MemoryStore) List(prefix string) ([]*KVPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := make([]*KVPair, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(m.data[k]))
		copy(v, m.data[k])
		result = append(result, &KVPair{Key: k, Value: v})
	}
	return result, nil
}

func (m *MemoryStore) LastUnderPrefix(prefix string) (*KVPair, bool, error) {
	kvs, err := m.List(prefix)
	if err != nil {
		return nil, false, err
	}
	if len(kvs) == 0 {
		return nil, false, nil
	}
	return kvs[len(kvs)-1], true, nil
}

func (m *MemoryStore) Delete(k string) error {
	if k == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
