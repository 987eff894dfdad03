package store

import (
	"context"
	"sync"
)

// Memory is an in-process Collection. List returns documents in insertion
// order; overwriting a key keeps its position. The zero value is ready to use.
type Memory struct {
	mu    sync.Mutex
	order []string
	docs  map[string]Document
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]Document{}}
}

func (m *Memory) Get(_ context.Context, key string) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	return doc, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, doc Document) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = map[string]Document{}
	}
	if _, ok := m.docs[key]; !ok {
		m.order = append(m.order, key)
	}
	m.docs[key] = doc
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[key]; !ok {
		return nil
	}
	delete(m.docs, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, Entry{Key: k, Document: m.docs[k]})
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
