package utils

import "sync"

// CMap is a typed wrapper around sync.Map, trimmed to what the engine's
// in-flight task dedup needs.
type CMap[K comparable, V any] struct {
	sm sync.Map
}

func (m *CMap[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	a, l := m.sm.LoadOrStore(key, value)
	return a.(V), l
}

func (m *CMap[K, V]) Delete(key K) {
	m.sm.Delete(key)
}
