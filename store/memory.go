/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store persists game sessions and question collections.
package store

import (
	"slices"
	"sync"

	"github.com/Seednode/kakaroto/game"
)

// Memory keeps saved sessions in memory only.
type Memory struct {
	values map[string][]byte
	mu     sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
	}
}

func (m *Memory) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, game.ErrNotFound
	}

	return slices.Clone(v), nil
}

func (m *Memory) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = slices.Clone(data)

	return nil
}
