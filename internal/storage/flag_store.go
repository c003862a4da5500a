package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/formiko/flagsh/internal/flag"
)

// ErrNotReady возвращается после Close
var ErrNotReady = errors.New("storage: not ready")

// FlagStore определяет интерфейс сохранения флагов между рестартами.
// Ключ записи - flag.State.Key().
type FlagStore interface {
	// Put сохраняет или перезаписывает состояние флага
	Put(ctx context.Context, st flag.State) error

	// Delete удаляет флаг по ключу; отсутствие ключа не является ошибкой
	Delete(ctx context.Context, key string) error

	// List возвращает все сохраненные флаги, отсортированные по ключу
	List(ctx context.Context) ([]flag.State, error)

	// Close закрывает хранилище
	Close() error
}

// MemoryStore - FlagStore в памяти, для тестов и режима без персистентности
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]flag.State
	closed bool
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]flag.State)}
}

func (s *MemoryStore) Put(ctx context.Context, st flag.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotReady
	}
	s.states[st.Key()] = st
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotReady
	}
	delete(s.states, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]flag.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrNotReady
	}

	out := make([]flag.State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	sortStates(out)
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func sortStates(states []flag.State) {
	sort.Slice(states, func(i, j int) bool { return states[i].Key() < states[j].Key() })
}
