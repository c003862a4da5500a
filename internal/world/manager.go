package world

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Entity - состояние сущности внутри Manager
type Entity struct {
	ID         uuid.UUID
	Kind       EntityKind
	Location   Location
	Yaw        float32
	Pitch      float32
	Transform  mgl32.Mat4
	Item       ItemStack
	Width      float32
	Height     float32
	Responsive bool
	Persistent bool
}

// DroppedItem - предмет, выброшенный в мир через DropItem
type DroppedItem struct {
	EntityID uuid.UUID
	Location Location
	Item     ItemStack
}

// PlayedSound - звук, проигранный через PlaySound
type PlayedSound struct {
	Location Location
	Sound    Sound
}

// Manager - хост сущностей в памяти, реализует EntityAPI.
// Используется демо-сервером и тестами вместо игрового движка.
type Manager struct {
	entities map[uuid.UUID]*Entity // Хранилище всех сущностей
	drops    []DroppedItem
	sounds   []PlayedSound
	newID    func() uuid.UUID
	mu       sync.RWMutex
}

// NewManager создаёт пустой хост сущностей
func NewManager() *Manager {
	return &Manager{
		entities: make(map[uuid.UUID]*Entity),
		newID:    uuid.New,
	}
}

// SpawnEntity создаёт новую сущность в мире
func (m *Manager) SpawnEntity(kind EntityKind, loc Location) (uuid.UUID, error) {
	if kind == EntityKindUnknown {
		return uuid.Nil, fmt.Errorf("spawn %s: unsupported entity kind", kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	m.entities[id] = &Entity{
		ID:        id,
		Kind:      kind,
		Location:  loc,
		Transform: mgl32.Ident4(),
	}
	return id, nil
}

// DespawnEntity удаляет сущность из мира
func (m *Manager) DespawnEntity(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[id]; !exists {
		return fmt.Errorf("despawn %s: %w", id, ErrEntityNotFound)
	}
	delete(m.entities, id)
	return nil
}

// SetRotation задает поворот сущности
func (m *Manager) SetRotation(id uuid.UUID, yaw, pitch float32) error {
	return m.update(id, func(e *Entity) {
		e.Yaw = yaw
		e.Pitch = pitch
	})
}

// SetTransformation задает матрицу трансформации
func (m *Manager) SetTransformation(id uuid.UUID, t mgl32.Mat4) error {
	return m.update(id, func(e *Entity) { e.Transform = t })
}

// SetItem задает предмет дисплея
func (m *Manager) SetItem(id uuid.UUID, item ItemStack) error {
	return m.update(id, func(e *Entity) { e.Item = item.Clone() })
}

// Item возвращает предмет дисплея
func (m *Manager) Item(id uuid.UUID) (ItemStack, error) {
	e, ok := m.GetEntity(id)
	if !ok {
		return ItemStack{}, fmt.Errorf("item %s: %w", id, ErrEntityNotFound)
	}
	return e.Item, nil
}

// SetInteractionBounds задает размеры хитбокса
func (m *Manager) SetInteractionBounds(id uuid.UUID, width, height float32) error {
	return m.update(id, func(e *Entity) {
		e.Width = width
		e.Height = height
	})
}

// SetResponsive включает отклик хитбокса
func (m *Manager) SetResponsive(id uuid.UUID, responsive bool) error {
	return m.update(id, func(e *Entity) { e.Responsive = responsive })
}

// SetPersistent помечает сущность как сохраняемую
func (m *Manager) SetPersistent(id uuid.UUID, persistent bool) error {
	return m.update(id, func(e *Entity) { e.Persistent = persistent })
}

// DropItem создает сущность выброшенного предмета
func (m *Manager) DropItem(loc Location, item ItemStack) error {
	if item.IsEmpty() {
		return fmt.Errorf("drop at %v: empty item stack", loc.Pos)
	}

	id, err := m.SpawnEntity(EntityKindItem, loc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[id].Item = item.Clone()
	m.drops = append(m.drops, DroppedItem{EntityID: id, Location: loc, Item: item.Clone()})
	return nil
}

// PlaySound запоминает проигранный звук
func (m *Manager) PlaySound(loc Location, sound Sound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sounds = append(m.sounds, PlayedSound{Location: loc, Sound: sound})
	return nil
}

// GetEntity возвращает копию сущности по ID
func (m *Manager) GetEntity(id uuid.UUID) (Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.entities[id]
	if !exists {
		return Entity{}, false
	}
	return *e, true
}

// Count возвращает число живых сущностей указанного типа
func (m *Manager) Count(kind EntityKind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entities {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Drops возвращает все выброшенные предметы
func (m *Manager) Drops() []DroppedItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DroppedItem(nil), m.drops...)
}

// Sounds возвращает все проигранные звуки
func (m *Manager) Sounds() []PlayedSound {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PlayedSound(nil), m.sounds...)
}

func (m *Manager) update(id uuid.UUID, fn func(e *Entity)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entities[id]
	if !exists {
		return fmt.Errorf("entity %s: %w", id, ErrEntityNotFound)
	}
	fn(e)
	return nil
}
