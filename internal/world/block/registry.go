package block

import (
	"fmt"
	"sort"
	"sync"
)

// Material представляет категорию блока стены, к которой крепится флаг
type Material uint16

// Категории материалов стены
const (
	MaterialSolid Material = iota // 0 - полный блок
	MaterialFence                 // 1 - забор
	MaterialWall                  // 2 - каменная ограда
	MaterialPane                  // 3 - стеклянная панель, решетка
	MaterialSlab                  // 4 - плита
)

var materialNames = map[Material]string{
	MaterialSolid: "solid",
	MaterialFence: "fence",
	MaterialWall:  "wall",
	MaterialPane:  "pane",
	MaterialSlab:  "slab",
}

// String возвращает имя материала, используемое в конфиге
func (m Material) String() string {
	if name, ok := materialNames[m]; ok {
		return name
	}
	return fmt.Sprintf("material(%d)", uint16(m))
}

// ParseMaterial находит материал по имени из конфига
func ParseMaterial(name string) (Material, bool) {
	for m, n := range materialNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// defaultClearance - отступ панели от центра блока-якоря в сторону стены.
// Чем тоньше стена, тем ближе к центру должна висеть панель.
var defaultClearance = map[Material]float32{
	MaterialSolid: 0.43,
	MaterialFence: 0.07,
	MaterialWall:  0.18,
	MaterialPane:  0.03,
	MaterialSlab:  0.43,
}

// ClearanceTable хранит отступ от стены для каждого материала
type ClearanceTable struct {
	mu      sync.RWMutex
	offsets map[Material]float32
}

// NewClearanceTable создает таблицу со значениями по умолчанию
func NewClearanceTable() *ClearanceTable {
	offsets := make(map[Material]float32, len(defaultClearance))
	for m, o := range defaultClearance {
		offsets[m] = o
	}
	return &ClearanceTable{offsets: offsets}
}

// Register задает отступ для материала
func (t *ClearanceTable) Register(m Material, offset float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offsets[m] = offset
}

// ApplyOverrides применяет значения из конфига (имя материала -> отступ)
func (t *ClearanceTable) ApplyOverrides(overrides map[string]float32) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m, ok := ParseMaterial(name)
		if !ok {
			return fmt.Errorf("неизвестный материал стены %q", name)
		}
		t.Register(m, overrides[name])
	}
	return nil
}

// Offset возвращает отступ для материала; неизвестные материалы считаются полным блоком
func (t *ClearanceTable) Offset(m Material) float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if o, ok := t.offsets[m]; ok {
		return o
	}
	return t.offsets[MaterialSolid]
}
