package world

import (
	"errors"

	"github.com/formiko/flagsh/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ErrEntityNotFound возвращается, когда хост не содержит сущность с таким ID
var ErrEntityNotFound = errors.New("entity not found")

// EntityKind определяет тип сущности хоста
type EntityKind uint16

const (
	EntityKindUnknown     EntityKind = 0
	EntityKindItemDisplay EntityKind = 1 // Плоский дисплей предмета, лицевая сторона флага
	EntityKindInteraction EntityKind = 2 // Невидимый хитбокс
	EntityKindItem        EntityKind = 3 // Выброшенный предмет
)

// String возвращает имя типа сущности
func (k EntityKind) String() string {
	switch k {
	case EntityKindItemDisplay:
		return "item_display"
	case EntityKindInteraction:
		return "interaction"
	case EntityKindItem:
		return "item"
	default:
		return "unknown"
	}
}

// Location - точка в конкретном мире
type Location struct {
	World uuid.UUID
	Pos   vec.Vec3Float
}

// NewLocation создает точку в мире
func NewLocation(world uuid.UUID, x, y, z float64) Location {
	return Location{World: world, Pos: vec.Vec3Float{X: x, Y: y, Z: z}}
}

// Sound - идентификатор звука хоста
type Sound string

const (
	SoundWoolPlace Sound = "block.wool.place"
	SoundWoodBreak Sound = "block.wood.break"
)

// EntityAPI предоставляет доступ к сущностям мира хоста.
// Хост владеет временем жизни сущностей, вызывающий хранит только ID.
type EntityAPI interface {
	// SpawnEntity создает сущность и возвращает ее ID
	SpawnEntity(kind EntityKind, loc Location) (uuid.UUID, error)

	// DespawnEntity удаляет сущность; ErrEntityNotFound если ее уже нет
	DespawnEntity(id uuid.UUID) error

	// SetRotation задает yaw и pitch сущности в градусах
	SetRotation(id uuid.UUID, yaw, pitch float32) error

	// SetTransformation задает матрицу трансформации дисплея
	SetTransformation(id uuid.UUID, m mgl32.Mat4) error

	// SetItem задает предмет (текстуру) дисплея
	SetItem(id uuid.UUID, item ItemStack) error

	// Item возвращает предмет дисплея
	Item(id uuid.UUID) (ItemStack, error)

	// SetInteractionBounds задает размеры хитбокса
	SetInteractionBounds(id uuid.UUID, width, height float32) error

	// SetResponsive включает отклик хитбокса на клики
	SetResponsive(id uuid.UUID, responsive bool) error

	// SetPersistent сохраняет сущность при выгрузке чанка
	SetPersistent(id uuid.UUID, persistent bool) error

	// DropItem выбрасывает стак предметов в мир
	DropItem(loc Location, item ItemStack) error

	// PlaySound проигрывает звук категории блоков
	PlaySound(loc Location, sound Sound) error
}
