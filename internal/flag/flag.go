package flag

import (
	"errors"
	"fmt"
	"math"

	"github.com/formiko/flagsh/internal/vec"
	"github.com/formiko/flagsh/internal/world"
	"github.com/formiko/flagsh/internal/world/block"
	"github.com/google/uuid"
)

var (
	// ErrInvalidState - у флага нет (или уже есть) сущностей, нужных операции
	ErrInvalidState = errors.New("flag: invalid state")
	// ErrSpawn - хост не смог создать сущности флага; созданные сущности удалены
	ErrSpawn = errors.New("flag: spawn failed")
)

// Forgetter - реестр, которому принадлежит флаг
type Forgetter interface {
	Forget(f *Flag)
}

// Flag - флаг или баннер на стене. Сущности принадлежат хосту, флаг хранит только их ID.
//
// Методы Flag не синхронизированы: все изменения одного флага должны идти
// из одного потока (см. registry.Registry).
type Flag struct {
	host       world.EntityAPI
	pos        vec.Vec3
	worldID    uuid.UUID
	yaw        int
	wallOffset float32
	variant    Variant
	size       float32

	visuals  []uuid.UUID // 0 или VisualCount
	hitboxes []uuid.UUID // 0 или HitboxCount
}

// New создает флаг по явным координатам. Сущности не создаются до вызова Create.
func New(host world.EntityAPI, pos vec.Vec3, worldID uuid.UUID, variant Variant, yaw int, wallOffset float32) *Flag {
	if !validYaw(yaw) {
		logger.Warn("New: yaw %d is not a cardinal direction, using %d", yaw, YawEast)
		yaw = YawEast
	}
	return &Flag{
		host:       host,
		pos:        pos,
		worldID:    worldID,
		yaw:        yaw,
		wallOffset: wallOffset,
		variant:    variant,
		size:       1,
		visuals:    make([]uuid.UUID, 0, VisualCount),
		hitboxes:   make([]uuid.UUID, 0, HitboxCount),
	}
}

// FromBlocks создает флаг на блоке anchor, висящий на стене behind
func FromBlocks(host world.EntityAPI, anchor block.Block, variant Variant, behind block.Block, clearance *block.ClearanceTable) *Flag {
	return New(host, anchor.Pos, anchor.World, variant, FacingFrom(anchor.Pos, behind.Pos), clearance.Offset(behind.Material))
}

func (f *Flag) Position() vec.Vec3  { return f.pos }
func (f *Flag) World() uuid.UUID    { return f.worldID }
func (f *Flag) Yaw() int            { return f.yaw }
func (f *Flag) WallOffset() float32 { return f.wallOffset }
func (f *Flag) Variant() Variant    { return f.variant }
func (f *Flag) Size() float32       { return f.size }

// Location возвращает угол блока-якоря
func (f *Flag) Location() world.Location {
	return world.Location{World: f.worldID, Pos: f.pos.ToFloat()}
}

// Key возвращает ключ флага в реестре и хранилище
func (f *Flag) Key() string { return Key(f.worldID, f.pos) }

// Key строит ключ флага по миру и позиции якоря
func Key(worldID uuid.UUID, pos vec.Vec3) string {
	return fmt.Sprintf("flag:%s:%s", worldID, pos)
}

// Visuals возвращает копию ID дисплеев
func (f *Flag) Visuals() []uuid.UUID { return append([]uuid.UUID(nil), f.visuals...) }

// Hitboxes возвращает копию ID хитбоксов
func (f *Flag) Hitboxes() []uuid.UUID { return append([]uuid.UUID(nil), f.hitboxes...) }

// Owns сообщает, принадлежит ли сущность флагу
func (f *Flag) Owns(id uuid.UUID) bool {
	for _, v := range f.visuals {
		if v == id {
			return true
		}
	}
	for _, h := range f.hitboxes {
		if h == id {
			return true
		}
	}
	return false
}

// IsCreated сообщает, что сущности флага созданы
func (f *Flag) IsCreated() bool { return len(f.visuals) == VisualCount }

// Item возвращает предмет, которым отрисован флаг
func (f *Flag) Item() (world.ItemStack, error) {
	if len(f.visuals) == 0 {
		return world.ItemStack{}, fmt.Errorf("%w: flag at %s has no display", ErrInvalidState, f.pos)
	}
	item, err := f.host.Item(f.visuals[0])
	if err != nil {
		return world.ItemStack{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return item, nil
}

// Create создает дисплеи и хитбоксы флага с текстурой item.
// Если хост вернет ошибку, все созданные в этом вызове сущности удаляются.
func (f *Flag) Create(item world.ItemStack) error {
	if len(f.visuals) != 0 || len(f.hitboxes) != 0 {
		return fmt.Errorf("%w: flag at %s already has entities", ErrInvalidState, f.pos)
	}

	p := Layout(f.pos, f.yaw, f.wallOffset, f.size)
	s := &spawner{host: f.host, world: f.worldID}

	hitboxes := make([]uuid.UUID, 0, HitboxCount)
	for _, hb := range p.Hitboxes {
		id, err := s.interaction(hb)
		if err != nil {
			return s.rollback(err)
		}
		hitboxes = append(hitboxes, id)
	}

	front, err := s.display(item, p.Front)
	if err != nil {
		return s.rollback(err)
	}
	back, err := s.display(item, p.Back)
	if err != nil {
		return s.rollback(err)
	}

	f.hitboxes = hitboxes
	f.visuals = append(f.visuals[:0], front, back)
	logger.Debug("Flag %s created: size=%.2f yaw=%d", f.Key(), f.size, f.yaw)
	return nil
}

// Extend пересоздает флаг с новым размером и проигрывает звук установки.
// При ошибке возвращает флаг к прежнему размеру.
func (f *Flag) Extend(newSize float32) error {
	item, err := f.Item()
	if err != nil {
		return err
	}

	oldSize := f.size
	f.RemoveEntities()
	f.size = newSize

	if err := f.Create(item); err != nil {
		f.size = oldSize
		if restoreErr := f.Create(item); restoreErr != nil {
			logger.Error("Flag %s: restore at size %.2f failed: %v", f.Key(), oldSize, restoreErr)
		}
		return fmt.Errorf("extend flag %s to %.2f: %w", f.Key(), newSize, err)
	}

	f.playSound(world.SoundWoolPlace)
	return nil
}

// Remove выбрасывает предметы флага, удаляет его сущности и убирает флаг из реестра.
// sizeStep - шаг увеличения размера из конфига, за каждый шаг выпадает еще один предмет.
func (f *Flag) Remove(reg Forgetter, sizeStep float64) error {
	item, err := f.Item()
	if err != nil {
		return err
	}

	drop := item.WithAmount(DropCount(f.size, sizeStep))
	if err := f.host.DropItem(f.Location(), drop); err != nil {
		logger.Error("Flag %s: drop %d x %s failed: %v", f.Key(), drop.Amount, drop.Material, err)
	}

	f.RemoveEntities()
	if reg != nil {
		reg.Forget(f)
	}
	f.playSound(world.SoundWoodBreak)
	return nil
}

// stepTolerance - доля шага, которую может съесть накопленная погрешность float32
// после многих увеличений размера
const stepTolerance = 1e-3

// DropCount возвращает число предметов, выпадающих с флага размера size:
// один за базовый размер и по одному за каждый шаг роста.
func DropCount(size float32, sizeStep float64) int {
	if sizeStep <= 0 {
		return 1
	}
	steps := (float64(size) - 1) / sizeStep
	n := 1 + int(math.Floor(steps+stepTolerance))
	if n < 1 {
		return 1
	}
	return n
}

// RemoveEntities удаляет все сущности флага. Уже удаленные сущности пропускаются.
func (f *Flag) RemoveEntities() {
	for _, id := range f.visuals {
		f.despawn(id)
	}
	for _, id := range f.hitboxes {
		f.despawn(id)
	}
	f.visuals = f.visuals[:0]
	f.hitboxes = f.hitboxes[:0]
}

func (f *Flag) despawn(id uuid.UUID) {
	if err := f.host.DespawnEntity(id); err != nil {
		if errors.Is(err, world.ErrEntityNotFound) {
			logger.Debug("Flag %s: entity %s already removed", f.Key(), id)
			return
		}
		logger.Warn("Flag %s: despawn %s: %v", f.Key(), id, err)
	}
}

func (f *Flag) playSound(sound world.Sound) {
	if err := f.host.PlaySound(f.Location(), sound); err != nil {
		logger.Debug("Flag %s: play %s: %v", f.Key(), sound, err)
	}
}
