package flag

import (
	"fmt"

	"github.com/formiko/flagsh/internal/vec"
	"github.com/formiko/flagsh/internal/world"
	"github.com/google/uuid"
)

// Variant - флаг или баннер; влияет только на выбор предмета, не на геометрию
type Variant uint8

const (
	VariantBanner Variant = iota
	VariantFlag
)

// String возвращает имя варианта
func (v Variant) String() string {
	if v == VariantFlag {
		return "flag"
	}
	return "banner"
}

// MarshalText сериализует вариант как строку
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText разбирает вариант из строки
func (v *Variant) UnmarshalText(text []byte) error {
	switch string(text) {
	case "flag":
		*v = VariantFlag
	case "banner":
		*v = VariantBanner
	default:
		return fmt.Errorf("unknown flag variant %q", text)
	}
	return nil
}

// State - сохраняемое состояние флага
type State struct {
	World      uuid.UUID   `json:"world"`
	Pos        vec.Vec3    `json:"pos"`
	Yaw        int         `json:"yaw"`
	WallOffset float32     `json:"wall_offset"`
	Variant    Variant     `json:"variant"`
	Size       float32     `json:"size"`
	Visuals    []uuid.UUID `json:"visuals"`
	Hitboxes   []uuid.UUID `json:"hitboxes"`
}

// Key возвращает ключ флага
func (s State) Key() string { return Key(s.World, s.Pos) }

// Snapshot возвращает состояние флага для хранилища
func (f *Flag) Snapshot() State {
	return State{
		World:      f.worldID,
		Pos:        f.pos,
		Yaw:        f.yaw,
		WallOffset: f.wallOffset,
		Variant:    f.variant,
		Size:       f.size,
		Visuals:    f.Visuals(),
		Hitboxes:   f.Hitboxes(),
	}
}

// Restore восстанавливает флаг из хранилища. Сущности хоста переживают рестарт,
// поэтому ID берутся как есть. Сущности неполного набора удаляются у хоста.
func Restore(host world.EntityAPI, st State) (*Flag, error) {
	if st.Size <= 0 {
		return nil, fmt.Errorf("restore %s: size %.2f must be positive", st.Key(), st.Size)
	}
	if !validYaw(st.Yaw) {
		return nil, fmt.Errorf("restore %s: invalid yaw %d", st.Key(), st.Yaw)
	}

	f := New(host, st.Pos, st.World, st.Variant, st.Yaw, st.WallOffset)
	f.size = st.Size

	if len(st.Visuals) == VisualCount && len(st.Hitboxes) == HitboxCount {
		f.visuals = append(f.visuals, st.Visuals...)
		f.hitboxes = append(f.hitboxes, st.Hitboxes...)
	} else if len(st.Visuals) != 0 || len(st.Hitboxes) != 0 {
		logger.Warn("restore %s: dropping partial entity set (%d visuals, %d hitboxes)",
			st.Key(), len(st.Visuals), len(st.Hitboxes))
		for _, id := range append(append([]uuid.UUID(nil), st.Visuals...), st.Hitboxes...) {
			f.despawn(id)
		}
	}
	return f, nil
}
