package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/formiko/flagsh/internal/eventbus"
	"github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/metrics"
	"github.com/formiko/flagsh/internal/storage"
	"github.com/formiko/flagsh/internal/vec"
	"github.com/formiko/flagsh/internal/world"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var banner = world.ItemStack{Material: "red_banner", Amount: 1}

type env struct {
	host  *world.Manager
	store *storage.MemoryStore
	bus   eventbus.EventBus
	prom  *prometheus.Registry
	reg   *Registry
	world uuid.UUID

	mu     sync.Mutex
	events []string
}

func newEnv(t *testing.T, host world.EntityAPI) *env {
	t.Helper()
	e := &env{
		store: storage.NewMemoryStore(),
		bus:   eventbus.NewMemoryBus(64),
		prom:  prometheus.NewRegistry(),
		world: uuid.New(),
	}
	if m, ok := host.(*world.Manager); ok {
		e.host = m
	}

	m, err := metrics.NewFlags(e.prom)
	require.NoError(t, err)

	_, err = e.bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		e.mu.Lock()
		e.events = append(e.events, ev.EventType)
		e.mu.Unlock()
	})
	require.NoError(t, err)

	e.reg = New(host, e.store, e.bus, m)
	t.Cleanup(func() { _ = e.bus.Close() })
	return e
}

// flushEvents закрывает шину и возвращает доставленные события
func (e *env) flushEvents(t *testing.T) []string {
	t.Helper()
	require.NoError(t, e.bus.Close())
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *env) newFlag(host world.EntityAPI, pos vec.Vec3) *flag.Flag {
	return flag.New(host, pos, e.world, flag.VariantBanner, 90, 0.43)
}

func (e *env) metric(t *testing.T, name string) float64 {
	t.Helper()
	families, err := e.prom.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}

func (e *env) stored(t *testing.T) []flag.State {
	t.Helper()
	states, err := e.store.List(context.Background())
	require.NoError(t, err)
	return states
}

// failingHost ломает создание сущности на вызове номер failOn
type failingHost struct {
	*world.Manager
	failOn int
	calls  int
}

func (h *failingHost) SpawnEntity(kind world.EntityKind, loc world.Location) (uuid.UUID, error) {
	h.calls++
	if h.calls == h.failOn {
		return uuid.Nil, errors.New("host down")
	}
	return h.Manager.SpawnEntity(kind, loc)
}

func TestPlace(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	pos := vec.Vec3{X: 3, Y: 65, Z: 7}
	f := e.newFlag(e.host, pos)

	require.NoError(t, e.reg.Place(ctx, f, banner))

	assert.Equal(t, 1, e.reg.Len())
	got, ok := e.reg.At(e.world, pos)
	require.True(t, ok)
	assert.Same(t, f, got)

	for _, id := range append(f.Visuals(), f.Hitboxes()...) {
		owner, ok := e.reg.ByEntity(id)
		require.True(t, ok)
		assert.Same(t, f, owner)
	}
	_, ok = e.reg.ByEntity(uuid.New())
	assert.False(t, ok)

	states := e.stored(t)
	require.Len(t, states, 1)
	assert.Equal(t, f.Key(), states[0].Key())
	assert.Len(t, states[0].Hitboxes, flag.HitboxCount)

	assert.Equal(t, 1.0, e.metric(t, "flagsh_flags_placed_total"))
	assert.Equal(t, 1.0, e.metric(t, "flagsh_flags_active"))
	assert.Equal(t, []string{eventbus.EventFlagPlaced}, e.flushEvents(t))
}

func TestPlace_Occupied(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	pos := vec.Vec3{X: 0, Y: 64, Z: 0}

	require.NoError(t, e.reg.Place(ctx, e.newFlag(e.host, pos), banner))
	err := e.reg.Place(ctx, e.newFlag(e.host, pos), banner)

	assert.ErrorIs(t, err, ErrOccupied)
	assert.Equal(t, 1, e.reg.Len())
	assert.Equal(t, 2, e.host.Count(world.EntityKindItemDisplay), "Второй флаг не создает сущностей")

	err = e.reg.Add(ctx, e.newFlag(e.host, pos))
	assert.ErrorIs(t, err, ErrOccupied)
}

func TestPlace_Rollback(t *testing.T) {
	host := &failingHost{Manager: world.NewManager(), failOn: 3}
	e := newEnv(t, host)

	err := e.reg.Place(context.Background(), e.newFlag(host, vec.Vec3{}), banner)

	assert.ErrorIs(t, err, flag.ErrSpawn)
	assert.Equal(t, 0, e.reg.Len())
	assert.Empty(t, e.stored(t))
	assert.Equal(t, 0, host.Count(world.EntityKindInteraction))
	assert.Equal(t, 1.0, e.metric(t, "flagsh_spawn_rollbacks_total"))
	assert.Equal(t, 0.0, e.metric(t, "flagsh_flags_placed_total"))
}

func TestExtend(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	f := e.newFlag(e.host, vec.Vec3{X: 1, Y: 64, Z: 1})
	require.NoError(t, e.reg.Place(ctx, f, banner))
	oldHitboxes := f.Hitboxes()

	require.NoError(t, e.reg.Extend(ctx, f, 1.5))

	assert.Equal(t, float32(1.5), f.Size())
	for _, id := range oldHitboxes {
		_, ok := e.reg.ByEntity(id)
		assert.False(t, ok, "Старые хитбоксы не индексируются")
	}
	for _, id := range f.Hitboxes() {
		_, ok := e.reg.ByEntity(id)
		assert.True(t, ok)
	}

	states := e.stored(t)
	require.Len(t, states, 1)
	assert.Equal(t, float32(1.5), states[0].Size)
	assert.Equal(t, f.Hitboxes(), states[0].Hitboxes)

	assert.Equal(t, 1.0, e.metric(t, "flagsh_flags_extended_total"))
	assert.Equal(t, []string{eventbus.EventFlagPlaced, eventbus.EventFlagExtended}, e.flushEvents(t))
}

func TestExtend_Failure(t *testing.T) {
	// 12 сущностей при установке, 13-я - первая при увеличении
	host := &failingHost{Manager: world.NewManager(), failOn: 13}
	e := newEnv(t, host)
	ctx := context.Background()
	f := e.newFlag(host, vec.Vec3{})
	require.NoError(t, e.reg.Place(ctx, f, banner))

	err := e.reg.Extend(ctx, f, 2)

	assert.ErrorIs(t, err, flag.ErrSpawn)
	assert.Equal(t, float32(1), f.Size())
	require.True(t, f.IsCreated())
	for _, id := range f.Hitboxes() {
		_, ok := e.reg.ByEntity(id)
		assert.True(t, ok, "Восстановленные сущности индексируются")
	}
	assert.Equal(t, 1.0, e.metric(t, "flagsh_spawn_rollbacks_total"))
}

func TestUnregisteredFlag(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	f := e.newFlag(e.host, vec.Vec3{})
	require.NoError(t, f.Create(banner))

	assert.ErrorIs(t, e.reg.Extend(ctx, f, 2), flag.ErrInvalidState)
	_, err := e.reg.Remove(ctx, f, 0.5)
	assert.ErrorIs(t, err, flag.ErrInvalidState)
	assert.ErrorIs(t, e.reg.Save(ctx, f), flag.ErrInvalidState)
	assert.True(t, f.IsCreated(), "Чужой флаг не трогаем")
}

func TestRemove(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	f := e.newFlag(e.host, vec.Vec3{X: 2, Y: 64, Z: 2})
	require.NoError(t, e.reg.Place(ctx, f, banner))
	require.NoError(t, e.reg.Extend(ctx, f, 2))
	hitbox := f.Hitboxes()[0]

	dropped, err := e.reg.Remove(ctx, f, 0.5)

	require.NoError(t, err)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, 0, e.reg.Len())
	_, ok := e.reg.ByEntity(hitbox)
	assert.False(t, ok)
	assert.Empty(t, e.stored(t))
	assert.Equal(t, 0, e.host.Count(world.EntityKindItemDisplay))
	assert.Equal(t, 0, e.host.Count(world.EntityKindInteraction))

	drops := e.host.Drops()
	require.Len(t, drops, 1)
	assert.Equal(t, 3, drops[0].Item.Amount)

	assert.Equal(t, 1.0, e.metric(t, "flagsh_flags_removed_total"))
	assert.Equal(t, 0.0, e.metric(t, "flagsh_flags_active"))
	assert.Equal(t, []string{
		eventbus.EventFlagPlaced, eventbus.EventFlagExtended, eventbus.EventFlagRemoved,
	}, e.flushEvents(t))
}

func TestRemove_BrokenFlag(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	f := e.newFlag(e.host, vec.Vec3{})
	require.NoError(t, e.reg.Place(ctx, f, banner))
	require.NoError(t, e.host.DespawnEntity(f.Visuals()[0]))

	_, err := e.reg.Remove(ctx, f, 0.5)

	assert.ErrorIs(t, err, flag.ErrInvalidState)
	assert.Equal(t, 0, e.reg.Len(), "Сломанный флаг убирается из реестра")
	assert.Empty(t, e.stored(t))
	assert.Equal(t, 0, e.host.Count(world.EntityKindInteraction))
	assert.Empty(t, e.host.Drops())
	assert.Equal(t, 1.0, e.metric(t, "flagsh_flags_removed_total"))
	assert.Equal(t, []string{eventbus.EventFlagPlaced, eventbus.EventFlagRemoved}, e.flushEvents(t))
}

func TestForget(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	f := e.newFlag(e.host, vec.Vec3{})
	require.NoError(t, e.reg.Place(ctx, f, banner))
	hitbox := f.Hitboxes()[0]

	e.reg.Forget(f)
	e.reg.Forget(f)

	assert.Equal(t, 0, e.reg.Len())
	_, ok := e.reg.ByEntity(hitbox)
	assert.False(t, ok)
	assert.Empty(t, e.stored(t))
	assert.Equal(t, 10, e.host.Count(world.EntityKindInteraction), "Forget не удаляет сущности")
	assert.Equal(t, 1.0, e.metric(t, "flagsh_flags_removed_total"), "Повторный Forget не считается")
	assert.Equal(t, []string{eventbus.EventFlagPlaced, eventbus.EventFlagRemoved}, e.flushEvents(t))
}

func TestAll_Sorted(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	for _, x := range []int{5, 1, 3} {
		require.NoError(t, e.reg.Place(ctx, e.newFlag(e.host, vec.Vec3{X: x, Y: 64}), banner))
	}

	all := e.reg.All()
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Key(), all[i].Key())
	}
}

func TestLoad(t *testing.T) {
	host := world.NewManager()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	w := uuid.New()

	first := New(host, store, nil, nil)
	f := flag.New(host, vec.Vec3{X: 9, Y: 70, Z: 9}, w, flag.VariantFlag, 180, 0.18)
	require.NoError(t, first.Place(ctx, f, banner))
	require.NoError(t, first.Extend(ctx, f, 1.5))

	// Запись, которую нельзя восстановить
	require.NoError(t, store.Put(ctx, flag.State{World: w, Pos: vec.Vec3{X: 1}, Yaw: 0, Size: 0}))

	second := New(host, store, nil, nil)
	loaded, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	got, ok := second.At(w, f.Position())
	require.True(t, ok)
	assert.Equal(t, float32(1.5), got.Size())
	assert.Equal(t, flag.VariantFlag, got.Variant())
	assert.Equal(t, f.Visuals(), got.Visuals())

	owner, ok := second.ByEntity(f.Hitboxes()[4])
	require.True(t, ok)
	assert.Same(t, got, owner)

	states, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1, "Поврежденная запись удалена")

	// Повторная загрузка не дублирует флаги
	loaded, err = second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 1, second.Len())
}

func TestSave(t *testing.T) {
	e := newEnv(t, world.NewManager())
	ctx := context.Background()
	f := e.newFlag(e.host, vec.Vec3{})
	require.NoError(t, e.reg.Place(ctx, f, banner))
	require.NoError(t, e.store.Delete(ctx, f.Key()))

	require.NoError(t, e.reg.Save(ctx, f))
	assert.Len(t, e.stored(t), 1)
}
