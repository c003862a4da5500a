package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/formiko/flagsh/internal/eventbus"
	"github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/metrics"
	"github.com/formiko/flagsh/internal/storage"
	"github.com/formiko/flagsh/internal/vec"
	"github.com/formiko/flagsh/internal/world"
	"github.com/google/uuid"
)

// ErrOccupied - на якорном блоке уже есть флаг
var ErrOccupied = errors.New("registry: anchor already has a flag")

// storeTimeout ограничивает запись в хранилище из Forget, у которого нет контекста
const storeTimeout = 5 * time.Second

var logger = logging.GetRegistryLogger()

// Registry владеет всеми флагами сервера.
// Все изменения флагов идут через Registry и выполняются под одной блокировкой.
type Registry struct {
	mu       sync.Mutex
	host     world.EntityAPI
	store    storage.FlagStore
	bus      eventbus.EventBus // может быть nil
	metrics  *metrics.Flags    // может быть nil
	flags    map[string]*flag.Flag
	byEntity map[uuid.UUID]string
}

// New создает пустой реестр
func New(host world.EntityAPI, store storage.FlagStore, bus eventbus.EventBus, m *metrics.Flags) *Registry {
	return &Registry{
		host:     host,
		store:    store,
		bus:      bus,
		metrics:  m,
		flags:    make(map[string]*flag.Flag),
		byEntity: make(map[uuid.UUID]string),
	}
}

// Place создает сущности флага и регистрирует его
func (r *Registry) Place(ctx context.Context, f *flag.Flag, item world.ItemStack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flags[f.Key()]; ok {
		return fmt.Errorf("%w: %s", ErrOccupied, f.Key())
	}
	if err := f.Create(item); err != nil {
		r.countFailure(err)
		return err
	}

	r.addLocked(ctx, f)
	return nil
}

// Add регистрирует уже созданный флаг
func (r *Registry) Add(ctx context.Context, f *flag.Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flags[f.Key()]; ok {
		return fmt.Errorf("%w: %s", ErrOccupied, f.Key())
	}
	r.addLocked(ctx, f)
	return nil
}

func (r *Registry) addLocked(ctx context.Context, f *flag.Flag) {
	r.flags[f.Key()] = f
	r.indexLocked(f)
	r.persist(ctx, f)
	r.publish(ctx, eventbus.EventFlagPlaced, f, 0)

	r.metrics.Placed()
	r.metrics.SetActive(len(r.flags))
	logger.Info("🚩 Flag placed: %s (yaw=%d, %s)", f.Key(), f.Yaw(), f.Variant())
}

// Extend меняет размер зарегистрированного флага
func (r *Registry) Extend(ctx context.Context, f *flag.Flag, newSize float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ownedLocked(f); err != nil {
		return err
	}

	r.unindexLocked(f)
	err := f.Extend(newSize)
	// После ошибки флаг пересоздан со старым размером, ID сущностей все равно новые
	r.indexLocked(f)
	r.persist(ctx, f)
	if err != nil {
		r.countFailure(err)
		return err
	}

	r.publish(ctx, eventbus.EventFlagExtended, f, 0)
	r.metrics.Extended()
	logger.Debug("Flag %s extended to %.2f", f.Key(), f.Size())
	return nil
}

// Remove ломает флаг: предметы выпадают, сущности удаляются, флаг уходит из реестра.
// Возвращает число выпавших предметов.
func (r *Registry) Remove(ctx context.Context, f *flag.Flag, sizeStep float64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ownedLocked(f); err != nil {
		return 0, err
	}

	dropped := flag.DropCount(f.Size(), sizeStep)
	if err := f.Remove(lockedForgetter{r: r, ctx: ctx}, sizeStep); err != nil {
		if errors.Is(err, flag.ErrInvalidState) {
			// Дисплей пропал у хоста: флаг уже не восстановить
			logger.Warn("Flag %s is broken, discarding: %v", f.Key(), err)
			f.RemoveEntities()
			r.discardLocked(ctx, f)
		}
		return 0, err
	}

	r.publish(ctx, eventbus.EventFlagRemoved, f, dropped)
	r.metrics.Removed()
	logger.Info("🪓 Flag removed: %s (dropped %d)", f.Key(), dropped)
	return dropped, nil
}

// Forget убирает флаг из реестра и хранилища, не трогая его сущности.
// Подписчики получают flag.removed без выпавших предметов.
func (r *Registry) Forget(f *flag.Flag) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	r.discardLocked(ctx, f)
}

// discardLocked забывает флаг и сообщает об удалении, как Remove без дропа
func (r *Registry) discardLocked(ctx context.Context, f *flag.Flag) {
	if !r.forgetLocked(ctx, f) {
		return
	}
	r.publish(ctx, eventbus.EventFlagRemoved, f, 0)
	r.metrics.Removed()
	logger.Info("Flag forgotten: %s", f.Key())
}

// forgetLocked возвращает false, если флаг не принадлежит реестру
func (r *Registry) forgetLocked(ctx context.Context, f *flag.Flag) bool {
	cur, ok := r.flags[f.Key()]
	if !ok || cur != f {
		return false
	}

	// К этому моменту сущности флага могут быть уже удалены, поэтому индекс чистится по ключу
	for id, key := range r.byEntity {
		if key == f.Key() {
			delete(r.byEntity, id)
		}
	}
	delete(r.flags, f.Key())
	if err := r.store.Delete(ctx, f.Key()); err != nil {
		logger.Error("Failed to delete flag %s from storage: %v", f.Key(), err)
	}
	r.metrics.SetActive(len(r.flags))
	return true
}

// lockedForgetter передается во flag.Remove, когда блокировка реестра уже взята
type lockedForgetter struct {
	r   *Registry
	ctx context.Context
}

func (lf lockedForgetter) Forget(f *flag.Flag) { lf.r.forgetLocked(lf.ctx, f) }

// At возвращает флаг на якорном блоке
func (r *Registry) At(worldID uuid.UUID, pos vec.Vec3) (*flag.Flag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flags[flag.Key(worldID, pos)]
	return f, ok
}

// ByEntity возвращает флаг, которому принадлежит дисплей или хитбокс
func (r *Registry) ByEntity(id uuid.UUID) (*flag.Flag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byEntity[id]
	if !ok {
		return nil, false
	}
	f, ok := r.flags[key]
	return f, ok
}

// All возвращает все флаги, отсортированные по ключу
func (r *Registry) All() []*flag.Flag {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*flag.Flag, 0, len(r.flags))
	for _, f := range r.flags {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Len возвращает количество флагов
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flags)
}

// Save сохраняет текущее состояние флага в хранилище
func (r *Registry) Save(ctx context.Context, f *flag.Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ownedLocked(f); err != nil {
		return err
	}
	return r.store.Put(ctx, f.Snapshot())
}

// Load восстанавливает флаги из хранилища. Поврежденные записи удаляются.
// Возвращает число загруженных флагов.
func (r *Registry) Load(ctx context.Context) (int, error) {
	states, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load flags: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := 0
	for _, st := range states {
		if _, ok := r.flags[st.Key()]; ok {
			continue
		}

		f, err := flag.Restore(r.host, st)
		if err != nil {
			logger.Warn("Skipping stored flag %s: %v", st.Key(), err)
			if delErr := r.store.Delete(ctx, st.Key()); delErr != nil {
				logger.Error("Failed to delete flag %s from storage: %v", st.Key(), delErr)
			}
			continue
		}

		r.flags[f.Key()] = f
		r.indexLocked(f)
		loaded++
	}

	r.metrics.SetActive(len(r.flags))
	logger.Info("📦 Loaded %d flags from storage", loaded)
	return loaded, nil
}

func (r *Registry) ownedLocked(f *flag.Flag) error {
	if cur, ok := r.flags[f.Key()]; !ok || cur != f {
		return fmt.Errorf("%w: flag %s is not registered", flag.ErrInvalidState, f.Key())
	}
	return nil
}

func (r *Registry) indexLocked(f *flag.Flag) {
	for _, id := range f.Visuals() {
		r.byEntity[id] = f.Key()
	}
	for _, id := range f.Hitboxes() {
		r.byEntity[id] = f.Key()
	}
}

func (r *Registry) unindexLocked(f *flag.Flag) {
	for _, id := range f.Visuals() {
		delete(r.byEntity, id)
	}
	for _, id := range f.Hitboxes() {
		delete(r.byEntity, id)
	}
}

// persist ошибки хранилища не отменяют операцию: сущности уже живут у хоста
func (r *Registry) persist(ctx context.Context, f *flag.Flag) {
	if err := r.store.Put(ctx, f.Snapshot()); err != nil {
		logger.Error("Failed to save flag %s: %v", f.Key(), err)
	}
}

func (r *Registry) publish(ctx context.Context, eventType string, f *flag.Flag, dropped int) {
	if r.bus == nil {
		return
	}

	ev, err := eventbus.NewFlagEnvelope(eventType, eventbus.FlagEvent{
		Key:     f.Key(),
		World:   f.World(),
		Pos:     f.Position(),
		Yaw:     f.Yaw(),
		Variant: f.Variant().String(),
		Size:    f.Size(),
		Dropped: dropped,
	})
	if err != nil {
		logger.Warn("Failed to build %s event: %v", eventType, err)
		return
	}
	if err := r.bus.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish %s for %s: %v", eventType, f.Key(), err)
	}
}

func (r *Registry) countFailure(err error) {
	if errors.Is(err, flag.ErrSpawn) {
		r.metrics.Rollback()
	}
}
