package storage

import (
	"context"
	"os"
	"testing"

	"github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/vec"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(w uuid.UUID, x int, size float32) flag.State {
	visuals := []uuid.UUID{uuid.New(), uuid.New()}
	hitboxes := make([]uuid.UUID, flag.HitboxCount)
	for i := range hitboxes {
		hitboxes[i] = uuid.New()
	}
	return flag.State{
		World:      w,
		Pos:        vec.Vec3{X: x, Y: 64, Z: -7},
		Yaw:        90,
		WallOffset: 0.43,
		Variant:    flag.VariantFlag,
		Size:       size,
		Visuals:    visuals,
		Hitboxes:   hitboxes,
	}
}

// exerciseStore проверяет общий контракт FlagStore
func exerciseStore(t *testing.T, store FlagStore) {
	ctx := context.Background()
	w := uuid.New()

	a := testState(w, 1, 1)
	b := testState(w, 2, 1.5)

	require.NoError(t, store.Put(ctx, b))
	require.NoError(t, store.Put(ctx, a))

	states, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, a, states[0], "Записи отсортированы по ключу")
	assert.Equal(t, b, states[1])

	// Перезапись по тому же ключу
	b.Size = 2
	require.NoError(t, store.Put(ctx, b))
	states, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, float32(2), states[1].Size)

	require.NoError(t, store.Delete(ctx, a.Key()))
	require.NoError(t, store.Delete(ctx, "flag:missing"), "Удаление отсутствующего ключа не ошибка")

	states, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, b.Key(), states[0].Key())
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)

	require.NoError(t, store.Close())
	_, err := store.List(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	exerciseStore(t, store)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "Повторное закрытие безопасно")

	err = store.Put(context.Background(), testState(uuid.New(), 0, 1))
	assert.ErrorIs(t, err, ErrNotReady)

	// Данные переживают переоткрытие
	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	states, err := reopened.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FLAGSH_REDIS_ADDR")
	if addr == "" {
		t.Skip("FLAGSH_REDIS_ADDR not set, skipping Redis test")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, &RedisConfig{Addr: addr, KeyPrefix: "flagsh-test:" + uuid.NewString() + ":"})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	defer store.Close()
	defer store.client.Del(ctx, store.hashKey)

	exerciseStore(t, store)
}
