package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	infraredis "github.com/jhoicas/zatca-einvoice/internal/infrastructure/redis"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// ──────────────────────────────────────────────────────────────────────────────
// ChainStore
// ──────────────────────────────────────────────────────────────────────────────

func TestChainStore_GenesisYAvance(t *testing.T) {
	_, client := newRedis(t)
	store := infraredis.NewChainStore(client)
	ctx := context.Background()

	st, err := store.Load(ctx, "egs-1")
	require.NoError(t, err)
	assert.Nil(t, st, "dispositivo sin facturas no tiene estado")

	require.NoError(t, store.Save(ctx, "egs-1", "h1", 1))
	require.NoError(t, store.Save(ctx, "egs-1", "h2", 2))

	st, err = store.Load(ctx, "egs-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "h2", st.LastHash)
	assert.Equal(t, int64(2), st.LastCounter)
	assert.False(t, st.UpdatedAt.IsZero())
}

func TestChainStore_RechazaSaltosYRepeticiones(t *testing.T) {
	_, client := newRedis(t)
	store := infraredis.NewChainStore(client)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, "egs-1", "h3", 3), domain.ErrConflict, "el primer eslabón debe ser 1")
	require.NoError(t, store.Save(ctx, "egs-1", "h1", 1))
	assert.ErrorIs(t, store.Save(ctx, "egs-1", "otro", 1), domain.ErrConflict, "contador repetido")
	assert.ErrorIs(t, store.Save(ctx, "egs-1", "h3", 3), domain.ErrConflict, "salto de contador")

	st, err := store.Load(ctx, "egs-1")
	require.NoError(t, err)
	assert.Equal(t, "h1", st.LastHash, "un conflicto no modifica el estado")
}

func TestChainStore_DispositivosIndependientes(t *testing.T) {
	_, client := newRedis(t)
	store := infraredis.NewChainStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", "ha", 1))
	require.NoError(t, store.Save(ctx, "b", "hb", 1))
	st, err := store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "hb", st.LastHash)
}

func TestChainStore_EntradaInvalida(t *testing.T) {
	_, client := newRedis(t)
	store := infraredis.NewChainStore(client)
	assert.ErrorIs(t, store.Save(context.Background(), "", "h", 1), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Save(context.Background(), "a", "h", 0), domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// DeviceLocker
// ──────────────────────────────────────────────────────────────────────────────

func TestDeviceLocker_UnSoloEscritor(t *testing.T) {
	_, client := newRedis(t)
	locker := infraredis.NewDeviceLocker(client, 5*time.Second, 0)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "egs-1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "egs-1")
	assert.ErrorIs(t, err, domain.ErrDeviceBusy)

	other, err := locker.Lock(ctx, "egs-2")
	require.NoError(t, err, "otro dispositivo no se bloquea")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := locker.Lock(ctx, "egs-1")
	require.NoError(t, err, "tras liberar se puede volver a tomar")
	require.NoError(t, again(ctx))
}

func TestDeviceLocker_ExpiraPorTTL(t *testing.T) {
	mr, client := newRedis(t)
	locker := infraredis.NewDeviceLocker(client, time.Second, 0)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "egs-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locker.Lock(ctx, "egs-1")
	require.NoError(t, err)
	assert.NoError(t, release(ctx), "liberar un candado expirado no es error")
}
