package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var _ repository.ChainStateStore = (*ChainStore)(nil)

const chainKeyPrefix = "zatca:chain:"

// saveScript avanza el eslabón solo si el contador guardado es counter-1 (0 si no existe).
var saveScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'counter')
local expected = tonumber(ARGV[2]) - 1
if (not cur and expected == 0) or (cur and tonumber(cur) == expected) then
  redis.call('HSET', KEYS[1], 'hash', ARGV[1], 'counter', ARGV[2], 'updated_at', ARGV[3])
  return 1
end
return 0
`)

// ChainStore guarda el último eslabón de cada dispositivo en un hash de Redis.
type ChainStore struct {
	client goredis.UniversalClient
}

// NewChainStore construye el store.
func NewChainStore(client goredis.UniversalClient) *ChainStore {
	return &ChainStore{client: client}
}

func chainKey(deviceID string) string { return chainKeyPrefix + deviceID }

// Load devuelve nil, nil si el dispositivo no tiene facturas.
func (s *ChainStore) Load(ctx context.Context, deviceID string) (*entity.ChainState, error) {
	fields, err := s.client.HGetAll(ctx, chainKey(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leer cadena %s: %w", deviceID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	counter, err := strconv.ParseInt(fields["counter"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: contador inválido para %s: %w", deviceID, err)
	}
	st := &entity.ChainState{DeviceID: deviceID, LastHash: fields["hash"], LastCounter: counter}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		st.UpdatedAt = ts
	}
	return st, nil
}

// Save avanza el estado con un script Lua atómico (compare-and-set sobre el contador).
func (s *ChainStore) Save(ctx context.Context, deviceID, hash string, counter int64) error {
	if deviceID == "" || hash == "" || counter < 1 {
		return fmt.Errorf("%w: estado de cadena incompleto", domain.ErrInvalidInput)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ok, err := saveScript.Run(ctx, s.client, []string{chainKey(deviceID)}, hash, counter, now).Int()
	if err != nil {
		return fmt.Errorf("redis: guardar cadena %s: %w", deviceID, err)
	}
	if ok != 1 {
		return fmt.Errorf("%w: el contador %d no sigue al último guardado del dispositivo %s",
			domain.ErrConflict, counter, deviceID)
	}
	return nil
}
