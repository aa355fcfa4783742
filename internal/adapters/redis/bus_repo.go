package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// Key layout:
//
//	bus:seq          id counter
//	bus:ids          set of all ids
//	bus:<id>         JSON record
//	bus:code:<code>  id owning the code
const (
	keySeq = "bus:seq"
	keyIDs = "bus:ids"
)

func busKey(id int64) string { return "bus:" + strconv.FormatInt(id, 10) }
func codeKey(code string) string { return "bus:code:" + code }

// BusRepo implements ports.BusRepository on Redis.
type BusRepo struct {
	rdb *goredis.Client
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// NewBusRepo creates a new BusRepo.
func NewBusRepo(rdb *goredis.Client) *BusRepo {
	return &BusRepo{rdb: rdb}
}

func (r *BusRepo) Create(ctx context.Context, b *domain.Bus) error {
	id, err := r.rdb.Incr(ctx, keySeq).Result()
	if err != nil {
		return mapError(err)
	}
	ok, err := r.rdb.SetNX(ctx, codeKey(b.Code), id, 0).Result()
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return fmt.Errorf("%w: bus code %q exists", domain.ErrConflict, b.Code)
	}

	b.ID = id
	b.Version = 1
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bus: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, busKey(id), data, 0)
		pipe.SAdd(ctx, keyIDs, id)
		return nil
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *BusRepo) Get(ctx context.Context, id int64) (*domain.Bus, error) {
	data, err := r.rdb.Get(ctx, busKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return decodeBus(data)
}

// Save replaces the record in one MULTI block. The record key is watched, so
// a write or delete by another client between the version check and EXEC
// aborts this one.
func (r *BusRepo) Save(ctx context.Context, b *domain.Bus) error {
	key := busKey(b.ID)
	next := *b
	next.Version = b.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode bus: %w", err)
	}

	err = r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("%w: id %d", domain.ErrUnknownBus, b.ID)
		}
		if err != nil {
			return err
		}
		prev, err := decodeBus(cur)
		if err != nil {
			return err
		}
		if prev.Version != b.Version {
			return fmt.Errorf("%w: id %d", domain.ErrStaleWrite, b.ID)
		}
		if prev.Code != b.Code {
			ok, err := tx.SetNX(ctx, codeKey(b.Code), b.ID, 0).Result()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: bus code %q exists", domain.ErrConflict, b.Code)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if prev.Code != b.Code {
				pipe.Del(ctx, codeKey(prev.Code))
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		b.Version = next.Version
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return fmt.Errorf("%w: id %d", domain.ErrStaleWrite, b.ID)
	case errors.Is(err, domain.ErrUnknownBus), errors.Is(err, domain.ErrConflict):
		return err
	}
	return mapError(err)
}

func (r *BusRepo) List(ctx context.Context) ([]domain.Bus, error) {
	ids, err := r.rdb.SMembers(ctx, keyIDs).Result()
	if err != nil {
		return nil, mapError(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "bus:" + id
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, mapError(err)
	}

	buses := make([]domain.Bus, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		b, err := decodeBus([]byte(s))
		if err != nil {
			return nil, err
		}
		buses = append(buses, *b)
	}
	sort.Slice(buses, func(i, j int) bool { return buses[i].Code < buses[j].Code })
	return buses, nil
}

func (r *BusRepo) Count(ctx context.Context) (int, error) {
	n, err := r.rdb.SCard(ctx, keyIDs).Result()
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

func (r *BusRepo) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func decodeBus(data []byte) (*domain.Bus, error) {
	var b domain.Bus
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bus: %w", err)
	}
	return &b, nil
}

func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
