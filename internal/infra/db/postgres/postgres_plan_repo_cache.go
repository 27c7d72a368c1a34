package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/repository"
	"bytebill/internal/infra/metrics"
	red "bytebill/internal/infra/redis"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const (
	planListActiveKey = "plans:active"
	planListAllKey    = "plans:all"
)

// planRepoCacheDecorator caches plan reads in redis. Transactional reads bypass
// the cache so the caller sees its own snapshot.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	group singleflight.Group
	log   *zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "PlanCache").Logger()
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   &l,
	}
}

func planKey(id string) string { return fmt.Sprintf("plan:%s", id) }

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := planKey(id)
	var plan model.Plan
	if d.lookup(ctx, "plan", key, &plan) {
		return &plan, nil
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		p, err := d.inner.FindByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		d.store(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*model.Plan)
	return &cp, nil
}

func (d *planRepoCacheDecorator) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	return d.inner.FindByName(ctx, tx, name)
}

func (d *planRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, activeOnly bool) ([]*model.Plan, error) {
	if tx != nil {
		return d.inner.List(ctx, tx, activeOnly)
	}
	key := planListAllKey
	if activeOnly {
		key = planListActiveKey
	}
	var plans []*model.Plan
	if d.lookup(ctx, "plan_list", key, &plans) {
		return plans, nil
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		ps, err := d.inner.List(ctx, nil, activeOnly)
		if err != nil {
			return nil, err
		}
		if len(ps) > 0 {
			d.store(ctx, key, ps)
		}
		return ps, nil
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]*model.Plan)
	out := make([]*model.Plan, len(shared))
	for i, p := range shared {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// For write operations, we must invalidate the cache.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	d.invalidate(ctx, planKey(p.ID))
	return nil
}

func (d *planRepoCacheDecorator) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	if err := d.inner.Deactivate(ctx, tx, id); err != nil {
		return err
	}
	d.invalidate(ctx, planKey(id))
	return nil
}

func (d *planRepoCacheDecorator) lookup(ctx context.Context, cache, key string, dst interface{}) bool {
	val, err := d.cache.Get(ctx, key)
	if err == nil && json.Unmarshal([]byte(val), dst) == nil {
		metrics.IncCacheRequest(cache, "hit")
		return true
	}
	if err != nil && !red.IsMiss(err) {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
	}
	metrics.IncCacheRequest(cache, "miss")
	return false
}

func (d *planRepoCacheDecorator) store(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
	}
}

func (d *planRepoCacheDecorator) invalidate(ctx context.Context, keys ...string) {
	keys = append(keys, planListActiveKey, planListAllKey)
	if err := d.cache.Del(ctx, keys...); err != nil {
		d.log.Warn().Err(err).Strs("keys", keys).Msg("plan cache invalidation failed")
	}
}
