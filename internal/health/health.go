package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/storage/redis"
)

// Checker 聚合存储与缓存的健康检查。
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	cache  *redis.Client
	log    *zap.Logger
}

// NewChecker 创建健康检查器。cache 可为 nil。
func NewChecker(store storage.Store, cache *redis.Client, log *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		cache:  cache,
		log:    log,
	}
	c.addChecks()
	return c
}

func (c *Checker) addChecks() {
	c.health.AddReadinessCheck("storage", func() error {
		return c.store.Health()
	})

	if c.cache != nil {
		c.health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return c.cache.Ping(ctx)
		})
	}

	c.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
}

// LiveEndpoint 存活探针。
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针，依赖组件任一不可用时返回 503。
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.ReadyEndpoint(w, r)
}

// StoreHealth 检查存储连通性。
func (c *Checker) StoreHealth() error {
	return c.store.Health()
}

// Snapshot 返回各组件当前的健康状态。
func (c *Checker) Snapshot() map[string]string {
	results := make(map[string]string)

	if err := c.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	if c.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.cache.Ping(ctx); err != nil {
			results["redis"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["redis"] = "OK"
		}
	} else {
		results["redis"] = "NOT_CONFIGURED"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}
