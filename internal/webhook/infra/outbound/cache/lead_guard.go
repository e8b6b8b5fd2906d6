package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	sharedCache "github.com/davicafu/leadhook/internal/shared/infra/platform/cache"
	"github.com/davicafu/leadhook/internal/webhook/domain"
)

// LeadGuard marca cada leadgen_id como visto durante un TTL.
// La plataforma entrega al menos una vez; esto reduce despachos duplicados sin garantizar exactamente una vez.
type LeadGuard struct {
	cache sharedCache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ domain.LeadGuard = (*LeadGuard)(nil)

func NewLeadGuard(cache sharedCache.Cache, ttl time.Duration, log *zap.Logger) *LeadGuard {
	return &LeadGuard{cache: cache, ttl: ttl, log: log}
}

// FirstSeen devuelve true la primera vez que ve un lead. Si la caché falla deja pasar el lead.
func (g *LeadGuard) FirstSeen(ctx context.Context, leadID string) bool {
	if g.cache == nil {
		return true
	}

	stored, err := g.cache.SetIfAbsent(ctx, domain.LeadCacheKeyByID(leadID), time.Now().UTC(), int(g.ttl.Seconds()))
	if err != nil {
		g.log.Warn("⚠️ Lead dedup check failed, letting lead through", zap.String("lead_id", leadID), zap.Error(err))
		return true
	}
	return stored
}

// Release olvida un lead para que una reentrega pueda volver a procesarlo.
func (g *LeadGuard) Release(leadID string) {
	sharedCache.AsyncCacheDelete(g.cache, domain.LeadCacheKeyByID(leadID), g.log)
}
