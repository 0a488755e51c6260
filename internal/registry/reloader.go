package registry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vizlab-service/internal/metrics"
)

// ErrRateLimited перестроение отклонено ограничителем частоты
var ErrRateLimited = errors.New("reload rate limited")

// Reloader единая точка перестроения реестра для API и наблюдателя каталога.
// Ограничивает частоту перестроений и обновляет метрики.
type Reloader struct {
	registry *Registry
	limiter  *rate.Limiter
	logger   *zap.Logger
	onReload []func(*Snapshot)
}

// NewReloader создает Reloader с ограничением perSecond перестроений в секунду
func NewReloader(r *Registry, perSecond float64, burst int, logger *zap.Logger) *Reloader {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Reloader{
		registry: r,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

// OnReload регистрирует обработчик успешного перестроения.
// Вызывать до начала работы.
func (rl *Reloader) OnReload(fn func(*Snapshot)) {
	rl.onReload = append(rl.onReload, fn)
}

// Delay возвращает время до следующего разрешенного перестроения.
// Токен не расходуется.
func (rl *Reloader) Delay() time.Duration {
	limit := rl.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	missing := 1 - rl.limiter.Tokens()
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(limit) * float64(time.Second))
}

// Reload перестраивает реестр, если позволяет ограничитель
func (rl *Reloader) Reload(ctx context.Context) (*Snapshot, error) {
	if !rl.limiter.Allow() {
		metrics.RegistryReloads.WithLabelValues(metrics.ReloadRateLimited).Inc()
		return nil, ErrRateLimited
	}

	snap, err := rl.registry.Reload(ctx)
	if err != nil {
		metrics.RegistryReloads.WithLabelValues(metrics.ReloadFailed).Inc()
		rl.logger.Error("registry reload failed", zap.Error(err))
		return nil, err
	}

	metrics.RegistryReloads.WithLabelValues(metrics.ReloadOK).Inc()
	metrics.UpdateRegistryMetrics(snap.Len(), len(snap.warnings))
	for _, fn := range rl.onReload {
		fn(snap)
	}
	return snap, nil
}
