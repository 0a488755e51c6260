// Package signals собирает сигнал из значений метрики и меток атаки
package signals

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vizlab-service/internal/analytics"
	"vizlab-service/internal/dataset"
	"vizlab-service/internal/labels"
	"vizlab-service/internal/metrics"
	"vizlab-service/internal/models"
	"vizlab-service/internal/registry"
)

// Service отдает сигналы: значения из CSV плюс метки того же размера.
// Сигналы вычисляются на каждый запрос и не кэшируются.
type Service struct {
	registry *registry.Registry
	resolver *labels.Resolver
	logger   *zap.Logger
}

// NewService создает сервис сигналов
func NewService(reg *registry.Registry, resolver *labels.Resolver, logger *zap.Logger) *Service {
	return &Service{
		registry: reg,
		resolver: resolver,
		logger:   logger,
	}
}

// GetSignal загружает сигнал по идентификатору без преобразования
func (s *Service) GetSignal(key models.SignalKey) (*models.Signal, error) {
	return s.Fetch(models.SignalRequest{
		Device:   key.Device,
		Workload: key.Workload,
		Run:      key.Run,
		Metric:   key.Metric,
	})
}

// Fetch загружает сигнал с запрошенным преобразованием
func (s *Service) Fetch(req models.SignalRequest) (*models.Signal, error) {
	transform := req.Transform()
	if err := validateTransform(transform); err != nil {
		return nil, err
	}

	// один снимок на весь запрос: reload посередине не смешает состояния
	snap := s.registry.Snapshot()
	dev, err := snap.Device(req.Device)
	if err != nil {
		return nil, err
	}
	if !dev.HasMetric(req.Metric) {
		return nil, fmt.Errorf("%w: metric %q on device %q", models.ErrNotFound, req.Metric, req.Device)
	}
	batch, _ := dev.Config.BatchFor(req.Metric)

	frame, err := dataset.NewLoader(snap).LoadFrame(req.Device, req.Workload, req.Run)
	if err != nil {
		s.countError(err)
		return nil, err
	}
	values, err := frame.Column(req.Metric)
	if err != nil {
		s.countError(err)
		return nil, fmt.Errorf("signal %s: %w", req.Key().ID(), err)
	}

	lbls, err := s.resolver.Resolve(dev.Config, req.Run, batch.Name, len(values), frame)
	if err != nil {
		s.countError(err)
		return nil, fmt.Errorf("labels %s: %w", req.Key().ID(), err)
	}

	if transform.Aggregation == models.AggregationMean && transform.WindowSize > 1 {
		values = analytics.RollingMean(values, transform.WindowSize)
	}

	metrics.SignalsServed.Inc()
	return &models.Signal{
		SignalID: req.Key().ID(),
		Source: models.SignalSource{
			Device:   req.Device,
			Workload: req.Workload,
			Run:      req.Run,
		},
		Metric: models.SignalMetric{
			Name: req.Metric,
			Unit: models.DefaultUnit,
		},
		Time: models.SignalTime{
			Type:   models.TimeTypeIndex,
			Values: frame.Index(),
		},
		Values: values,
		Labels: models.SignalLabels{
			Type:   models.LabelTypeAttack,
			Values: lbls,
			Batch:  batch.Name,
		},
		Transform: transform,
	}, nil
}

// Compare загружает два сигнала и выравнивает их по общей длине
func (s *Service) Compare(a, b models.SignalRequest) (*models.CompareResponse, error) {
	sa, err := s.Fetch(a)
	if err != nil {
		return nil, err
	}
	sb, err := s.Fetch(b)
	if err != nil {
		return nil, err
	}

	sa, sb = AlignPair(sa, sb)
	return &models.CompareResponse{
		Length: sa.Len(),
		A:      models.ComparedSignal{Signal: sa, Spans: labels.Spans(sa.Labels.Values)},
		B:      models.ComparedSignal{Signal: sb, Spans: labels.Spans(sb.Labels.Values)},
	}, nil
}

// AlignPair обрезает оба сигнала до min(len(a), len(b)) с индекса 0.
// Отбрасывается хвост, голова сохраняется.
func AlignPair(a, b *models.Signal) (*models.Signal, *models.Signal) {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	return a.Truncate(n), b.Truncate(n)
}

func validateTransform(t models.SignalTransform) error {
	if t.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be >= 1", models.ErrInvalidRequest)
	}
	switch t.Aggregation {
	case models.AggregationNone, models.AggregationMean:
		return nil
	}
	return fmt.Errorf("%w: unknown aggregation %q", models.ErrInvalidRequest, t.Aggregation)
}

func (s *Service) countError(err error) {
	class := "other"
	switch {
	case errors.Is(err, models.ErrNotFound):
		class = "not_found"
	case errors.Is(err, models.ErrMalformedData):
		class = "malformed"
	}
	metrics.SignalLoadErrors.WithLabelValues(class).Inc()
	s.logger.Debug("signal load failed", zap.String("class", class), zap.Error(err))
}
