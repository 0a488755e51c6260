// Package labels вычисляет метки атаки для отсчетов сигнала
package labels

import (
	"fmt"

	"vizlab-service/internal/models"
	"vizlab-service/internal/registry"
)

// Columns источник probe-колонок run
type Columns interface {
	Columns() []string
	Column(name string) ([]float64, error)
}

// Resolver вычисляет метки по правилам атаки устройства.
// Правила применяются по порядку и объединяются через ИЛИ:
// probe-колонки батча, затем явные диапазоны attack_regions.
type Resolver struct{}

// NewResolver создает Resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve возвращает ровно length меток (1 - атака, 0 - норма).
// cols может быть nil, тогда применяются только явные диапазоны.
func (r *Resolver) Resolve(cfg *registry.DeviceConfig, run, batch string, length int, cols Columns) ([]int, error) {
	if length <= 0 {
		return []int{}, nil
	}
	labels := make([]int, length)

	if cols != nil {
		if err := applyProbes(labels, cfg, batch, cols); err != nil {
			return nil, err
		}
	}
	for _, region := range cfg.AttackRegions {
		if region.Applies(run, batch) {
			applyRange(labels, region.Start, region.End)
		}
	}
	return labels, nil
}

// ProbeColumns возвращает probe-колонки батча, присутствующие в run
func ProbeColumns(b registry.Batch, cols []string) []string {
	var out []string
	for _, c := range cols {
		if b.MatchesProbe(c) {
			out = append(out, c)
		}
	}
	return out
}

func applyProbes(labels []int, cfg *registry.DeviceConfig, batch string, cols Columns) error {
	var b *registry.Batch
	for i := range cfg.Batches {
		if cfg.Batches[i].Name == batch {
			b = &cfg.Batches[i]
			break
		}
	}
	if b == nil {
		return nil
	}

	for _, name := range ProbeColumns(*b, cols.Columns()) {
		values, err := cols.Column(name)
		if err != nil {
			return fmt.Errorf("probe %q: %w", name, err)
		}
		for i := 0; i < len(labels) && i < len(values); i++ {
			// NaN > 0 ложно, пропуски считаются нормой
			if values[i] > 0 {
				labels[i] = 1
			}
		}
	}
	return nil
}

// applyRange отмечает индексы start..end включительно, обрезая по длине
func applyRange(labels []int, start, end int) {
	if start < 0 {
		start = 0
	}
	if end >= len(labels) {
		end = len(labels) - 1
	}
	for i := start; i <= end; i++ {
		labels[i] = 1
	}
}

// Spans преобразует метки в полуоткрытые интервалы атаки [Start, End)
func Spans(labels []int) []models.Span {
	spans := make([]models.Span, 0)
	start := -1
	for i, v := range labels {
		switch {
		case v == 1 && start < 0:
			start = i
		case v != 1 && start >= 0:
			spans = append(spans, models.Span{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, models.Span{Start: start, End: len(labels)})
	}
	return spans
}

// Merge объединяет две последовательности меток через ИЛИ
// по первым min(len(a), len(b)) позициям
func Merge(a, b []int) []int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		if a[i] == 1 || b[i] == 1 {
			out[i] = 1
		}
	}
	return out
}
