// Package analytics реализует вычисления над сигналами:
// скользящие окна, производные отношения, сессии и точечные диаграммы
package analytics

import (
	"math"

	"vizlab-service/internal/models"
)

// SlidingWindow скользящее окно фиксированного размера.
// Нечисловые значения (NaN, ±Inf) занимают место в окне, но не входят в статистику.
type SlidingWindow struct {
	values []float64
	size   int
	index  int
	count  int
	finite int
	sum    float64
	sumSq  float64
}

// NewSlidingWindow создает новое скользящее окно заданного размера
func NewSlidingWindow(size int) *SlidingWindow {
	if size < 1 {
		size = 1
	}
	return &SlidingWindow{
		values: make([]float64, size),
		size:   size,
	}
}

// Add добавляет новое значение в окно
func (sw *SlidingWindow) Add(value float64) {
	if sw.count >= sw.size {
		// Удаляем старое значение из статистики
		old := sw.values[sw.index]
		if isFinite(old) {
			sw.sum -= old
			sw.sumSq -= old * old
			sw.finite--
		}
	} else {
		sw.count++
	}

	sw.values[sw.index] = value
	if isFinite(value) {
		sw.sum += value
		sw.sumSq += value * value
		sw.finite++
	}

	sw.index = (sw.index + 1) % sw.size
}

// Mean возвращает среднее по конечным значениям окна, NaN если их нет
func (sw *SlidingWindow) Mean() float64 {
	if sw.finite == 0 {
		return math.NaN()
	}
	return sw.sum / float64(sw.finite)
}

// StdDev возвращает выборочное стандартное отклонение
func (sw *SlidingWindow) StdDev() float64 {
	if sw.finite < 2 {
		return 0
	}
	n := float64(sw.finite)
	variance := (sw.sumSq - (sw.sum*sw.sum)/n) / (n - 1)
	// при переполнении sumSq получается Inf-Inf
	if math.IsNaN(variance) || variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Count возвращает количество элементов в окне
func (sw *SlidingWindow) Count() int {
	return sw.count
}

// Finite возвращает количество конечных значений в окне
func (sw *SlidingWindow) Finite() int {
	return sw.finite
}

// RollingMean заменяет каждый отсчет средним по последним window отсчетам.
// Длина сохраняется; в начале окно неполное.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	sw := NewSlidingWindow(window)
	for i, v := range values {
		sw.Add(v)
		out[i] = sw.Mean()
	}
	return out
}

// Summarize считает сводную статистику отношения.
// Значения масштабируются на максимум модуля, чтобы сумма квадратов
// не переполнялась на больших конечных отношениях.
func Summarize(values []float64, labels []int) models.RatioSummary {
	s := models.RatioSummary{Count: len(values)}
	if len(values) == 0 {
		return s
	}

	scale := 0.0
	for _, v := range values {
		if isFinite(v) && math.Abs(v) > scale {
			scale = math.Abs(v)
		}
	}
	if scale == 0 {
		scale = 1
	}

	sw := NewSlidingWindow(len(values))
	for _, v := range values {
		sw.Add(v / scale)
	}
	s.Finite = sw.Finite()
	s.NonFinite = s.Count - s.Finite
	if s.Finite > 0 {
		s.Mean = finiteOrZero(sw.Mean() * scale)
		s.StdDev = finiteOrZero(sw.StdDev() * scale)
	}

	attack := 0
	for _, l := range labels {
		attack += l
	}
	if len(labels) > 0 {
		s.AttackFraction = float64(attack) / float64(len(labels))
	}
	return s
}

func finiteOrZero(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
