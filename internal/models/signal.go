// Package models содержит структуры данных сигналов, производных отношений и ответов API
package models

import "strings"

const (
	// DefaultUnit единица измерения счетчиков производительности
	DefaultUnit = "events"
	// TimeTypeIndex ось времени задается номером отсчета
	TimeTypeIndex = "index"
	// LabelTypeAttack тип меток: 1 - атака, 0 - норма
	LabelTypeAttack = "attack"
	// AggregationNone сигнал отдается без преобразования
	AggregationNone = "none"
	// AggregationMean скользящее среднее по окну window_size
	AggregationMean = "mean"
)

// SignalKey полный идентификатор сигнала
type SignalKey struct {
	Device   string `json:"device"`
	Workload string `json:"workload"`
	Run      string `json:"run"`
	Metric   string `json:"metric"`
}

// ID возвращает строковый идентификатор сигнала
func (k SignalKey) ID() string {
	return strings.Join([]string{k.Device, k.Workload, k.Run, k.Metric}, "::")
}

// SignalSource источник сигнала
type SignalSource struct {
	Device   string `json:"device"`
	Workload string `json:"workload"`
	Run      string `json:"run"`
}

// SignalMetric описание метрики
type SignalMetric struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// SignalTime ось времени сигнала
type SignalTime struct {
	Type   string `json:"type"`
	Values []int  `json:"values"`
}

// SignalLabels метки атаки, выровненные по отсчетам сигнала
type SignalLabels struct {
	Type   string `json:"type"`
	Values []int  `json:"values"`
	Batch  string `json:"batch"`
}

// SignalTransform описание примененного преобразования
type SignalTransform struct {
	WindowSize  int    `json:"window_size"`
	Aggregation string `json:"aggregation"`
}

// IdentityTransform преобразование по умолчанию
func IdentityTransform() SignalTransform {
	return SignalTransform{WindowSize: 1, Aggregation: AggregationNone}
}

// Signal единица данных, отдаваемая клиентам
type Signal struct {
	SignalID  string          `json:"signal_id"`
	Source    SignalSource    `json:"source"`
	Metric    SignalMetric    `json:"metric"`
	Time      SignalTime      `json:"time"`
	Values    Series          `json:"values"`
	Labels    SignalLabels    `json:"labels"`
	Transform SignalTransform `json:"transform"`
}

// Len возвращает количество отсчетов
func (s *Signal) Len() int {
	return len(s.Values)
}

// Truncate возвращает копию сигнала, обрезанную до n отсчетов с начала.
// Отбрасывается хвост, никогда не голова.
func (s *Signal) Truncate(n int) *Signal {
	if n < 0 {
		n = 0
	}
	if n >= len(s.Values) {
		cp := *s
		return &cp
	}
	cp := *s
	cp.Values = append(Series(nil), s.Values[:n]...)
	cp.Labels.Values = append([]int(nil), s.Labels.Values[:n]...)
	if len(s.Time.Values) > n {
		cp.Time.Values = append([]int(nil), s.Time.Values[:n]...)
	}
	return &cp
}

// SignalRequest запрос одного сигнала
type SignalRequest struct {
	Device      string `json:"device"`
	Workload    string `json:"workload"`
	Run         string `json:"run"`
	Metric      string `json:"metric"`
	// WindowSize nil - окно по умолчанию (1)
	WindowSize  *int   `json:"window_size,omitempty"`
	Aggregation string `json:"aggregation,omitempty"`
}

// Key возвращает идентификатор запрошенного сигнала
func (r SignalRequest) Key() SignalKey {
	return SignalKey{Device: r.Device, Workload: r.Workload, Run: r.Run, Metric: r.Metric}
}

// Transform возвращает запрошенное преобразование с подставленными значениями
// по умолчанию для отсутствующих полей. Переданные значения не исправляются.
func (r SignalRequest) Transform() SignalTransform {
	t := IdentityTransform()
	if r.WindowSize != nil {
		t.WindowSize = *r.WindowSize
	}
	if r.Aggregation != "" {
		t.Aggregation = r.Aggregation
	}
	return t
}

// SignalsRequest пакет запросов сигналов
type SignalsRequest struct {
	Requests []SignalRequest `json:"requests"`
}

// SignalsResponse ответ на пакетный запрос
type SignalsResponse struct {
	Signals []*Signal `json:"signals"`
}

// Span полуоткрытый интервал атаки [Start, End)
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ComparedSignal сигнал, выровненный для сравнения, с интервалами атаки
type ComparedSignal struct {
	*Signal
	Spans []Span `json:"spans"`
}

// CompareResponse пара сигналов, обрезанных до общей длины
type CompareResponse struct {
	Length int            `json:"length"`
	A      ComparedSignal `json:"a"`
	B      ComparedSignal `json:"b"`
}
