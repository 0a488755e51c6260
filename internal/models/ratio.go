package models

import "fmt"

// RatioKey идентификатор производного отношения в кэше сессии
type RatioKey struct {
	Device      string `json:"device"`
	Workload    string `json:"workload"`
	Run         string `json:"run"`
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

// Complete сообщает, заполнены ли все поля ключа
func (k RatioKey) Complete() bool {
	return k.Device != "" && k.Workload != "" && k.Run != "" &&
		k.Numerator != "" && k.Denominator != ""
}

// Name короткое имя отношения
func (k RatioKey) Name() string {
	return fmt.Sprintf("%s / %s", k.Numerator, k.Denominator)
}

// DisplayName полное имя отношения для подписи графика
func (k RatioKey) DisplayName() string {
	return fmt.Sprintf("%s | %s | %s | %s / %s", k.Device, k.Workload, k.Run, k.Numerator, k.Denominator)
}

// NumeratorKey идентификатор сигнала числителя
func (k RatioKey) NumeratorKey() SignalKey {
	return SignalKey{Device: k.Device, Workload: k.Workload, Run: k.Run, Metric: k.Numerator}
}

// DenominatorKey идентификатор сигнала знаменателя
func (k RatioKey) DenominatorKey() SignalKey {
	return SignalKey{Device: k.Device, Workload: k.Workload, Run: k.Run, Metric: k.Denominator}
}

// RatioSummary сводная статистика отношения по конечным значениям
type RatioSummary struct {
	Count          int     `json:"count"`
	Finite         int     `json:"finite"`
	NonFinite      int     `json:"non_finite"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	AttackFraction float64 `json:"attack_fraction"`
}

// RatioSignal поэлементное отношение двух сигналов. Неизменяем после вычисления.
type RatioSignal struct {
	RatioKey
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	X           []int        `json:"x"`
	Values      Series       `json:"values"`
	Labels      []int        `json:"labels"`
	Summary     RatioSummary `json:"summary"`
}

// Len возвращает количество отсчетов
func (r *RatioSignal) Len() int {
	return len(r.Values)
}

// RatioRequest запрос на вычисление отношения
type RatioRequest struct {
	EntryID     string `json:"entry_id,omitempty"`
	Device      string `json:"device"`
	Workload    string `json:"workload"`
	Run         string `json:"run"`
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
	Force       bool   `json:"force,omitempty"`
}

// Key возвращает ключ кэша для запроса
func (r RatioRequest) Key() RatioKey {
	return RatioKey{
		Device:      r.Device,
		Workload:    r.Workload,
		Run:         r.Run,
		Numerator:   r.Numerator,
		Denominator: r.Denominator,
	}
}

// RatiosRequest пакет запросов ("вычислить все")
type RatiosRequest struct {
	Requests []RatioRequest `json:"requests"`
}

// RatioEntry вычисленное отношение в коллекции результатов сессии
type RatioEntry struct {
	EntryID string       `json:"entry_id"`
	Ratio   *RatioSignal `json:"ratio"`
}

// RatioError ошибка вычисления одного элемента пакета
type RatioError struct {
	EntryID string `json:"entry_id"`
	Error   string `json:"error"`
}

// RatiosResponse результат пакетного вычисления
type RatiosResponse struct {
	Ratios  []RatioEntry `json:"ratios"`
	Skipped []string     `json:"skipped"`
	Errors  []RatioError `json:"errors"`
}

// ScatterRequest запрос точечной диаграммы по двум отношениям сессии
type ScatterRequest struct {
	XEntry           string `json:"x_entry"`
	YEntry           string `json:"y_entry"`
	IncludeNonFinite bool   `json:"include_non_finite,omitempty"`
}

// ScatterPoints набор точек одного класса
type ScatterPoints struct {
	X Series `json:"x"`
	Y Series `json:"y"`
}

// ScatterResponse точки диаграммы, разделенные на норму и атаку
type ScatterResponse struct {
	XName   string        `json:"x_name"`
	YName   string        `json:"y_name"`
	Idle    ScatterPoints `json:"idle"`
	Attack  ScatterPoints `json:"attack"`
	Dropped int           `json:"dropped"`
}
