package analytics

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vizlab-service/internal/labels"
	"vizlab-service/internal/metrics"
	"vizlab-service/internal/models"
)

// SignalSource источник исходных сигналов для отношений
type SignalSource interface {
	GetSignal(key models.SignalKey) (*models.Signal, error)
}

// Engine вычисляет производные отношения и кэширует их в сессии
type Engine struct {
	source    SignalSource
	logger    *zap.Logger
	onCompute func(models.RatioKey)
}

// NewEngine создает движок отношений
func NewEngine(source SignalSource, logger *zap.Logger) *Engine {
	return &Engine{
		source: source,
		logger: logger,
	}
}

// OnCompute регистрирует обработчик каждого фактического вычисления (не попадания в кэш).
// Вызывать до начала работы.
func (e *Engine) OnCompute(fn func(models.RatioKey)) {
	e.onCompute = fn
}

// ComputeRatio возвращает отношение из кэша сессии или вычисляет его.
// Force пересчитывает отношение, даже если оно уже в кэше.
// Второе значение сообщает, взят ли результат из кэша.
func (e *Engine) ComputeRatio(sess *Session, req models.RatioRequest) (*models.RatioSignal, bool, error) {
	key := req.Key()
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	if req.Force {
		sess.Invalidate(key)
	} else if r, ok := sess.Cached(key); ok {
		metrics.RatioCacheHits.Inc()
		return r, true, nil
	}
	metrics.RatioCacheMisses.Inc()

	// одновременные запросы одного ключа в сессии вычисляются один раз
	v, err, _ := sess.flight.Do(flightKey(key), func() (interface{}, error) {
		if r, ok := sess.Cached(key); ok {
			return r, nil
		}
		r, err := e.compute(key)
		if err != nil {
			return nil, err
		}
		sess.Store(key, r)
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*models.RatioSignal), false, nil
}

// ComputeAll вычисляет пакет отношений ("вычислить все").
// Запросы с незаполненными полями пропускаются, ошибки отдельных элементов
// не прерывают пакет. Повторный entry_id (в том числе совпавший с номером
// элемента без entry_id) считается ошибкой элемента. Коллекция результатов сессии заменяется целиком.
func (e *Engine) ComputeAll(sess *Session, reqs []models.RatioRequest) models.RatiosResponse {
	resp := models.RatiosResponse{
		Ratios:  make([]models.RatioEntry, 0, len(reqs)),
		Skipped: make([]string, 0),
		Errors:  make([]models.RatioError, 0),
	}

	seen := make(map[string]struct{}, len(reqs))
	for i, req := range reqs {
		entryID := req.EntryID
		if entryID == "" {
			entryID = strconv.Itoa(i)
		}
		if _, dup := seen[entryID]; dup {
			err := fmt.Errorf("%w: duplicate entry_id %q", models.ErrInvalidRequest, entryID)
			resp.Errors = append(resp.Errors, models.RatioError{EntryID: entryID, Error: err.Error()})
			continue
		}
		seen[entryID] = struct{}{}
		if !req.Key().Complete() {
			resp.Skipped = append(resp.Skipped, entryID)
			continue
		}

		r, _, err := e.ComputeRatio(sess, req)
		if err != nil {
			e.logger.Debug("ratio entry failed", zap.String("entry", entryID), zap.Error(err))
			resp.Errors = append(resp.Errors, models.RatioError{EntryID: entryID, Error: err.Error()})
			continue
		}
		resp.Ratios = append(resp.Ratios, models.RatioEntry{EntryID: entryID, Ratio: r})
	}

	sess.ReplaceResults(resp.Ratios)
	return resp
}

// compute загружает оба сигнала и строит отношение
func (e *Engine) compute(key models.RatioKey) (*models.RatioSignal, error) {
	start := time.Now()
	defer func() {
		metrics.RatioLatency.Observe(time.Since(start).Seconds())
	}()

	num, err := e.source.GetSignal(key.NumeratorKey())
	if err != nil {
		return nil, fmt.Errorf("numerator: %w", err)
	}
	den, err := e.source.GetSignal(key.DenominatorKey())
	if err != nil {
		return nil, fmt.Errorf("denominator: %w", err)
	}

	r := BuildRatio(key, num, den)
	if e.onCompute != nil {
		e.onCompute(key)
	}
	e.logger.Debug("ratio computed",
		zap.String("ratio", key.DisplayName()),
		zap.Int("length", r.Len()),
		zap.Int("non_finite", r.Summary.NonFinite),
	)
	return r, nil
}

// BuildRatio строит отношение двух сигналов: обрезка до общей длины с индекса 0,
// поэлементное деление (NaN при нулевом знаменателе), объединение меток через ИЛИ
func BuildRatio(key models.RatioKey, num, den *models.Signal) *models.RatioSignal {
	n := num.Len()
	if den.Len() < n {
		n = den.Len()
	}

	values := Divide(num.Values[:n], den.Values[:n])
	merged := labels.Merge(num.Labels.Values[:n], den.Labels.Values[:n])

	x := make([]int, n)
	for i := range x {
		if i < len(num.Time.Values) {
			x[i] = num.Time.Values[i]
		} else {
			x[i] = i
		}
	}

	return &models.RatioSignal{
		RatioKey:    key,
		Name:        key.Name(),
		DisplayName: key.DisplayName(),
		X:           x,
		Values:      values,
		Labels:      merged,
		Summary:     Summarize(values, merged),
	}
}

// Divide делит поэлементно. При нулевом знаменателе результат NaN:
// не паника и не подстановка 0. Нечисловой результат также приводится к NaN.
func Divide(num, den []float64) models.Series {
	n := len(num)
	if len(den) < n {
		n = len(den)
	}
	out := make(models.Series, n)
	for i := 0; i < n; i++ {
		if den[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		v := num[i] / den[i]
		if !isFinite(v) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

func validateKey(key models.RatioKey) error {
	if !key.Complete() {
		return fmt.Errorf("%w: device, workload, run, numerator and denominator are required", models.ErrInvalidRequest)
	}
	if key.Numerator == key.Denominator {
		return fmt.Errorf("%w: numerator and denominator must be different metrics", models.ErrInvalidRequest)
	}
	return nil
}

func flightKey(k models.RatioKey) string {
	return k.Device + "\x00" + k.Workload + "\x00" + k.Run + "\x00" + k.Numerator + "\x00" + k.Denominator
}
