package dataset

import (
	"fmt"

	"vizlab-service/internal/models"
)

// Locator разрешает путь к файлу run
type Locator interface {
	Locate(device, workload, run string) (string, error)
}

// Loader читает сигналы из CSV файлов. Не кэширует: каждый вызов перечитывает файл.
type Loader struct {
	locator Locator
}

// NewLoader создает загрузчик
func NewLoader(locator Locator) *Loader {
	return &Loader{locator: locator}
}

// LoadFrame читает файл run целиком
func (l *Loader) LoadFrame(device, workload, run string) (*Frame, error) {
	path, err := l.locator.Locate(device, workload, run)
	if err != nil {
		return nil, err
	}
	return ReadFrame(path)
}

// Load возвращает значения метрики в порядке строк файла
func (l *Loader) Load(device, workload, run, metric string) ([]float64, error) {
	fr, err := l.LoadFrame(device, workload, run)
	if err != nil {
		return nil, err
	}
	values, err := fr.Column(metric)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", models.SignalKey{Device: device, Workload: workload, Run: run, Metric: metric}.ID(), err)
	}
	return values, nil
}
