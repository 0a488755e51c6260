// Package registry строит индекс устройств по каталогу данных:
// устройства -> workload -> run, упорядоченные метрики и правила атаки.
// Индекс перестраивается целиком и публикуется атомарной заменой.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vizlab-service/internal/models"
)

const (
	// MasterLogFile сводный журнал экспериментов, не является run
	MasterLogFile = "experiments_master_log.csv"
	// RunExt расширение файлов run
	RunExt = ".csv"
	// DefaultParallelism число устройств, разбираемых одновременно
	DefaultParallelism = 8
)

// Device проиндексированное устройство
type Device struct {
	Name      string
	Path      string
	Config    *DeviceConfig
	Metrics   []string
	Workloads map[string][]string

	metricSet     map[string]struct{}
	workloadNames []string
}

// HasMetric сообщает, объявлена ли метрика в конфигурации устройства
func (d *Device) HasMetric(metric string) bool {
	_, ok := d.metricSet[metric]
	return ok
}

// WorkloadNames возвращает отсортированные имена workload
func (d *Device) WorkloadNames() []string {
	return append([]string(nil), d.workloadNames...)
}

// Runs возвращает run workload'а
func (d *Device) Runs(workload string) ([]string, error) {
	runs, ok := d.Workloads[workload]
	if !ok {
		return nil, fmt.Errorf("%w: workload %q on device %q", models.ErrNotFound, workload, d.Name)
	}
	return append([]string(nil), runs...), nil
}

// HasRun сообщает, есть ли run в workload
func (d *Device) HasRun(workload, run string) bool {
	for _, r := range d.Workloads[workload] {
		if r == run {
			return true
		}
	}
	return false
}

// RunPath путь к CSV файлу run
func (d *Device) RunPath(workload, run string) string {
	return filepath.Join(d.Path, workload, run+RunExt)
}

// Snapshot неизменяемое состояние реестра на момент сборки
type Snapshot struct {
	devices  map[string]*Device
	names    []string
	warnings []error
	builtAt  time.Time
}

var emptySnapshot = &Snapshot{devices: map[string]*Device{}}

// Devices возвращает отсортированные имена устройств
func (s *Snapshot) Devices() []string {
	return append([]string(nil), s.names...)
}

// Len возвращает количество устройств
func (s *Snapshot) Len() int {
	return len(s.names)
}

// Device возвращает устройство по имени
func (s *Snapshot) Device(name string) (*Device, error) {
	d, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: device %q", models.ErrNotFound, name)
	}
	return d, nil
}

// Warnings возвращает ошибки устройств, пропущенных при сборке
func (s *Snapshot) Warnings() []error {
	return append([]error(nil), s.warnings...)
}

// BuiltAt время сборки снимка
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Registry индекс устройств с атомарной заменой снимка
type Registry struct {
	root        string
	logger      *zap.Logger
	parallelism int

	current atomic.Pointer[Snapshot]
	// mu сериализует перестроения, читатели его не берут
	mu sync.Mutex
}

// New создает пустой реестр для каталога данных
func New(root string, logger *zap.Logger) *Registry {
	r := &Registry{
		root:        root,
		logger:      logger,
		parallelism: DefaultParallelism,
	}
	r.current.Store(emptySnapshot)
	return r
}

// Build создает реестр и выполняет первую сборку
func Build(ctx context.Context, root string, logger *zap.Logger) (*Registry, error) {
	r := New(root, logger)
	if _, err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Root возвращает каталог данных
func (r *Registry) Root() string {
	return r.root
}

// Snapshot возвращает текущий снимок
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// ListDevices возвращает отсортированные имена устройств
func (r *Registry) ListDevices() []string {
	return r.Snapshot().Devices()
}

// ListWorkloads возвращает workload устройства
func (r *Registry) ListWorkloads(device string) ([]string, error) {
	d, err := r.Snapshot().Device(device)
	if err != nil {
		return nil, err
	}
	return d.WorkloadNames(), nil
}

// ListRuns возвращает run workload'а устройства
func (r *Registry) ListRuns(device, workload string) ([]string, error) {
	d, err := r.Snapshot().Device(device)
	if err != nil {
		return nil, err
	}
	return d.Runs(workload)
}

// ListMetrics возвращает метрики устройства в порядке батчей
func (r *Registry) ListMetrics(device string) ([]string, error) {
	d, err := r.Snapshot().Device(device)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), d.Metrics...), nil
}

// Warnings возвращает ошибки устройств, пропущенных при последней сборке
func (r *Registry) Warnings() []error {
	return r.Snapshot().Warnings()
}

// Reload полностью перестраивает индекс и публикует его одной атомарной заменой.
// Если не удалось разрешить ни одного устройства, прежний снимок остается в силе.
func (r *Registry) Reload(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	snap, err := r.build(ctx)
	if err != nil {
		return nil, err
	}

	r.current.Store(snap)
	r.logger.Info("registry built",
		zap.String("root", r.root),
		zap.Int("devices", snap.Len()),
		zap.Int("skipped", len(snap.warnings)),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

// build собирает новый снимок, не трогая текущий
func (r *Registry) build(ctx context.Context) (*Snapshot, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read data root %s: %v", models.ErrConfig, r.root, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !ignoredDir(e.Name()) {
			dirs = append(dirs, e.Name())
		}
	}

	devices := make([]*Device, len(dirs))
	failures := make([]error, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, name := range dirs {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			devices[i], failures[i] = loadDevice(filepath.Join(r.root, name), name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		devices: make(map[string]*Device, len(dirs)),
		builtAt: time.Now(),
	}
	var warnings error
	for i, d := range devices {
		if failures[i] != nil {
			r.logger.Warn("device skipped", zap.String("device", dirs[i]), zap.Error(failures[i]))
			warnings = multierr.Append(warnings, failures[i])
			continue
		}
		snap.devices[d.Name] = d
		snap.names = append(snap.names, d.Name)
	}
	sort.Strings(snap.names)
	snap.warnings = multierr.Errors(warnings)

	if len(snap.names) == 0 {
		return nil, fmt.Errorf("%w: no devices resolved under %s", models.ErrEmptyRegistry,
			r.root)
	}
	return snap, nil
}

// loadDevice разбирает каталог одного устройства
func loadDevice(path, name string) (*Device, error) {
	data, err := os.ReadFile(filepath.Join(path, ConfigFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: missing %s", models.ErrConfig, name, ConfigFileName)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrConfig, name, err)
	}

	cfg, err := ParseDeviceConfig(name, data)
	if err != nil {
		return nil, err
	}

	workloads, err := scanWorkloads(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrConfig, name, err)
	}

	d := &Device{
		Name:      name,
		Path:      path,
		Config:    cfg,
		Metrics:   cfg.Metrics(),
		Workloads: workloads,
		metricSet: make(map[string]struct{}),
	}
	for _, m := range d.Metrics {
		d.metricSet[m] = struct{}{}
	}
	for w := range workloads {
		d.workloadNames = append(d.workloadNames, w)
	}
	sort.Strings(d.workloadNames)
	return d, nil
}

// scanWorkloads находит workload-каталоги и их run
func scanWorkloads(devicePath string) (map[string][]string, error) {
	entries, err := os.ReadDir(devicePath)
	if err != nil {
		return nil, err
	}

	workloads := make(map[string][]string)
	for _, e := range entries {
		if !e.IsDir() || ignoredDir(e.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(devicePath, e.Name()))
		if err != nil {
			return nil, err
		}
		runs := make([]string, 0, len(files))
		for _, f := range files {
			if f.IsDir() || f.Name() == MasterLogFile || filepath.Ext(f.Name()) != RunExt {
				continue
			}
			runs = append(runs, strings.TrimSuffix(f.Name(), RunExt))
		}
		sort.Strings(runs)
		workloads[e.Name()] = runs
	}
	return workloads, nil
}

func ignoredDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "__")
}

// Locate возвращает путь к файлу run по текущему снимку
func (r *Registry) Locate(device, workload, run string) (string, error) {
	return r.Snapshot().Locate(device, workload, run)
}

// Locate возвращает путь к файлу run, проверяя устройство, workload и run
func (s *Snapshot) Locate(device, workload, run string) (string, error) {
	d, err := s.Device(device)
	if err != nil {
		return "", err
	}
	if _, ok := d.Workloads[workload]; !ok {
		return "", fmt.Errorf("%w: workload %q on device %q", models.ErrNotFound, workload, device)
	}
	if !d.HasRun(workload, run) {
		return "", fmt.Errorf("%w: run %q in %s/%s", models.ErrNotFound, run, device, workload)
	}
	return d.RunPath(workload, run), nil
}
