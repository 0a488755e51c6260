package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce пауза после последнего события перед перестроением
const DefaultDebounce = 500 * time.Millisecond

// Watcher перестраивает реестр при изменениях в каталоге данных.
// Следит за корнем, каталогами устройств и workload.
type Watcher struct {
	reloader *Reloader
	root     string
	debounce time.Duration
	logger   *zap.Logger
	fs       *fsnotify.Watcher
}

// NewWatcher создает наблюдатель каталога данных
func NewWatcher(reloader *Reloader, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		reloader: reloader,
		root:     reloader.registry.Root(),
		debounce: debounce,
		logger:   logger,
		fs:       fs,
	}
	if err := w.watchTree(); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

// watchTree добавляет корень и два уровня подкаталогов
func (w *Watcher) watchTree() error {
	if err := w.fs.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	devices, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if !d.IsDir() || ignoredDir(d.Name()) {
			continue
		}
		devicePath := filepath.Join(w.root, d.Name())
		if err := w.fs.Add(devicePath); err != nil {
			w.logger.Warn("cannot watch device dir", zap.String("path", devicePath), zap.Error(err))
			continue
		}
		workloads, err := os.ReadDir(devicePath)
		if err != nil {
			continue
		}
		for _, wl := range workloads {
			if wl.IsDir() && !ignoredDir(wl.Name()) {
				_ = w.fs.Add(filepath.Join(devicePath, wl.Name()))
			}
		}
	}
	return nil
}

// Run обрабатывает события до отмены контекста
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			pending = false
			if retry := w.reload(ctx); retry > 0 {
				// изменение не применено, пробуем снова без нового события
				timer.Reset(retry)
				pending = true
			}
		}
	}
}

// reload перестраивает реестр. Возвращает паузу перед повтором,
// если перестроение отклонил ограничитель, иначе 0.
func (w *Watcher) reload(ctx context.Context) time.Duration {
	snap, err := w.reloader.Reload(ctx)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			retry := w.reloader.Delay()
			if retry < w.debounce {
				retry = w.debounce
			}
			w.logger.Debug("watcher reload throttled", zap.Duration("retry_in", retry))
			return retry
		}
		w.logger.Warn("watcher reload failed", zap.Error(err))
		return 0
	}
	w.logger.Info("registry reloaded after data root change", zap.Int("devices", snap.Len()))
	// новые каталоги устройств и workload тоже должны наблюдаться
	if err := w.watchTree(); err != nil {
		w.logger.Warn("failed to refresh watch list", zap.Error(err))
	}
	return 0
}
