package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vizlab-service/internal/metrics"
	"vizlab-service/internal/models"
)

// Session контекст одной интерактивной сессии: кэш отношений и текущая
// коллекция построенных отношений. Создается при открытии сессии,
// уничтожается при закрытии или по простою. Никуда не сохраняется.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	cache    map[models.RatioKey]*models.RatioSignal
	results  []models.RatioEntry
	lastUsed time.Time

	flight singleflight.Group
}

// NewSession создает пустую сессию
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		cache:     make(map[models.RatioKey]*models.RatioSignal),
		lastUsed:  now,
	}
}

// Cached возвращает отношение из кэша
func (s *Session) Cached(key models.RatioKey) (*models.RatioSignal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.cache[key]
	return r, ok
}

// Store сохраняет отношение в кэше
func (s *Session) Store(key models.RatioKey, r *models.RatioSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = r
}

// Invalidate удаляет отношение из кэша
func (s *Session) Invalidate(key models.RatioKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
}

// CacheLen возвращает количество отношений в кэше
func (s *Session) CacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Results возвращает коллекцию построенных отношений в порядке элементов
func (s *Session) Results() []models.RatioEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RatioEntry(nil), s.results...)
}

// Result возвращает отношение элемента коллекции
func (s *Session) Result(entryID string) (*models.RatioSignal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.results {
		if e.EntryID == entryID {
			return e.Ratio, true
		}
	}
	return nil, false
}

// PutResult добавляет или заменяет один элемент коллекции
func (s *Session) PutResult(entryID string, r *models.RatioSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.results {
		if e.EntryID == entryID {
			s.results[i].Ratio = r
			return
		}
	}
	s.results = append(s.results, models.RatioEntry{EntryID: entryID, Ratio: r})
}

// ReplaceResults заменяет коллекцию целиком, без слияния с прежней
func (s *Session) ReplaceResults(entries []models.RatioEntry) {
	next := append([]models.RatioEntry(nil), entries...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = next
}

// ClearResults очищает коллекцию, кэш сохраняется
func (s *Session) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastUsed)
}

// SessionStore хранит активные сессии в памяти процесса
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionStore создает хранилище сессий
func NewSessionStore(logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		logger:   logger,
		now:      time.Now,
	}
}

// Create открывает новую сессию
func (st *SessionStore) Create() *Session {
	sess := NewSession(uuid.NewString())
	sess.lastUsed = st.now()

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	st.logger.Debug("session created", zap.String("session", sess.ID))
	return sess
}

// Get возвращает сессию и продлевает ее жизнь
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", models.ErrNotFound, id)
	}
	sess.touch(st.now())
	return sess, nil
}

// Delete закрывает сессию вместе с ее кэшем
func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: session %q", models.ErrNotFound, id)
	}
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Len возвращает количество активных сессий
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep удаляет сессии, простаивающие дольше ttl
func (st *SessionStore) Sweep(ttl time.Duration) int {
	now := st.now()

	st.mu.Lock()
	removed := 0
	for id, sess := range st.sessions {
		if sess.idleSince(now) > ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	if removed > 0 {
		st.logger.Info("idle sessions evicted", zap.Int("removed", removed), zap.Int("active", n))
	}
	return removed
}

// RunSweeper периодически удаляет простаивающие сессии до отмены контекста
func (st *SessionStore) RunSweeper(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st.Sweep(ttl)
		}
	}
}
