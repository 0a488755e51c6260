package cache

import "sync"

// MemoryCounters счетчики в памяти процесса, когда Redis недоступен
type MemoryCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounters создает счетчики в памяти
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{values: make(map[string]int64)}
}

// IncrementCounter увеличивает счетчик
func (m *MemoryCounters) IncrementCounter(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key]++
	return m.values[key], nil
}

// GetCounter возвращает значение счетчика
func (m *MemoryCounters) GetCounter(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}
