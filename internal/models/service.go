package models

import "time"

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Devices     int       `json:"devices"`
	RegistryAge string    `json:"registry_age"`
	Redis       string    `json:"redis"`
	Uptime      string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	SignalsServed  int64 `json:"signals_served"`
	RatiosComputed int64 `json:"ratios_computed"`
	Reloads        int64 `json:"reloads"`
	ActiveSessions int   `json:"active_sessions"`
	Devices        int   `json:"devices"`
}

// ReloadResponse результат перестроения реестра
type ReloadResponse struct {
	Status   string   `json:"status"`
	Devices  []string `json:"devices"`
	Count    int      `json:"count"`
	Warnings []string `json:"warnings,omitempty"`
}

// SessionResponse идентификатор созданной сессии
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}
