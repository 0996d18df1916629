package models

import "time"

// AlertKind - тип уведомления watchdog'а.
type AlertKind string

const (
	AlertMonitoringStarted AlertKind = "monitoring_started"
	AlertBackendDown       AlertKind = "backend_down"
	AlertBackendRecovered  AlertKind = "backend_recovered"
	AlertThresholdExceeded AlertKind = "threshold_exceeded"
	AlertThresholdCleared  AlertKind = "threshold_recovered"
	AlertMonitoringError   AlertKind = "monitoring_error"
)

// Alert - уведомление, сформированное одним циклом watchdog'а.
type Alert struct {
	Kind     AlertKind
	IssueKey IssueKey
	Text     string
	At       time.Time
}

// DeployResult - результат выполнения скрипта деплоя.
type DeployResult struct {
	Branch   string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Delivery - итог рассылки одного сообщения.
type Delivery struct {
	Recipients int
	Delivered  int
}
