package models

import (
	"time"

	"gorm.io/gorm"
)

// DeployStatus определяет итог запуска скрипта деплоя.
type DeployStatus string

const (
	DeploySucceeded DeployStatus = "succeeded"
	DeployFailed    DeployStatus = "failed"
	DeployTimedOut  DeployStatus = "timed_out"
	DeployErrored   DeployStatus = "errored"
)

// DeployRecord хранит запись о запуске деплоя из чата.
// Является неизменяемой частью истории деплоев.
type DeployRecord struct {
	gorm.Model
	ChatID     int64        `gorm:"index;not null"`
	Username   string
	Branch     string       `gorm:"not null"`
	Status     DeployStatus `gorm:"index;not null"`
	ExitCode   int
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time
	Stdout     string `gorm:"type:text"`
	Stderr     string `gorm:"type:text"`
	Error      string `gorm:"type:text"`
}

// Duration возвращает длительность деплоя.
func (r *DeployRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// AlertRecord хранит отправленное watchdog'ом уведомление.
type AlertRecord struct {
	gorm.Model
	Kind       AlertKind `gorm:"index;not null"`
	IssueKey   string    `gorm:"index"`
	Text       string    `gorm:"type:text"`
	Recipients int
	Delivered  int
	Issues     JSONBMap // Активные нарушения порогов на момент отправки.
	SentAt     time.Time `gorm:"index;not null"`
}
