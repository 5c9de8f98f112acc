package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Статусы записи в очереди джукбокса.
// Переходы только вперёд: queued -> playing -> played | skipped.
const (
	StatusQueued  = "queued"
	StatusPlaying = "playing"
	StatusPlayed  = "played"
	StatusSkipped = "skipped"
)

type User struct {
	gorm.Model
	Name         string `gorm:"not null"`
	Surname      string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:student"` // student или teacher
}

type Room struct {
	gorm.Model
	Name     string `gorm:"not null"`             // Название класса/комнаты
	Code     string `gorm:"uniqueIndex;not null"` // Код для подключения учеников
	OwnerID  uint   `gorm:"index;not null"`       // Преподаватель, создавший комнату
	Owner    User   `gorm:"foreignKey:OwnerID"`
	IsActive bool   `gorm:"default:true"` // Флаг активности комнаты
}

type QueueEntry struct {
	gorm.Model
	RoomID      uint   `gorm:"index;not null"`
	SubmittedBy uint   `gorm:"index;not null"`
	User        User   `gorm:"foreignKey:SubmittedBy"`
	MediaRef    string `gorm:"not null"` // Идентификатор видео на YouTube
	Title       string
	Thumbnail   string
	DurationSec int64
	Status      string     `gorm:"index;not null;default:queued"`
	StartedAt   *time.Time // Момент перехода в playing (nil — ещё не играл)
}
