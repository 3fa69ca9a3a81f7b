package models

import (
	"time"

	"gorm.io/gorm"
)

// Account — учётная запись для входа. Профиль создаётся отдельным явным
// шагом после регистрации, а не автоматически.
type Account struct {
	gorm.Model
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
}

const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// UserProfile — профиль клиента зала, один к одному с Account.
type UserProfile struct {
	gorm.Model
	AccountID uint    `gorm:"not null;uniqueIndex"`
	Account   Account `gorm:"constraint:OnDelete:CASCADE"`
	FullName  string  `gorm:"not null;uniqueIndex"`
	Age       *int
	Gender    string  `gorm:"size:1"`
	Phone     *string `gorm:"uniqueIndex"`
}

type Gym struct {
	gorm.Model
	Name        string `gorm:"not null"`
	Address     string `gorm:"not null"`
	Description string
	// Удобства через запятую, в JSON отдаются списком.
	Amenities string
	// Кэш среднего рейтинга, пересчитывается из отзывов. Руками не правится.
	Rating   float64    `gorm:"type:decimal(3,2);default:0.00"`
	Images   []GymImage `gorm:"constraint:OnDelete:CASCADE"`
	Trainers []Trainer  `gorm:"many2many:trainer_gyms;"`
}

type GymImage struct {
	gorm.Model
	GymID     uint `gorm:"not null;index"`
	Path      string
	SortOrder int `gorm:"default:0"`
}

type Trainer struct {
	gorm.Model
	FullName       string `gorm:"not null"`
	Specialization string `gorm:"not null;index"`
	Description    string
	ImagePath      string
	Rating         float64 `gorm:"type:decimal(3,2);default:0.00"`
	Gyms           []Gym   `gorm:"many2many:trainer_gyms;"`
}

type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusCancelled SessionStatus = "cancelled"
	StatusCompleted SessionStatus = "completed"
)

// Display возвращает человекочитаемый статус для фронтенда.
func (s SessionStatus) Display() string {
	switch s {
	case StatusScheduled:
		return "Назначена"
	case StatusCancelled:
		return "Отменена"
	case StatusCompleted:
		return "Завершена"
	}
	return string(s)
}

// Session — запись на тренировку: связка пользователь-тренер-время.
// Частичный уникальный индекс (trainer_id, starts_at) по scheduled-записям
// создаётся в Migrate и страхует от двойного бронирования.
type Session struct {
	gorm.Model
	UserID    uint          `gorm:"not null;index"`
	User      UserProfile   `gorm:"constraint:OnDelete:CASCADE"`
	TrainerID uint          `gorm:"not null;index"`
	Trainer   Trainer       `gorm:"constraint:OnDelete:CASCADE"`
	StartsAt  time.Time     `gorm:"not null;index"`
	Status    SessionStatus `gorm:"size:20;not null;default:'scheduled';index"`
}

// Review — отзыв на тренера, один на пару (пользователь, тренер).
type Review struct {
	gorm.Model
	UserID    uint        `gorm:"not null;uniqueIndex:idx_reviews_user_trainer"`
	User      UserProfile `gorm:"constraint:OnDelete:CASCADE"`
	TrainerID uint        `gorm:"not null;uniqueIndex:idx_reviews_user_trainer;index"`
	Trainer   Trainer     `gorm:"constraint:OnDelete:CASCADE"`
	Text      string      `gorm:"not null"`
	Rating    int         `gorm:"not null"`
}

// GymReview — отзыв на зал, один на пару (пользователь, зал).
type GymReview struct {
	gorm.Model
	UserID uint        `gorm:"not null;uniqueIndex:idx_gym_reviews_user_gym"`
	User   UserProfile `gorm:"constraint:OnDelete:CASCADE"`
	GymID  uint        `gorm:"not null;uniqueIndex:idx_gym_reviews_user_gym;index"`
	Gym    Gym         `gorm:"constraint:OnDelete:CASCADE"`
	Text   string      `gorm:"not null"`
	Rating int         `gorm:"not null"`
}
