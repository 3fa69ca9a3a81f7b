package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// GymFilter — параметры выборки залов (GET /api/gyms/).
type GymFilter struct {
	Search    string
	City      string
	Amenities []string
	OrderBy   string // rating_desc, rating_asc, name
	Top       int
}

// TrainerFilter — параметры выборки тренеров (GET /api/trainers/).
type TrainerFilter struct {
	Search         string
	GymID          uint
	Specialization string
	OrderBy        string
	Top            int
}

// ReviewFilter — параметры выборки отзывов на тренеров.
type ReviewFilter struct {
	TrainerID uint
	MinRating int
}

// SessionFilter — параметры выборки записей на тренировки.
type SessionFilter struct {
	UserID    uint
	TrainerID uint
	Status    SessionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
}

// Repository — персистентный слой поверх PostgreSQL. Бизнес-логика
// бронирования живёт в пакете booking, здесь только find/filter/create/update.
type Repository interface {
	// Учётные записи и профили.
	CreateAccount(acc *Account) error
	FindAccountByEmail(email string) (*Account, error)
	AccountEmailTaken(email string) (bool, error)
	CreateProfile(p *UserProfile) error
	GetProfileByID(id uint) (*UserProfile, error)
	GetProfileByAccountID(accountID uint) (*UserProfile, error)
	ProfileFullNameTaken(fullName string) (bool, error)
	ProfilePhoneTaken(phone string) (bool, error)
	// DeleteProfile каскадно удаляет записи и отзывы профиля, затем сам
	// профиль и учётную запись, в одной транзакции.
	DeleteProfile(id uint) error

	// Залы и тренеры.
	ListGyms(f GymFilter) ([]Gym, error)
	GetGymByID(id uint) (*Gym, error)
	ListGymAddresses() ([]string, error)
	UpdateGymRating(id uint, rating float64) error
	ListTrainers(f TrainerFilter) ([]Trainer, error)
	GetTrainerByID(id uint) (*Trainer, error)
	ListSpecializations() ([]string, error)
	UpdateTrainerRating(id uint, rating float64) error
	// DeleteTrainer каскадно удаляет записи, отзывы и связи с залами.
	DeleteTrainer(id uint) error

	// Записи на тренировки.
	CreateSession(s *Session) error
	GetSessionByID(id uint) (*Session, error)
	ListSessions(f SessionFilter) ([]Session, error)
	ListScheduledSessions() ([]Session, error)
	// Scheduled-записи тренера/пользователя со стартом в [from, to).
	TrainerSessionsInWindow(trainerID uint, from, to time.Time) ([]Session, error)
	UserSessionsInWindow(userID uint, from, to time.Time) ([]Session, error)
	UserSlotExists(userID, trainerID uint, startsAt time.Time) (bool, error)
	TrainerSlotTaken(trainerID uint, startsAt time.Time) (bool, error)
	BookedSlots(trainerID uint, from, to time.Time) ([]time.Time, error)
	// CASStatus атомарно переводит запись из статуса from в to.
	// Возвращает false, если запись уже не в статусе from.
	CASStatus(id uint, from, to SessionStatus) (bool, error)

	// Отзывы.
	ListReviews(f ReviewFilter) ([]Review, error)
	FindReview(userID, trainerID uint) (*Review, error)
	SaveReview(r *Review) error
	TrainerRatings(trainerID uint) ([]int, error)
	CountTrainerReviews(trainerID uint) (int64, error)
	FindGymReview(userID, gymID uint) (*GymReview, error)
	SaveGymReview(r *GymReview) error
	GymRatings(gymID uint) ([]int, error)
	CountGymReviews(gymID uint) (int64, error)

	Close() error
}
