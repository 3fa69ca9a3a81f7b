package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &PostgresRepository{db: db}, nil
}

// NewRepository оборачивает уже открытое соединение. Используется в тестах
// с in-memory SQLite.
func NewRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate создаёт таблицы и частичный уникальный индекс по активным слотам.
// Индекс — последний рубеж против двойного бронирования: предварительные
// проверки в booking.Engine дают осмысленную ошибку, индекс даёт гарантию.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Account{},
		&UserProfile{},
		&Gym{},
		&GymImage{},
		&Trainer{},
		&Session{},
		&Review{},
		&GymReview{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	err = db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_slot
		 ON sessions (trainer_id, starts_at) WHERE status = 'scheduled'`,
	).Error
	if err != nil {
		return fmt.Errorf("failed to create active slot index: %w", err)
	}

	return nil
}

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// ==================== Учётные записи и профили ====================

func (r *PostgresRepository) CreateAccount(acc *Account) error {
	return translateErr(r.db.Create(acc).Error)
}

func (r *PostgresRepository) FindAccountByEmail(email string) (*Account, error) {
	var acc Account
	if err := r.db.Where("email = ?", email).First(&acc).Error; err != nil {
		return nil, translateErr(err)
	}
	return &acc, nil
}

func (r *PostgresRepository) AccountEmailTaken(email string) (bool, error) {
	var count int64
	err := r.db.Model(&Account{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *PostgresRepository) CreateProfile(p *UserProfile) error {
	return translateErr(r.db.Create(p).Error)
}

func (r *PostgresRepository) GetProfileByID(id uint) (*UserProfile, error) {
	var p UserProfile
	if err := r.db.Preload("Account").First(&p, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (r *PostgresRepository) GetProfileByAccountID(accountID uint) (*UserProfile, error) {
	var p UserProfile
	err := r.db.Preload("Account").Where("account_id = ?", accountID).First(&p).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (r *PostgresRepository) ProfileFullNameTaken(fullName string) (bool, error) {
	var count int64
	err := r.db.Model(&UserProfile{}).Where("full_name = ?", fullName).Count(&count).Error
	return count > 0, err
}

func (r *PostgresRepository) ProfilePhoneTaken(phone string) (bool, error) {
	var count int64
	err := r.db.Model(&UserProfile{}).Where("phone = ?", phone).Count(&count).Error
	return count > 0, err
}

// DeleteProfile повторяет каскад исходной схемы явным упорядоченным
// удалением: зависимые строки, профиль, учётная запись.
func (r *PostgresRepository) DeleteProfile(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var p UserProfile
		if err := tx.First(&p, id).Error; err != nil {
			return translateErr(err)
		}
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&Session{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&Review{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&GymReview{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&UserProfile{}, id).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&Account{}, p.AccountID).Error
	})
}

// ==================== Залы ====================

func containsPattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func (r *PostgresRepository) ListGyms(f GymFilter) ([]Gym, error) {
	q := r.db.Model(&Gym{}).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("Trainers")

	if f.Search != "" {
		p := containsPattern(f.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", p, p)
	}
	if f.City != "" {
		q = q.Where("LOWER(address) LIKE ?", containsPattern(f.City))
	}
	for _, amenity := range f.Amenities {
		q = q.Where("LOWER(amenities) LIKE ?", containsPattern(amenity))
	}

	switch {
	case f.OrderBy == "rating_desc":
		q = q.Order("rating DESC").Order("name")
	case f.OrderBy == "rating_asc":
		q = q.Order("rating ASC").Order("name")
	case f.OrderBy == "name":
		q = q.Order("name")
	case f.Top > 0:
		q = q.Order("rating DESC").Order("name")
	default:
		q = q.Order("name")
	}
	if f.Top > 0 {
		q = q.Limit(f.Top)
	}

	var gyms []Gym
	err := q.Find(&gyms).Error
	return gyms, err
}

func (r *PostgresRepository) GetGymByID(id uint) (*Gym, error) {
	var gym Gym
	err := r.db.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("Trainers").
		First(&gym, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &gym, nil
}

func (r *PostgresRepository) ListGymAddresses() ([]string, error) {
	var addresses []string
	err := r.db.Model(&Gym{}).Pluck("address", &addresses).Error
	return addresses, err
}

func (r *PostgresRepository) UpdateGymRating(id uint, rating float64) error {
	res := r.db.Model(&Gym{}).Where("id = ?", id).Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== Тренеры ====================

func (r *PostgresRepository) ListTrainers(f TrainerFilter) ([]Trainer, error) {
	q := r.db.Model(&Trainer{}).Preload("Gyms").Distinct("trainers.*")

	if f.Search != "" {
		q = q.Where("LOWER(full_name) LIKE ?", containsPattern(f.Search))
	}
	if f.Specialization != "" {
		q = q.Where("LOWER(specialization) LIKE ?", containsPattern(f.Specialization))
	}
	if f.GymID != 0 {
		q = q.Joins("JOIN trainer_gyms tg ON tg.trainer_id = trainers.id").
			Where("tg.gym_id = ?", f.GymID)
	}

	switch {
	case f.OrderBy == "rating_desc":
		q = q.Order("rating DESC").Order("full_name")
	case f.OrderBy == "rating_asc":
		q = q.Order("rating ASC").Order("full_name")
	case f.OrderBy == "name":
		q = q.Order("full_name")
	case f.Top > 0:
		q = q.Order("rating DESC").Order("full_name")
	default:
		q = q.Order("full_name")
	}
	if f.Top > 0 {
		q = q.Limit(f.Top)
	}

	var trainers []Trainer
	err := q.Find(&trainers).Error
	return trainers, err
}

func (r *PostgresRepository) GetTrainerByID(id uint) (*Trainer, error) {
	var trainer Trainer
	if err := r.db.Preload("Gyms").First(&trainer, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &trainer, nil
}

func (r *PostgresRepository) ListSpecializations() ([]string, error) {
	var specs []string
	err := r.db.Model(&Trainer{}).Distinct().Pluck("specialization", &specs).Error
	return specs, err
}

func (r *PostgresRepository) UpdateTrainerRating(id uint, rating float64) error {
	res := r.db.Model(&Trainer{}).Where("id = ?", id).Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteTrainer(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var trainer Trainer
		if err := tx.First(&trainer, id).Error; err != nil {
			return translateErr(err)
		}
		if err := tx.Unscoped().Where("trainer_id = ?", id).Delete(&Session{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("trainer_id = ?", id).Delete(&Review{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM trainer_gyms WHERE trainer_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&Trainer{}, id).Error
	})
}

// ==================== Записи на тренировки ====================

func (r *PostgresRepository) CreateSession(s *Session) error {
	return translateErr(r.db.Create(s).Error)
}

func (r *PostgresRepository) GetSessionByID(id uint) (*Session, error) {
	var s Session
	err := r.db.Preload("User.Account").Preload("Trainer.Gyms").First(&s, id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListSessions(f SessionFilter) ([]Session, error) {
	q := r.db.Model(&Session{}).
		Preload("User.Account").Preload("Trainer.Gyms").
		Order("starts_at DESC")

	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.TrainerID != 0 {
		q = q.Where("trainer_id = ?", f.TrainerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DateFrom != nil {
		q = q.Where("starts_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("starts_at <= ?", *f.DateTo)
	}

	var sessions []Session
	err := q.Find(&sessions).Error
	return sessions, err
}

func (r *PostgresRepository) ListScheduledSessions() ([]Session, error) {
	var sessions []Session
	err := r.db.Where("status = ?", StatusScheduled).Find(&sessions).Error
	return sessions, err
}

func (r *PostgresRepository) TrainerSessionsInWindow(trainerID uint, from, to time.Time) ([]Session, error) {
	var sessions []Session
	err := r.db.
		Where("trainer_id = ? AND status = ? AND starts_at >= ? AND starts_at < ?",
			trainerID, StatusScheduled, from, to).
		Find(&sessions).Error
	return sessions, err
}

func (r *PostgresRepository) UserSessionsInWindow(userID uint, from, to time.Time) ([]Session, error) {
	var sessions []Session
	err := r.db.
		Where("user_id = ? AND status = ? AND starts_at >= ? AND starts_at < ?",
			userID, StatusScheduled, from, to).
		Find(&sessions).Error
	return sessions, err
}

func (r *PostgresRepository) UserSlotExists(userID, trainerID uint, startsAt time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&Session{}).
		Where("user_id = ? AND trainer_id = ? AND starts_at = ? AND status = ?",
			userID, trainerID, startsAt, StatusScheduled).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresRepository) TrainerSlotTaken(trainerID uint, startsAt time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&Session{}).
		Where("trainer_id = ? AND starts_at = ? AND status = ?",
			trainerID, startsAt, StatusScheduled).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresRepository) BookedSlots(trainerID uint, from, to time.Time) ([]time.Time, error) {
	var slots []time.Time
	err := r.db.Model(&Session{}).
		Where("trainer_id = ? AND status = ? AND starts_at >= ? AND starts_at <= ?",
			trainerID, StatusScheduled, from, to).
		Order("starts_at").
		Pluck("starts_at", &slots).Error
	return slots, err
}

func (r *PostgresRepository) CASStatus(id uint, from, to SessionStatus) (bool, error) {
	res := r.db.Model(&Session{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ==================== Отзывы ====================

func (r *PostgresRepository) ListReviews(f ReviewFilter) ([]Review, error) {
	q := r.db.Model(&Review{}).Preload("User").Preload("Trainer").Order("created_at DESC")

	if f.TrainerID != 0 {
		q = q.Where("trainer_id = ?", f.TrainerID)
	}
	if f.MinRating > 0 {
		q = q.Where("rating >= ?", f.MinRating)
	}

	var reviews []Review
	err := q.Find(&reviews).Error
	return reviews, err
}

func (r *PostgresRepository) FindReview(userID, trainerID uint) (*Review, error) {
	var review Review
	err := r.db.Where("user_id = ? AND trainer_id = ?", userID, trainerID).First(&review).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &review, nil
}

func (r *PostgresRepository) SaveReview(review *Review) error {
	return translateErr(r.db.Save(review).Error)
}

func (r *PostgresRepository) TrainerRatings(trainerID uint) ([]int, error) {
	var ratings []int
	err := r.db.Model(&Review{}).Where("trainer_id = ?", trainerID).Pluck("rating", &ratings).Error
	return ratings, err
}

func (r *PostgresRepository) CountTrainerReviews(trainerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&Review{}).Where("trainer_id = ?", trainerID).Count(&count).Error
	return count, err
}

func (r *PostgresRepository) FindGymReview(userID, gymID uint) (*GymReview, error) {
	var review GymReview
	err := r.db.Where("user_id = ? AND gym_id = ?", userID, gymID).First(&review).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &review, nil
}

func (r *PostgresRepository) SaveGymReview(review *GymReview) error {
	return translateErr(r.db.Save(review).Error)
}

func (r *PostgresRepository) GymRatings(gymID uint) ([]int, error) {
	var ratings []int
	err := r.db.Model(&GymReview{}).Where("gym_id = ?", gymID).Pluck("rating", &ratings).Error
	return ratings, err
}

func (r *PostgresRepository) CountGymReviews(gymID uint) (int64, error) {
	var count int64
	err := r.db.Model(&GymReview{}).Where("gym_id = ?", gymID).Count(&count).Error
	return count, err
}

func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
