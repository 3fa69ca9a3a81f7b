package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kachalka/models"
)

func newTestRepo(t *testing.T) (models.Repository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return models.NewRepository(db), db
}

func TestMean(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"без отзывов", nil, 0},
		{"один отзыв", []int{5}, 5.00},
		{"целое среднее", []int{5, 3, 4}, 4.00},
		{"обычное округление вверх", []int{4, 4, 5}, 4.33},
		{"ровно половина", []int{1, 2}, 1.50},
		// Банковское округление: 3300/8 = 412.5 -> 4.12 (к чётному),
		// 3500/8 = 437.5 -> 4.38 (к чётному).
		{"половина к чётному вниз", []int{5, 5, 5, 5, 5, 4, 2, 2}, 4.12},
		{"половина к чётному вверх", []int{5, 5, 5, 5, 5, 5, 4, 1}, 4.38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Mean(tt.ratings), 1e-9)
		})
	}
}

func TestMeanIsOrderInvariant(t *testing.T) {
	perms := [][]int{
		{5, 3, 4},
		{3, 4, 5},
		{4, 5, 3},
	}
	for _, p := range perms {
		assert.InDelta(t, 4.00, Mean(p), 1e-9)
	}
}

func TestRecomputeTrainerPersistsAverage(t *testing.T) {
	repo, db := newTestRepo(t)
	aggregator := NewAggregator(repo)

	trainer := models.Trainer{FullName: "Алексей Смирнов", Specialization: "Кроссфит"}
	require.NoError(t, db.Create(&trainer).Error)

	for i, r := range []int{5, 3, 4} {
		acc := models.Account{Email: string(rune('a'+i)) + "@example.com", PasswordHash: "x"}
		require.NoError(t, db.Create(&acc).Error)
		p := models.UserProfile{AccountID: acc.ID, FullName: "Клиент " + string(rune('А'+i))}
		require.NoError(t, db.Create(&p).Error)
		review := models.Review{UserID: p.ID, TrainerID: trainer.ID, Text: "Отличный тренер!", Rating: r}
		require.NoError(t, db.Create(&review).Error)
	}

	avg, err := aggregator.RecomputeTrainer(trainer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.00, avg, 1e-9)

	stored, err := repo.GetTrainerByID(trainer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.00, stored.Rating, 1e-9)
}

func TestRecomputeTrainerWithoutReviewsResetsToZero(t *testing.T) {
	repo, db := newTestRepo(t)
	aggregator := NewAggregator(repo)

	trainer := models.Trainer{FullName: "Алексей Смирнов", Specialization: "Кроссфит", Rating: 4.5}
	require.NoError(t, db.Create(&trainer).Error)

	avg, err := aggregator.RecomputeTrainer(trainer.ID)
	require.NoError(t, err)
	assert.Zero(t, avg)

	stored, err := repo.GetTrainerByID(trainer.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Rating)
}

func TestRecomputeGymPersistsAverage(t *testing.T) {
	repo, db := newTestRepo(t)
	aggregator := NewAggregator(repo)

	gym := models.Gym{Name: "Качалка на Ленина", Address: "ул. Ленина 1, Москва"}
	require.NoError(t, db.Create(&gym).Error)

	acc := models.Account{Email: "user@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&acc).Error)
	p := models.UserProfile{AccountID: acc.ID, FullName: "Иван Петров"}
	require.NoError(t, db.Create(&p).Error)
	review := models.GymReview{UserID: p.ID, GymID: gym.ID, Text: "Просторный зал, хорошее железо", Rating: 4}
	require.NoError(t, db.Create(&review).Error)

	avg, err := aggregator.RecomputeGym(gym.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.00, avg, 1e-9)

	stored, err := repo.GetGymByID(gym.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.00, stored.Rating, 1e-9)
}
