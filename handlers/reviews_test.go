package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReviewRecomputesTrainerRating(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedUser(t, "Иван Петров", "ivan@example.com")
	second := env.seedUser(t, "Мария Кузнецова", "maria@example.com")
	trainer := env.seedTrainer(t, "Алексей Смирнов")

	w := env.request(t, http.MethodPost, "/api/reviews/", "", map[string]interface{}{
		"user_id":    first.ID,
		"trainer_id": trainer.ID,
		"text":       "Отличный тренер, всем советую!",
		"rating":     5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	stored, err := env.repo.GetTrainerByID(trainer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.00, stored.Rating, 1e-9)

	// Второй отзыв двигает средний рейтинг в том же запросе.
	w = env.request(t, http.MethodPost, "/api/reviews/", "", map[string]interface{}{
		"user_id":    second.ID,
		"trainer_id": trainer.ID,
		"text":       "Нормально, но опаздывает на занятия",
		"rating":     4,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	stored, err = env.repo.GetTrainerByID(trainer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.50, stored.Rating, 1e-9)
}

func TestCreateReviewUpsertsExisting(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Иван Петров", "ivan@example.com")
	trainer := env.seedTrainer(t, "Алексей Смирнов")

	w := env.request(t, http.MethodPost, "/api/reviews/", "", map[string]interface{}{
		"user_id":    user.ID,
		"trainer_id": trainer.ID,
		"text":       "Отличный тренер, всем советую!",
		"rating":     5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Повторный отзыв того же пользователя обновляет существующий.
	w = env.request(t, http.MethodPost, "/api/reviews/", "", map[string]interface{}{
		"user_id":    user.ID,
		"trainer_id": trainer.ID,
		"text":       "Передумал: занятия однообразные",
		"rating":     3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "обновлен")

	count, err := env.repo.CountTrainerReviews(trainer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	stored, err := env.repo.GetTrainerByID(trainer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.00, stored.Rating, 1e-9)
}

func TestCreateReviewValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Иван Петров", "ivan@example.com")
	trainer := env.seedTrainer(t, "Алексей Смирнов")

	tests := []struct {
		name   string
		text   string
		rating int
	}{
		{"рейтинг вне шкалы", "Отличный тренер, всем советую!", 6},
		{"слишком короткий текст", "Супер", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, http.MethodPost, "/api/reviews/", "", map[string]interface{}{
				"user_id":    user.ID,
				"trainer_id": trainer.ID,
				"text":       tt.text,
				"rating":     tt.rating,
			})
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListReviewsFiltersByTrainerAndRating(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedUser(t, "Иван Петров", "ivan@example.com")
	second := env.seedUser(t, "Мария Кузнецова", "maria@example.com")
	trainer := env.seedTrainer(t, "Алексей Смирнов")

	for _, r := range []struct {
		userID uint
		rating int
	}{{first.ID, 5}, {second.ID, 3}} {
		w := env.request(t, http.MethodPost, "/api/reviews/", "", map[string]interface{}{
			"user_id":    r.userID,
			"trainer_id": trainer.ID,
			"text":       "Развёрнутое мнение о тренере",
			"rating":     r.rating,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.request(t, http.MethodGet, "/api/reviews/?trainer="+strconv.Itoa(int(trainer.ID))+"&min_rating=4", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])

	// Фильтр по несуществующему тренеру — ошибка, а не пустой список.
	w = env.request(t, http.MethodGet, "/api/reviews/?trainer=999", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateGymReviewUpsertsAndRecomputes(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "Иван Петров", "ivan@example.com")
	token := env.login(t, user.ID)

	gym := env.seedGym(t, "Качалка на Ленина", "ул. Ленина 1, Москва")

	// Без авторизации зал не отрецензировать.
	w := env.request(t, http.MethodPost, "/api/gym-reviews/", "", map[string]interface{}{
		"gym_id": gym.ID,
		"text":   "Просторный зал, хорошее железо",
		"rating": 4,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(t, http.MethodPost, "/api/gym-reviews/", token, map[string]interface{}{
		"gym_id": gym.ID,
		"text":   "Просторный зал, хорошее железо",
		"rating": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	stored, err := env.repo.GetGymByID(gym.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.00, stored.Rating, 1e-9)

	// Повторный отзыв того же пользователя обновляет существующий.
	w = env.request(t, http.MethodPost, "/api/gym-reviews/", token, map[string]interface{}{
		"gym_id": gym.ID,
		"text":   "После ремонта стало ещё лучше",
		"rating": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "обновлен")

	count, err := env.repo.CountGymReviews(gym.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	stored, err = env.repo.GetGymByID(gym.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.00, stored.Rating, 1e-9)
}
