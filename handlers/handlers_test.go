package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kachalka/booking"
	"kachalka/config"
	"kachalka/middleware"
	"kachalka/models"
	"kachalka/rating"
)

// fakeCache — in-memory замена Redis для тестов: токены и кэш списков
// живут в обычной map.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) GetFromCache(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeCache) SetToCache(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) DeleteFromCache(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) Close() error { return nil }

type testEnv struct {
	db     *gorm.DB
	repo   models.Repository
	cache  *fakeCache
	clock  *booking.FixedClock
	cfg    *config.Config
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	cfg := &config.Config{
		Location:        loc,
		BookingHorizon:  30 * 24 * time.Hour,
		SessionDuration: time.Hour,
		CompletionGrace: 90 * time.Minute,
		OpenHour:        8,
		CloseHour:       21,
		AuthTokenTTL:    24 * time.Hour,
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	repo := models.NewRepository(db)
	cache := newFakeCache()
	clock := &booking.FixedClock{Time: time.Date(2026, 6, 1, 12, 0, 0, 0, loc)}

	engine := booking.NewEngine(repo, clock, cfg)
	lifecycle := booking.NewLifecycle(repo, clock, cfg)
	aggregator := rating.NewAggregator(repo)

	authHandler := NewAuthHandler(repo, cache, cfg.AuthTokenTTL)
	gymHandler := NewGymHandler(repo, cache)
	trainerHandler := NewTrainerHandler(repo, clock, cfg)
	reviewHandler := NewReviewHandler(repo, aggregator, nil)
	recordHandler := NewRecordHandler(repo, engine, lifecycle, nil, loc)
	userHandler := NewUserHandler(repo, loc)

	router := gin.New()
	router.Use(middleware.Authenticate(repo, cache))

	api := router.Group("/api")
	{
		api.POST("/register/", authHandler.Register)
		api.POST("/auth/login/", authHandler.Login)
		api.POST("/auth/logout/", authHandler.Logout)
		api.GET("/auth/current-user/", authHandler.CurrentUser)

		api.GET("/gyms/", gymHandler.ListGyms)
		api.GET("/gyms/:id/", gymHandler.GetGym)
		api.GET("/cities/", gymHandler.ListCities)

		api.GET("/trainers/", trainerHandler.ListTrainers)
		api.GET("/trainers/:id/", trainerHandler.GetTrainer)
		api.GET("/specializations/", trainerHandler.ListSpecializations)

		api.GET("/reviews/", reviewHandler.ListReviews)
		api.POST("/reviews/", reviewHandler.CreateReview)
		api.POST("/gym-reviews/", middleware.RequireAuth(), reviewHandler.CreateGymReview)

		api.GET("/users/:id/", userHandler.GetUser)

		api.GET("/records/", recordHandler.ListRecords)
		api.POST("/records/create/", recordHandler.CreateRecords)
		api.POST("/records/:id/cancel/", recordHandler.CancelRecord)
	}

	return &testEnv{db: db, repo: repo, cache: cache, clock: clock, cfg: cfg, router: router}
}

func (e *testEnv) seedUser(t *testing.T, name, email string) *models.UserProfile {
	t.Helper()

	acc := models.Account{Email: email, PasswordHash: "x"}
	require.NoError(t, e.db.Create(&acc).Error)
	p := models.UserProfile{AccountID: acc.ID, FullName: name}
	require.NoError(t, e.db.Create(&p).Error)
	p.Account = acc
	return &p
}

func (e *testEnv) seedTrainer(t *testing.T, name string) *models.Trainer {
	t.Helper()

	tr := models.Trainer{FullName: name, Specialization: "Кроссфит"}
	require.NoError(t, e.db.Create(&tr).Error)
	return &tr
}

func (e *testEnv) seedGym(t *testing.T, name, address string) *models.Gym {
	t.Helper()

	gym := models.Gym{Name: name, Address: address}
	require.NoError(t, e.db.Create(&gym).Error)
	return &gym
}

// login кладёт токен в fake-кэш напрямую, минуя форму входа.
func (e *testEnv) login(t *testing.T, profileID uint) string {
	t.Helper()

	token := "test-token-" + time.Now().Format("150405.000000000")
	require.NoError(t, e.cache.SetToCache(context.Background(),
		middleware.AuthTokenKey(token), jsonNumber(profileID), 0))
	return token
}

func jsonNumber(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
