package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kachalka/middleware"
	"kachalka/models"
	"kachalka/rating"
	"kachalka/utils"
)

const eventsTopic = "booking_events"

type ReviewHandler struct {
	repo       models.Repository
	aggregator *rating.Aggregator
	kafka      utils.KafkaProducer
}

func NewReviewHandler(repo models.Repository, aggregator *rating.Aggregator, kafka utils.KafkaProducer) *ReviewHandler {
	return &ReviewHandler{repo: repo, aggregator: aggregator, kafka: kafka}
}

type reviewRequest struct {
	UserID    uint   `json:"user_id"`
	TrainerID uint   `json:"trainer_id" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
}

func validateReviewBody(text string, ratingValue int) (string, string) {
	text = strings.TrimSpace(text)
	switch {
	case ratingValue < 1 || ratingValue > 5:
		return text, "Рейтинг должен быть от 1 до 5"
	case text == "":
		return text, "Текст отзыва не может быть пустым"
	case len([]rune(text)) < 10:
		return text, "Отзыв должен содержать минимум 10 символов"
	case len([]rune(text)) > 1000:
		return text, "Отзыв не может быть длиннее 1000 символов"
	}
	return text, ""
}

// ListReviews отдаёт отзывы на тренеров.
// GET /api/reviews/?trainer=<id>&min_rating=<n>
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	var f models.ReviewFilter
	if raw := c.Query("trainer"); raw != "" {
		trainerID, err := parseID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trainer ID format"})
			return
		}
		if _, err := h.repo.GetTrainerByID(trainerID); err != nil {
			if err == models.ErrNotFound {
				c.JSON(http.StatusBadRequest, gin.H{"error": "trainer not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		f.TrainerID = trainerID
	}
	if raw := c.Query("min_rating"); raw != "" {
		minRating, err := strconv.Atoi(raw)
		if err != nil || minRating < 1 || minRating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_rating"})
			return
		}
		f.MinRating = minRating
	}

	reviews, err := h.repo.ListReviews(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]ReviewView, 0, len(reviews))
	for i := range reviews {
		views = append(views, toReviewView(&reviews[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reviews": views, "count": len(views)})
}

// CreateReview создаёт или обновляет отзыв на тренера. Один отзыв на
// пару (пользователь, тренер); рейтинг тренера пересчитывается сразу
// же, в том же запросе.
// POST /api/reviews/
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат JSON"})
		return
	}

	userID := req.UserID
	if profile, ok := middleware.CurrentProfile(c); ok {
		userID = profile.ID
	}
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не указан пользователь"})
		return
	}

	text, msg := validateReviewBody(req.Text, req.Rating)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
		return
	}

	user, err := h.repo.GetProfileByID(userID)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь или тренер не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	trainer, err := h.repo.GetTrainerByID(req.TrainerID)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь или тренер не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	event := "review_created"
	message := "Отзыв успешно создан"
	review, err := h.repo.FindReview(user.ID, trainer.ID)
	switch err {
	case nil:
		// Повторный отзыв того же пользователя обновляет существующий.
		review.Text = text
		review.Rating = req.Rating
		event = "review_updated"
		message = "Отзыв успешно обновлен"
	case models.ErrNotFound:
		review = &models.Review{
			UserID:    user.ID,
			TrainerID: trainer.ID,
			Text:      text,
			Rating:    req.Rating,
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.SaveReview(review); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.aggregator.RecomputeTrainer(trainer.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	review.User = *user
	review.Trainer = *trainer
	h.sendEvent(event, gin.H{
		"review_id":  review.ID,
		"trainer_id": trainer.ID,
		"user_id":    user.ID,
		"rating":     review.Rating,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"review":  toReviewView(review),
	})
}

type gymReviewRequest struct {
	GymID  uint   `json:"gym_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
	Rating int    `json:"rating" binding:"required"`
}

// CreateGymReview создаёт или обновляет отзыв на зал от текущего
// пользователя и пересчитывает рейтинг зала.
// POST /api/gym-reviews/
func (h *ReviewHandler) CreateGymReview(c *gin.Context) {
	profile, ok := middleware.CurrentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	var req gymReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат JSON"})
		return
	}

	text, msg := validateReviewBody(req.Text, req.Rating)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	gym, err := h.repo.GetGymByID(req.GymID)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь или зал не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	event := "gym_review_created"
	message := "Отзыв успешно создан"
	review, err := h.repo.FindGymReview(profile.ID, gym.ID)
	switch err {
	case nil:
		review.Text = text
		review.Rating = req.Rating
		event = "gym_review_updated"
		message = "Отзыв успешно обновлен"
	case models.ErrNotFound:
		review = &models.GymReview{
			UserID: profile.ID,
			GymID:  gym.ID,
			Text:   text,
			Rating: req.Rating,
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.SaveGymReview(review); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.aggregator.RecomputeGym(gym.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sendEvent(event, gin.H{
		"review_id": review.ID,
		"gym_id":    gym.ID,
		"user_id":   profile.ID,
		"rating":    review.Rating,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"review":  toGymReviewView(review, gym, profile),
	})
}

func (h *ReviewHandler) sendEvent(eventType string, payload gin.H) {
	if h.kafka == nil {
		return
	}
	go func() {
		payload["event"] = eventType
		sendRawEvent(h.kafka, eventsTopic, payload)
	}()
}

func sendRawEvent(producer utils.KafkaProducer, topic string, event interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal Kafka event: %v", err)
		return
	}

	if err := producer.SendMessage(ctx, topic, nil, jsonData); err != nil {
		log.Printf("Failed to send Kafka message: %v", err)
	}
}
