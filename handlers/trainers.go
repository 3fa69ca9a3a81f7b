package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kachalka/booking"
	"kachalka/config"
	"kachalka/models"
)

type TrainerHandler struct {
	repo  models.Repository
	clock booking.Clock
	cfg   *config.Config
}

func NewTrainerHandler(repo models.Repository, clock booking.Clock, cfg *config.Config) *TrainerHandler {
	return &TrainerHandler{repo: repo, clock: clock, cfg: cfg}
}

// ListTrainers отдаёт тренеров с фильтрацией.
// GET /api/trainers/?search=&gym=&specialization=&top=&order_by=
func (h *TrainerHandler) ListTrainers(c *gin.Context) {
	f := models.TrainerFilter{
		Search:         strings.TrimSpace(c.Query("search")),
		Specialization: strings.TrimSpace(c.Query("specialization")),
		OrderBy:        c.Query("order_by"),
	}
	if gymID, err := strconv.ParseUint(c.Query("gym"), 10, 64); err == nil {
		f.GymID = uint(gymID)
	}
	if top, err := strconv.Atoi(c.Query("top")); err == nil && top > 0 {
		f.Top = top
	}

	trainers, err := h.repo.ListTrainers(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]TrainerView, 0, len(trainers))
	for i := range trainers {
		count, err := h.repo.CountTrainerReviews(trainers[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views = append(views, toTrainerView(&trainers[i], count))
	}

	c.JSON(http.StatusOK, gin.H{"trainers": views, "count": len(views)})
}

// GetTrainer отдаёт тренера с отзывами и занятыми слотами на горизонте
// бронирования. Слоты сериализуются временем стены в поясе залов: по ним
// фронтенд глушит кнопки в календаре.
// GET /api/trainers/:id/
func (h *TrainerHandler) GetTrainer(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trainer ID format"})
		return
	}

	trainer, err := h.repo.GetTrainerByID(id)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "trainer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	count, err := h.repo.CountTrainerReviews(trainer.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reviews, err := h.repo.ListReviews(models.ReviewFilter{TrainerID: trainer.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	reviewViews := make([]ReviewView, 0, len(reviews))
	for i := range reviews {
		reviewViews = append(reviewViews, toReviewView(&reviews[i]))
	}

	now := h.clock.Now()
	slots, err := h.repo.BookedSlots(trainer.ID, now, now.Add(h.cfg.BookingHorizon))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	bookedSlots := make([]string, 0, len(slots))
	for _, slot := range slots {
		bookedSlots = append(bookedSlots, slot.In(h.cfg.Location).Format(wallClockFormat))
	}

	view := toTrainerView(trainer, count)
	c.JSON(http.StatusOK, gin.H{
		"id":             view.ID,
		"full_name":      view.FullName,
		"name":           view.Name,
		"specialization": view.Specialization,
		"description":    view.Description,
		"gyms":           view.Gyms,
		"rating":         view.Rating,
		"reviews_count":  view.ReviewsCount,
		"image":          view.Image,
		"reviews":        reviewViews,
		"booked_slots":   bookedSlots,
	})
}

// ListSpecializations отдаёт все специализации тренеров.
// GET /api/specializations/
func (h *TrainerHandler) ListSpecializations(c *gin.Context) {
	specs, err := h.repo.ListSpecializations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"specializations": specs})
}
