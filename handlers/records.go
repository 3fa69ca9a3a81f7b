package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kachalka/booking"
	"kachalka/middleware"
	"kachalka/models"
	"kachalka/utils"
)

type RecordHandler struct {
	repo      models.Repository
	engine    *booking.Engine
	lifecycle *booking.Lifecycle
	kafka     utils.KafkaProducer
	loc       *time.Location
}

func NewRecordHandler(repo models.Repository, engine *booking.Engine, lifecycle *booking.Lifecycle, kafka utils.KafkaProducer, loc *time.Location) *RecordHandler {
	return &RecordHandler{repo: repo, engine: engine, lifecycle: lifecycle, kafka: kafka, loc: loc}
}

// ListRecords отдаёт записи на тренировки с фильтрами.
// GET /api/records/?user=<id>&trainer=<id>&status=<s>&date_from=&date_to=
func (h *RecordHandler) ListRecords(c *gin.Context) {
	var f models.SessionFilter

	if raw := c.Query("user"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID format"})
			return
		}
		f.UserID = id
	}
	if raw := c.Query("trainer"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trainer ID format"})
			return
		}
		f.TrainerID = id
	}
	if raw := c.Query("status"); raw != "" {
		status := models.SessionStatus(raw)
		switch status {
		case models.StatusScheduled, models.StatusCancelled, models.StatusCompleted:
			f.Status = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	if raw := c.Query("date_from"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from"})
			return
		}
		f.DateFrom = &t
	}
	if raw := c.Query("date_to"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to"})
			return
		}
		end := t.AddDate(0, 0, 1)
		f.DateTo = &end
	}

	sessions, err := h.repo.ListSessions(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, toSessionView(&sessions[i], h.loc))
	}
	c.JSON(http.StatusOK, gin.H{"records": views, "count": len(views)})
}

type createRecordsRequest struct {
	TrainerID uint     `json:"trainer_id" binding:"required"`
	TimeSlots []string `json:"time_slots" binding:"required"`
}

// CreateRecords создаёт записи на тренировки пакетом. Каждый слот
// проверяется независимо: часть может быть создана, часть отклонена.
// 201 если создана хотя бы одна запись, иначе 400.
// POST /api/records/create/
func (h *RecordHandler) CreateRecords(c *gin.Context) {
	profile, ok := middleware.CurrentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	var req createRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат JSON"})
		return
	}
	if len(req.TimeSlots) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не выбрано ни одного слота"})
		return
	}

	trainer, err := h.repo.GetTrainerByID(req.TrainerID)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Тренер не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created, slotErrors, err := h.engine.ProposeBatch(profile.ID, trainer.ID, req.TimeSlots)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	records := make([]SessionView, 0, len(created))
	for _, s := range created {
		s.User = *profile
		s.Trainer = *trainer
		records = append(records, toSessionView(s, h.loc))
		h.sendSessionEvent("session_created", s)
	}
	errors := make([]gin.H, 0, len(slotErrors))
	for _, se := range slotErrors {
		errors = append(errors, gin.H{
			"slot":   se.Slot,
			"reason": string(se.Rejection.Reason),
			"error":  se.Rejection.Message,
		})
	}

	resp := gin.H{
		"success": len(created) > 0,
		"message": "Создано записей: " + strconv.Itoa(len(created)),
		"records": records,
		"errors":  errors,
	}
	if len(created) > 0 {
		c.JSON(http.StatusCreated, resp)
		return
	}
	c.JSON(http.StatusBadRequest, resp)
}

// CancelRecord отменяет запись владельца. Отмена возможна только до
// начала тренировки и только из статуса "Назначена".
// POST /api/records/:id/cancel/
func (h *RecordHandler) CancelRecord(c *gin.Context) {
	profile, ok := middleware.CurrentProfile(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record ID format"})
		return
	}

	outcome, session, err := h.lifecycle.Cancel(id, profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch outcome {
	case booking.CancelOK:
		h.sendSessionEvent("session_cancelled", session)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Запись успешно отменена",
			"record":  toSessionView(session, h.loc),
		})
	case booking.CancelNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Запись не найдена"})
	case booking.CancelNotOwner:
		c.JSON(http.StatusForbidden, gin.H{"error": "Вы можете отменять только свои записи"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Эту запись нельзя отменить"})
	}
}

func (h *RecordHandler) sendSessionEvent(eventType string, s *models.Session) {
	if h.kafka == nil {
		return
	}
	payload := gin.H{
		"event":      eventType,
		"record_id":  s.ID,
		"user_id":    s.UserID,
		"trainer_id": s.TrainerID,
		"starts_at":  s.StartsAt.In(h.loc).Format(localOffsetFormat),
		"status":     string(s.Status),
	}
	go sendRawEvent(h.kafka, eventsTopic, payload)
}
