package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kachalka/models"
)

type UserHandler struct {
	repo models.Repository
	loc  *time.Location
}

func NewUserHandler(repo models.Repository, loc *time.Location) *UserHandler {
	return &UserHandler{repo: repo, loc: loc}
}

// GetUser отдаёт профиль пользователя вместе с его записями.
// GET /api/users/:id/
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID format"})
		return
	}

	profile, err := h.repo.GetProfileByID(id)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sessions, err := h.repo.ListSessions(models.SessionFilter{UserID: profile.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	records := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		records = append(records, toSessionView(&sessions[i], h.loc))
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    toProfileView(profile),
		"records": records,
	})
}
