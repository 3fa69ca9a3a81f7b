package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kachalka/models"
	"kachalka/utils"
)

type GymHandler struct {
	repo  models.Repository
	cache utils.RedisClient
}

func NewGymHandler(repo models.Repository, cache utils.RedisClient) *GymHandler {
	return &GymHandler{repo: repo, cache: cache}
}

func gymFilterFromQuery(c *gin.Context) models.GymFilter {
	f := models.GymFilter{
		Search:  strings.TrimSpace(c.Query("search")),
		City:    strings.TrimSpace(c.Query("city")),
		OrderBy: c.Query("order_by"),
	}
	if raw := c.Query("amenities"); raw != "" {
		f.Amenities = splitAmenities(raw)
	}
	if top, err := strconv.Atoi(c.Query("top")); err == nil && top > 0 {
		f.Top = top
	}
	return f
}

// ListGyms отдаёт залы с фильтрацией и сортировкой.
// GET /api/gyms/?search=&city=&amenities=&top=&order_by=
func (h *GymHandler) ListGyms(c *gin.Context) {
	f := gymFilterFromQuery(c)

	// Безфильтровый список кэшируется: это самая горячая выборка.
	cacheable := f.Search == "" && f.City == "" && len(f.Amenities) == 0 &&
		f.OrderBy == "" && f.Top == 0
	if cacheable && h.cache != nil {
		if cached, err := h.cache.GetFromCache(c.Request.Context(), utils.GymListCacheKey); err == nil && cached != "" {
			var body gin.H
			if json.Unmarshal([]byte(cached), &body) == nil {
				c.JSON(http.StatusOK, body)
				return
			}
		}
	}

	gyms, err := h.repo.ListGyms(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]GymView, 0, len(gyms))
	for i := range gyms {
		count, err := h.repo.CountGymReviews(gyms[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views = append(views, toGymView(&gyms[i], count))
	}

	body := gin.H{"gyms": views, "count": len(views)}
	if cacheable && h.cache != nil {
		if raw, err := json.Marshal(body); err == nil {
			_ = h.cache.SetToCache(c.Request.Context(), utils.GymListCacheKey, string(raw), time.Minute)
		}
	}

	c.JSON(http.StatusOK, body)
}

// GetGym отдаёт зал с тренерами и отзывами.
// GET /api/gyms/:id/
func (h *GymHandler) GetGym(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gym ID format"})
		return
	}

	gym, err := h.repo.GetGymByID(id)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "gym not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	count, err := h.repo.CountGymReviews(gym.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	trainers := make([]TrainerView, 0, len(gym.Trainers))
	for i := range gym.Trainers {
		rc, err := h.repo.CountTrainerReviews(gym.Trainers[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		trainers = append(trainers, toTrainerView(&gym.Trainers[i], rc))
	}

	body := toGymView(gym, count)
	c.JSON(http.StatusOK, gin.H{
		"id":             body.ID,
		"name":           body.Name,
		"address":        body.Address,
		"description":    body.Description,
		"amenities":      body.Amenities,
		"images":         body.Images,
		"main_image":     body.MainImage,
		"rating":         body.Rating,
		"reviews_count":  body.ReviewsCount,
		"trainers_count": body.TrainersCount,
		"trainers":       trainers,
	})
}

// ListCities извлекает города из адресов залов (формат "улица, город").
// GET /api/cities/
func (h *GymHandler) ListCities(c *gin.Context) {
	addresses, err := h.repo.ListGymAddresses()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	seen := map[string]bool{}
	cities := []string{}
	for _, address := range addresses {
		parts := strings.Split(address, ",")
		if len(parts) < 2 {
			continue
		}
		city := strings.TrimSpace(parts[len(parts)-1])
		if city != "" && !seen[city] {
			seen[city] = true
			cities = append(cities, city)
		}
	}
	sort.Strings(cities)

	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	return uint(id), err
}
