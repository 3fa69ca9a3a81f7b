package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kachalka/models"
	"kachalka/utils"
)

const profileKey = "current_profile"

// AuthTokenKey — ключ Redis, под которым живёт выданный на входе токен.
func AuthTokenKey(token string) string {
	return "auth:token:" + token
}

// Authenticate разбирает bearer-токен, находит его в Redis и кладёт профиль
// владельца в контекст запроса. Никогда не прерывает запрос: маршруты,
// которым нужна авторизация, добавляют RequireAuth.
func Authenticate(repo models.Repository, cache utils.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		val, err := cache.GetFromCache(c.Request.Context(), AuthTokenKey(token))
		if err != nil || val == "" {
			c.Next()
			return
		}

		profileID, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			c.Next()
			return
		}

		profile, err := repo.GetProfileByID(uint(profileID))
		if err != nil {
			c.Next()
			return
		}

		c.Set(profileKey, profile)
		c.Next()
	}
}

// RequireAuth отклоняет запрос без авторизованного профиля.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentProfile(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
			return
		}
		c.Next()
	}
}

// CurrentProfile достаёт профиль, положенный Authenticate.
func CurrentProfile(c *gin.Context) (*models.UserProfile, bool) {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil, false
	}
	profile, ok := v.(*models.UserProfile)
	return profile, ok
}
