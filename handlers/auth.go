package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"kachalka/middleware"
	"kachalka/models"
	"kachalka/utils"
)

type AuthHandler struct {
	repo     models.Repository
	cache    utils.RedisClient
	tokenTTL time.Duration
}

func NewAuthHandler(repo models.Repository, cache utils.RedisClient, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{repo: repo, cache: cache, tokenTTL: tokenTTL}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	Age      *int   `json:"age"`
	Gender   string `json:"gender"`
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// validateRegistration повторяет серверную валидацию формы регистрации.
// Возвращает map поле → сообщение; пустая map означает успех.
func (h *AuthHandler) validateRegistration(req *registerRequest) (map[string]string, error) {
	fieldErrors := make(map[string]string)

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		fieldErrors["email"] = "Введите корректный email"
	} else {
		taken, err := h.repo.AccountEmailTaken(email)
		if err != nil {
			return nil, err
		}
		if taken {
			fieldErrors["email"] = "Пользователь с таким email уже существует"
		}
	}
	req.Email = email

	switch {
	case len(req.Password) < 8:
		fieldErrors["password"] = "Пароль должен содержать минимум 8 символов"
	case len(req.Password) > 24:
		fieldErrors["password"] = "Пароль не может быть длиннее 24 символов"
	case strings.TrimSpace(req.Password) != req.Password:
		fieldErrors["password"] = "Пароль не может начинаться или заканчиваться пробелом"
	}

	fullName := strings.TrimSpace(req.FullName)
	if len(strings.Fields(fullName)) < 2 {
		fieldErrors["full_name"] = "Укажите имя и фамилию"
	} else {
		taken, err := h.repo.ProfileFullNameTaken(fullName)
		if err != nil {
			return nil, err
		}
		if taken {
			fieldErrors["full_name"] = "Пользователь с таким именем уже существует"
		}
	}
	req.FullName = fullName

	if req.Phone != "" {
		switch {
		case countDigits(req.Phone) < 10:
			fieldErrors["phone"] = "Номер телефона должен содержать минимум 10 цифр"
		case len(req.Phone) > 20:
			fieldErrors["phone"] = "Номер телефона слишком длинный"
		default:
			taken, err := h.repo.ProfilePhoneTaken(req.Phone)
			if err != nil {
				return nil, err
			}
			if taken {
				fieldErrors["phone"] = "Пользователь с таким телефоном уже существует"
			}
		}
	}

	if req.Age != nil && (*req.Age < 14 || *req.Age > 120) {
		fieldErrors["age"] = "Возраст должен быть от 14 до 120 лет"
	}

	return fieldErrors, nil
}

// Register создаёт учётную запись и профиль, затем сразу авторизует
// нового пользователя.
// POST /api/register/
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат JSON"})
		return
	}

	fieldErrors, err := h.validateRegistration(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": fieldErrors})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	acc := &models.Account{Email: req.Email, PasswordHash: string(hash)}
	if err := h.repo.CreateAccount(acc); err != nil {
		if err == models.ErrDuplicate {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"errors":  gin.H{"email": "Пользователь с таким email уже существует"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}
	profile := &models.UserProfile{
		AccountID: acc.ID,
		FullName:  req.FullName,
		Age:       req.Age,
		Gender:    req.Gender,
		Phone:     phone,
	}
	if err := h.repo.CreateProfile(profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	profile.Account = *acc

	token, err := h.issueToken(c, profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Регистрация прошла успешно",
		"token":   token,
		"user":    toProfileView(profile),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login проверяет пароль и выдаёт bearer-токен.
// POST /api/auth/login/
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат JSON"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	acc, err := h.repo.FindAccountByEmail(email)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный email или пароль"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный email или пароль"})
		return
	}

	profile, err := h.repo.GetProfileByAccountID(acc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	profile.Account = *acc

	token, err := h.issueToken(c, profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    toProfileView(profile),
	})
}

// Logout отзывает токен из заголовка Authorization.
// POST /api/auth/logout/
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		_ = h.cache.DeleteFromCache(c.Request.Context(), middleware.AuthTokenKey(token))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Вы вышли из системы"})
}

// CurrentUser сообщает, авторизован ли запрос, и кем.
// GET /api/auth/current-user/
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	profile, ok := middleware.CurrentProfile(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          toProfileView(profile),
	})
}

func (h *AuthHandler) issueToken(c *gin.Context, profileID uint) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	err := h.cache.SetToCache(c.Request.Context(),
		middleware.AuthTokenKey(token),
		strconv.FormatUint(uint64(profileID), 10),
		h.tokenTTL)
	if err != nil {
		return "", err
	}
	return token, nil
}
