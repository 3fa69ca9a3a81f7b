package handlers

import (
	"strings"
	"time"

	"kachalka/models"
)

// Форматы времени в API: datetime записей отдаётся с локальным смещением
// ("2025-12-14T18:00:00+03:00"), занятые слоты — временем стены без пояса,
// как их ждёт фронтенд.
const (
	localOffsetFormat = "2006-01-02T15:04:05-07:00"
	wallClockFormat   = "2006-01-02T15:04:05"
)

type GymImageView struct {
	ID        uint   `json:"id"`
	Image     string `json:"image"`
	SortOrder int    `json:"order"`
}

type GymView struct {
	ID            uint           `json:"id"`
	Name          string         `json:"name"`
	Address       string         `json:"address"`
	Description   string         `json:"description"`
	Amenities     []string       `json:"amenities"`
	Images        []GymImageView `json:"images"`
	MainImage     string         `json:"main_image"`
	Rating        float64        `json:"rating"`
	ReviewsCount  int64          `json:"reviews_count"`
	TrainersCount int            `json:"trainers_count"`
}

type GymRefView struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type TrainerView struct {
	ID             uint         `json:"id"`
	FullName       string       `json:"full_name"`
	Name           string       `json:"name"` // дубль full_name для фронтенда
	Specialization string       `json:"specialization"`
	Description    string       `json:"description"`
	Gyms           []GymRefView `json:"gyms"`
	Rating         float64      `json:"rating"`
	ReviewsCount   int64        `json:"reviews_count"`
	Image          string       `json:"image,omitempty"`
}

type ProfileView struct {
	ID        uint   `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Age       *int   `json:"age"`
	Gender    string `json:"gender,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at"`
}

type SessionView struct {
	ID                    uint   `json:"id"`
	UserID                uint   `json:"user_id"`
	UserName              string `json:"user_name"`
	UserEmail             string `json:"user_email,omitempty"`
	TrainerID             uint   `json:"trainer_id"`
	TrainerName           string `json:"trainer_name"`
	TrainerSpecialization string `json:"trainer_specialization,omitempty"`
	GymName               string `json:"gym_name,omitempty"`
	Datetime              string `json:"datetime"`
	Status                string `json:"status"`
	StatusDisplay         string `json:"status_display"`
	CreatedAt             string `json:"created_at"`
}

type reviewParty struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Name     string `json:"name,omitempty"`
}

type ReviewView struct {
	ID        uint         `json:"id"`
	User      reviewParty  `json:"user"`
	Trainer   *reviewParty `json:"trainer,omitempty"`
	Gym       *reviewParty `json:"gym,omitempty"`
	Text      string       `json:"text"`
	Rating    int          `json:"rating"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

func splitAmenities(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func toGymView(gym *models.Gym, reviewsCount int64) GymView {
	images := make([]GymImageView, 0, len(gym.Images))
	for _, img := range gym.Images {
		images = append(images, GymImageView{ID: img.ID, Image: img.Path, SortOrder: img.SortOrder})
	}

	mainImage := "/media/gyms/gym_base.jpeg"
	if len(images) > 0 && images[0].Image != "" {
		mainImage = images[0].Image
	}

	return GymView{
		ID:            gym.ID,
		Name:          gym.Name,
		Address:       gym.Address,
		Description:   gym.Description,
		Amenities:     splitAmenities(gym.Amenities),
		Images:        images,
		MainImage:     mainImage,
		Rating:        gym.Rating,
		ReviewsCount:  reviewsCount,
		TrainersCount: len(gym.Trainers),
	}
}

func toTrainerView(trainer *models.Trainer, reviewsCount int64) TrainerView {
	gyms := make([]GymRefView, 0, len(trainer.Gyms))
	for _, gym := range trainer.Gyms {
		gyms = append(gyms, GymRefView{ID: gym.ID, Name: gym.Name, Address: gym.Address})
	}

	return TrainerView{
		ID:             trainer.ID,
		FullName:       trainer.FullName,
		Name:           trainer.FullName,
		Specialization: trainer.Specialization,
		Description:    trainer.Description,
		Gyms:           gyms,
		Rating:         trainer.Rating,
		ReviewsCount:   reviewsCount,
		Image:          trainer.ImagePath,
	}
}

func toProfileView(p *models.UserProfile) ProfileView {
	phone := ""
	if p.Phone != nil {
		phone = *p.Phone
	}
	return ProfileView{
		ID:        p.ID,
		FullName:  p.FullName,
		Email:     p.Account.Email,
		Age:       p.Age,
		Gender:    p.Gender,
		Phone:     phone,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toSessionView(s *models.Session, loc *time.Location) SessionView {
	gymName := ""
	if len(s.Trainer.Gyms) > 0 {
		gymName = s.Trainer.Gyms[0].Name
	}

	return SessionView{
		ID:                    s.ID,
		UserID:                s.UserID,
		UserName:              s.User.FullName,
		UserEmail:             s.User.Account.Email,
		TrainerID:             s.TrainerID,
		TrainerName:           s.Trainer.FullName,
		TrainerSpecialization: s.Trainer.Specialization,
		GymName:               gymName,
		Datetime:              s.StartsAt.In(loc).Format(localOffsetFormat),
		Status:                string(s.Status),
		StatusDisplay:         s.Status.Display(),
		CreatedAt:             s.CreatedAt.Format(time.RFC3339),
	}
}

func toReviewView(r *models.Review) ReviewView {
	return ReviewView{
		ID:        r.ID,
		User:      reviewParty{ID: r.UserID, FullName: r.User.FullName},
		Trainer:   &reviewParty{ID: r.TrainerID, FullName: r.Trainer.FullName},
		Text:      r.Text,
		Rating:    r.Rating,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

func toGymReviewView(r *models.GymReview, gym *models.Gym, user *models.UserProfile) ReviewView {
	return ReviewView{
		ID:        r.ID,
		User:      reviewParty{ID: r.UserID, FullName: user.FullName},
		Gym:       &reviewParty{ID: r.GymID, Name: gym.Name},
		Text:      r.Text,
		Rating:    r.Rating,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}
