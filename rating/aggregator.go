package rating

import (
	"kachalka/models"
	"kachalka/monitoring"
)

// Aggregator пересчитывает кэшированный средний рейтинг тренера или зала
// из строк отзывов. Вызывается синхронно после каждого создания/обновления/
// удаления отзыва: устаревший кэш — это баг корректности, а не
// "согласуется со временем".
type Aggregator struct {
	repo models.Repository
}

func NewAggregator(repo models.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// RecomputeTrainer сохраняет среднее арифметическое оценок тренера,
// округлённое до двух знаков. Ноль отзывов — рейтинг 0.00.
func (a *Aggregator) RecomputeTrainer(trainerID uint) (float64, error) {
	ratings, err := a.repo.TrainerRatings(trainerID)
	if err != nil {
		return 0, err
	}
	avg := Mean(ratings)
	if err := a.repo.UpdateTrainerRating(trainerID, avg); err != nil {
		return 0, err
	}
	monitoring.RatingRecomputes.Inc()
	return avg, nil
}

func (a *Aggregator) RecomputeGym(gymID uint) (float64, error) {
	ratings, err := a.repo.GymRatings(gymID)
	if err != nil {
		return 0, err
	}
	avg := Mean(ratings)
	if err := a.repo.UpdateGymRating(gymID, avg); err != nil {
		return 0, err
	}
	monitoring.RatingRecomputes.Inc()
	return avg, nil
}

// Mean — среднее оценок, округлённое до 2 знаков банковским округлением
// (round-half-to-even, как у Decimal в исходной системе). Считается в
// целых числах, чтобы не зависеть от представления float и от порядка
// добавления отзывов.
func Mean(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}

	n := len(ratings)
	scaled := sum * 100
	q := scaled / n
	rem := scaled % n

	switch {
	case 2*rem > n:
		q++
	case 2*rem == n && q%2 != 0:
		q++
	}

	return float64(q) / 100
}
