package booking

import (
	"errors"
	"time"

	"kachalka/config"
	"kachalka/models"
	"kachalka/monitoring"
)

// CancelOutcome — результат попытки отмены. "Нельзя отменить" — обычный
// исход, а не ошибка: запись уже началась, завершена или отменена ранее.
type CancelOutcome int

const (
	CancelOK CancelOutcome = iota
	CancelNotFound
	CancelNotOwner
	CancelNotAllowed
)

// Lifecycle двигает запись по конечному автомату:
// scheduled -> completed (по времени), scheduled -> cancelled (по действию
// пользователя). Оба конечных статуса терминальны.
type Lifecycle struct {
	repo  models.Repository
	clock Clock
	// Завершение наступает через grace после начала. Окно шире длительности
	// конфликта (1.5ч против 1ч) — допуск на затянувшуюся тренировку.
	grace time.Duration
}

func NewLifecycle(repo models.Repository, clock Clock, cfg *config.Config) *Lifecycle {
	return &Lifecycle{repo: repo, clock: clock, grace: cfg.CompletionGrace}
}

// Advance переводит scheduled-запись в completed, когда тренировка
// закончилась с запасом grace. Идемпотентен: повторный вызов и вызов на
// терминальной записи — no-op. Переход — одиночный CAS по строке, поэтому
// гонка с параллельной отменой не теряет обновлений.
func (l *Lifecycle) Advance(s *models.Session, now time.Time) (bool, error) {
	if s.Status != models.StatusScheduled {
		return false, nil
	}
	if now.Before(s.StartsAt.Add(l.grace)) {
		return false, nil
	}

	ok, err := l.repo.CASStatus(s.ID, models.StatusScheduled, models.StatusCompleted)
	if err != nil {
		return false, err
	}
	if ok {
		s.Status = models.StatusCompleted
		monitoring.SessionsCompleted.Inc()
	}
	return ok, nil
}

// Cancel отменяет запись по требованию владельца. Разрешено только пока
// запись scheduled и тренировка ещё не началась.
func (l *Lifecycle) Cancel(sessionID, actorProfileID uint) (CancelOutcome, *models.Session, error) {
	s, err := l.repo.GetSessionByID(sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return CancelNotFound, nil, nil
		}
		return CancelNotAllowed, nil, err
	}

	if s.UserID != actorProfileID {
		return CancelNotOwner, s, nil
	}

	if s.Status != models.StatusScheduled || !s.StartsAt.After(l.clock.Now()) {
		return CancelNotAllowed, s, nil
	}

	ok, err := l.repo.CASStatus(s.ID, models.StatusScheduled, models.StatusCancelled)
	if err != nil {
		return CancelNotAllowed, s, err
	}
	if !ok {
		// Статус сменился между чтением и записью.
		return CancelNotAllowed, s, nil
	}

	s.Status = models.StatusCancelled
	monitoring.SessionsCancelled.Inc()
	return CancelOK, s, nil
}
