package booking

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kachalka/config"
	"kachalka/models"
	"kachalka/monitoring"
)

// Reason — код отказа в бронировании. Обработчики превращают его в
// человекочитаемое сообщение, движок кодами не разбрасывается как ошибками.
type Reason string

const (
	ReasonInvalidSlot   Reason = "invalid-slot"
	ReasonNotFuture     Reason = "not-future"
	ReasonTooFarOut     Reason = "too-far-out"
	ReasonOutsideHours  Reason = "outside-hours"
	ReasonAlreadyBooked Reason = "already-booked"
	ReasonSlotTaken     Reason = "slot-taken"
	ReasonTrainerBusy   Reason = "trainer-busy"
	ReasonUserBusy      Reason = "user-busy"
)

// Rejection — бизнес-отказ. Это обычный результат, а не error:
// до API-границы он доходит структурированным и оседает в ответе 400.
type Rejection struct {
	Reason  Reason
	Message string
}

// SlotError — отказ по конкретному слоту в пакетном запросе.
type SlotError struct {
	Slot      string
	Rejection Rejection
}

// Engine решает, можно ли создать запись на тренировку. Все проверки
// и вставка выполняются под per-trainer мьютексом; частичный уникальный
// индекс в БД остаётся последним рубежом.
type Engine struct {
	repo      models.Repository
	clock     Clock
	loc       *time.Location
	horizon   time.Duration
	duration  time.Duration
	openHour  int
	closeHour int

	slotLocks sync.Map // trainerID -> *sync.Mutex
}

func NewEngine(repo models.Repository, clock Clock, cfg *config.Config) *Engine {
	return &Engine{
		repo:      repo,
		clock:     clock,
		loc:       cfg.Location,
		horizon:   cfg.BookingHorizon,
		duration:  cfg.SessionDuration,
		openHour:  cfg.OpenHour,
		closeHour: cfg.CloseHour,
	}
}

func (e *Engine) lockTrainer(trainerID uint) func() {
	v, _ := e.slotLocks.LoadOrStore(trainerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ParseSlot разбирает время слота из запроса. Фронтенд присылает время
// стены ("2025-12-14T18:00:00", иногда с суффиксом смещения или Z);
// смещение отбрасывается, а время стены интерпретируется в часовом поясе
// залов. Неоднозначное локальное время клиента никогда не решает порядок.
func (e *Engine) ParseSlot(value string) (time.Time, error) {
	wall := value
	if i := strings.IndexByte(wall, '+'); i > 0 {
		wall = wall[:i]
	}
	wall = strings.TrimSuffix(wall, "Z")
	if i := strings.LastIndexByte(wall, '-'); i > 10 {
		wall = wall[:i]
	}

	t, err := time.ParseInLocation("2006-01-02T15:04:05", wall, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time slot %q: %w", value, err)
	}
	return t, nil
}

// check прогоняет предусловия в фиксированном порядке: первый отказ
// выигрывает. Точные проверки дубликата идут раньше оконных, чтобы
// пользователь, повторно бронирующий свой же слот, получил
// already-booked, а не trainer-busy.
func (e *Engine) check(userID, trainerID uint, startsAt time.Time) (*Rejection, error) {
	now := e.clock.Now()
	slot := startsAt.In(e.loc).Format("2006-01-02T15:04:05")

	if !startsAt.After(now) {
		return &Rejection{ReasonNotFuture,
			fmt.Sprintf("Нельзя записаться на прошедшее время: %s", slot)}, nil
	}

	if startsAt.After(now.Add(e.horizon)) {
		maxDate := now.Add(e.horizon).In(e.loc).Format("02.01.2006")
		return &Rejection{ReasonTooFarOut,
			fmt.Sprintf("Нельзя записаться более чем на %d дней вперед. Максимальная дата записи: %s",
				int(e.horizon.Hours()/24), maxDate)}, nil
	}

	hour := startsAt.In(e.loc).Hour()
	if hour < e.openHour || hour >= e.closeHour {
		return &Rejection{ReasonOutsideHours,
			fmt.Sprintf("Тренировки доступны только с %d:00 до %d:00", e.openHour, e.closeHour)}, nil
	}

	exists, err := e.repo.UserSlotExists(userID, trainerID, startsAt)
	if err != nil {
		return nil, err
	}
	if exists {
		return &Rejection{ReasonAlreadyBooked,
			fmt.Sprintf("Вы уже записаны на это время: %s", slot)}, nil
	}

	taken, err := e.repo.TrainerSlotTaken(trainerID, startsAt)
	if err != nil {
		return nil, err
	}
	if taken {
		return &Rejection{ReasonSlotTaken,
			fmt.Sprintf("Слот уже занят: %s", slot)}, nil
	}

	// Окно конфликта расширено на длительность тренировки в обе стороны:
	// занятыми считаются и слоты впритык. Правило исходной системы,
	// воспроизводится точно.
	busy, err := e.repo.TrainerSessionsInWindow(trainerID,
		startsAt.Add(-e.duration), startsAt.Add(e.duration))
	if err != nil {
		return nil, err
	}
	if len(busy) > 0 {
		return &Rejection{ReasonTrainerBusy,
			fmt.Sprintf("Тренер уже занят в это время: %s. Пожалуйста, выберите другое время.", slot)}, nil
	}

	userBusy, err := e.repo.UserSessionsInWindow(userID,
		startsAt.Add(-e.duration), startsAt.Add(e.duration))
	if err != nil {
		return nil, err
	}
	if len(userBusy) > 0 {
		return &Rejection{ReasonUserBusy,
			fmt.Sprintf("У вас уже есть запись на тренировку в это время: %s", slot)}, nil
	}

	return nil, nil
}

// Propose проверяет слот и создаёт запись со статусом scheduled.
// Возвращает либо созданную запись, либо отказ; error — только сбой хранилища.
func (e *Engine) Propose(userID, trainerID uint, startsAt time.Time) (*models.Session, *Rejection, error) {
	unlock := e.lockTrainer(trainerID)
	defer unlock()

	rej, err := e.check(userID, trainerID, startsAt)
	if err != nil {
		return nil, nil, err
	}
	if rej != nil {
		monitoring.BookingsTotal.WithLabelValues(string(rej.Reason)).Inc()
		return nil, rej, nil
	}

	session := &models.Session{
		UserID:    userID,
		TrainerID: trainerID,
		StartsAt:  startsAt,
		Status:    models.StatusScheduled,
	}
	if err := e.repo.CreateSession(session); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// Уникальный индекс догнал гонку, которую не поймала предпроверка.
			slot := startsAt.In(e.loc).Format("2006-01-02T15:04:05")
			monitoring.BookingsTotal.WithLabelValues(string(ReasonSlotTaken)).Inc()
			return nil, &Rejection{ReasonSlotTaken,
				fmt.Sprintf("Слот уже занят: %s", slot)}, nil
		}
		return nil, nil, err
	}

	monitoring.BookingsTotal.WithLabelValues("created").Inc()
	return session, nil, nil
}

// ProposeBatch бронирует каждый слот независимо: отказ одного не мешает
// остальным, результат — созданные записи плюс список ошибок по слотам.
func (e *Engine) ProposeBatch(userID, trainerID uint, slots []string) ([]*models.Session, []SlotError, error) {
	var created []*models.Session
	var failed []SlotError

	for _, raw := range slots {
		startsAt, err := e.ParseSlot(raw)
		if err != nil {
			failed = append(failed, SlotError{raw, Rejection{
				Reason:  ReasonInvalidSlot,
				Message: fmt.Sprintf("Ошибка создания записи %s: неверный формат времени", raw),
			}})
			continue
		}

		session, rej, err := e.Propose(userID, trainerID, startsAt)
		if err != nil {
			return created, failed, err
		}
		if rej != nil {
			failed = append(failed, SlotError{raw, *rej})
			continue
		}
		created = append(created, session)
	}

	return created, failed, nil
}
