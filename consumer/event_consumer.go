package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"kachalka/models"
	"kachalka/utils"
)

// BookingEvent — событие из топика booking_events. Producer-ы шлют
// плоский JSON с идентификаторами, полные документы consumer
// дочитывает из БД сам.
type BookingEvent struct {
	Event     string `json:"event"`
	RecordID  uint   `json:"record_id"`
	ReviewID  uint   `json:"review_id"`
	UserID    uint   `json:"user_id"`
	TrainerID uint   `json:"trainer_id"`
	GymID     uint   `json:"gym_id"`
	Rating    int    `json:"rating"`
	StartsAt  string `json:"starts_at"`
	Status    string `json:"status"`
}

// EventConsumer читает события бронирований и отзывов, индексирует их
// в Elasticsearch и инвалидирует кэш списка залов.
type EventConsumer struct {
	repo     models.Repository
	cache    utils.RedisClient
	es       utils.ElasticsearchClient
	reader   *kafka.Reader
	shutdown chan struct{}
}

func NewEventConsumer(repo models.Repository, cache utils.RedisClient, es utils.ElasticsearchClient, broker string) *EventConsumer {
	return &EventConsumer{
		repo:  repo,
		cache: cache,
		es:    es,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   "booking_events",
			GroupID: "kachalka-group",
			MaxWait: 10 * time.Second,
		}),
		shutdown: make(chan struct{}),
	}
}

func (c *EventConsumer) Start(ctx context.Context) {
	log.Println("Starting Kafka consumer...")

	go func() {
		for {
			select {
			case <-c.shutdown:
				return
			default:
				c.processMessages(ctx)
			}
		}
	}()
}

func (c *EventConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		log.Printf("Error closing Kafka reader: %v", err)
	}
}

func (c *EventConsumer) processMessages(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if err == context.Canceled {
			return
		}
		log.Printf("Kafka read error: %v (will retry)", err)
		time.Sleep(5 * time.Second)
		return
	}

	var event BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Failed to unmarshal Kafka message: %v", err)
		return
	}

	switch event.Event {
	case "session_created", "session_cancelled":
		c.handleSessionEvent(ctx, event)
	case "review_created", "review_updated":
		c.handleReviewEvent(ctx, event)
	case "gym_review_created", "gym_review_updated":
		c.handleGymReviewEvent(ctx, event)
	default:
		log.Printf("Unknown event type: %s", event.Event)
	}
}

func (c *EventConsumer) handleSessionEvent(ctx context.Context, event BookingEvent) {
	session, err := c.repo.GetSessionByID(event.RecordID)
	if err != nil {
		log.Printf("Failed to load session %d for indexing: %v", event.RecordID, err)
		return
	}

	if c.es != nil {
		doc := map[string]interface{}{
			"record_id":  session.ID,
			"user_id":    session.UserID,
			"trainer_id": session.TrainerID,
			"starts_at":  session.StartsAt,
			"status":     string(session.Status),
		}
		if err := c.es.IndexDocument(ctx, "sessions", fmt.Sprintf("%d", session.ID), doc); err != nil {
			log.Printf("Failed to index session in Elasticsearch: %v", err)
		}
	}

	log.Printf("Processed %s event for record ID %d", event.Event, event.RecordID)
}

func (c *EventConsumer) handleReviewEvent(ctx context.Context, event BookingEvent) {
	review, err := c.repo.FindReview(event.UserID, event.TrainerID)
	if err != nil {
		log.Printf("Failed to load review for indexing: %v", err)
		return
	}

	if c.es != nil {
		doc := map[string]interface{}{
			"review_id":  review.ID,
			"user_id":    review.UserID,
			"trainer_id": review.TrainerID,
			"rating":     review.Rating,
			"text":       review.Text,
		}
		if err := c.es.IndexDocument(ctx, "reviews", fmt.Sprintf("%d", review.ID), doc); err != nil {
			log.Printf("Failed to index review in Elasticsearch: %v", err)
		}
	}

	log.Printf("Processed %s event for review ID %d", event.Event, review.ID)
}

func (c *EventConsumer) handleGymReviewEvent(ctx context.Context, event BookingEvent) {
	review, err := c.repo.FindGymReview(event.UserID, event.GymID)
	if err != nil {
		log.Printf("Failed to load gym review for indexing: %v", err)
		return
	}

	if c.es != nil {
		doc := map[string]interface{}{
			"review_id": review.ID,
			"user_id":   review.UserID,
			"gym_id":    review.GymID,
			"rating":    review.Rating,
			"text":      review.Text,
		}
		if err := c.es.IndexDocument(ctx, "gym_reviews", fmt.Sprintf("%d", review.ID), doc); err != nil {
			log.Printf("Failed to index gym review in Elasticsearch: %v", err)
		}
	}

	// Рейтинг зала изменился — закэшированный список залов устарел.
	if err := c.cache.DeleteFromCache(ctx, utils.GymListCacheKey); err != nil {
		log.Printf("Failed to invalidate gym list cache: %v", err)
	}

	log.Printf("Processed %s event for gym review ID %d", event.Event, review.ID)
}
