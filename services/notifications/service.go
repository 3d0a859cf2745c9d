package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"kindernest_go/config"
	"kindernest_go/database"
	"kindernest_go/models"
	"kindernest_go/utils"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// queuedNotification is the minimal payload stored in the Redis queue. One
// item may fan out to many users.
type queuedNotification struct {
	UserIDs   []uint    `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

// Service exposes notification creation with optional Redis queue.
// If Redis is disabled/unavailable, it performs direct DB inserts.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub
	line     ParentBroadcaster
}

// WSHub interface for WebSocket broadcasting
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// ParentBroadcaster pushes a fire-and-forget message to the external parent
// channel. Delivery failures are logged, never propagated.
type ParentBroadcaster interface {
	BroadcastToParents(title, message string) error
}

// defaultHub allows services created in different parts of the app (e.g.,
// schedulers) to broadcast over the same WebSocket hub without manual wiring.
var defaultHub WSHub

// SetDefaultWSHub sets the package-level default WebSocket hub used by new Service instances.
func SetDefaultWSHub(h WSHub) {
	defaultHub = h
}

func NewService() *Service {
	return &Service{
		db:       database.GetDB(),
		redis:    database.GetRedisClient(),
		useRedis: config.AppConfig != nil && config.AppConfig.UseRedisNotifications && database.GetRedisClient() != nil,
		wsHub:    defaultHub,
	}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *Service) SetWebSocketHub(hub WSHub) {
	s.wsHub = hub
}

// SetParentBroadcaster wires the external parent channel (LINE).
func (s *Service) SetParentBroadcaster(b ParentBroadcaster) {
	s.line = b
}

// Queued builds the minimal payload for EnqueueOrCreate.
func Queued(title, message, typ string) queuedNotification {
	return queuedNotification{Title: title, Message: message, Type: typ}
}

// EnqueueOrCreate stores notifications using the Redis queue if enabled,
// else inserts directly.
func (s *Service) EnqueueOrCreate(userIDs []uint, n queuedNotification) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n.UserIDs = userIDs
	n.CreatedAt = time.Now().UTC()

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(context.Background(), redisListKey, b).Err(); err == nil {
			return nil // queued successfully
		}
		log.Printf("[notif] Redis queue failed, falling back to direct insert: %v", err)
	}

	// fallback: direct db insert
	return s.createDirect(userIDs, n)
}

// NotifyAllParents fans a notification out to every active parent account
// and fires the external broadcast channel when one is wired.
func (s *Service) NotifyAllParents(title, message, typ string) error {
	var parentIDs []uint
	if err := s.db.Model(&models.User{}).
		Where("role = ? AND status = ?", "parent", "active").
		Pluck("id", &parentIDs).Error; err != nil {
		return err
	}
	if len(parentIDs) > 0 {
		if err := s.EnqueueOrCreate(parentIDs, Queued(title, message, typ)); err != nil {
			return err
		}
	}
	if s.line != nil {
		if err := s.line.BroadcastToParents(title, message); err != nil {
			log.Printf("[notif] parent broadcast channel failed: %v", err)
		}
	}
	return nil
}

// createDirect writes directly to DB (used by worker or fallback).
func (s *Service) createDirect(userIDs []uint, n queuedNotification) error {
	if len(userIDs) == 0 {
		return nil
	}
	notifs := make([]models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifs = append(notifs, models.Notification{
			UserID:  uid,
			Title:   n.Title,
			Message: n.Message,
			Type:    n.Type,
			Read:    false,
		})
	}

	if err := s.db.Create(&notifs).Error; err != nil {
		return err
	}

	// Send WebSocket notifications if hub is available
	if s.wsHub != nil {
		for _, notif := range notifs {
			dto := utils.ToNotificationDTO(notif)
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": dto,
			})
		}
	}

	return nil
}

// StartWorker starts a background worker polling the Redis queue and
// flushing to the database.
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		log.Println("[notif] Redis notifications disabled; worker not started")
		return
	}
	go func() {
		log.Println("[notif] Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		batchSize := 200
		for {
			select {
			case <-stop:
				log.Println("[notif] Worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, batchSize)
			}
		}
	}()
}

// flushBatch polls the redis queue and processes notifications in batches.
func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	for i := 0; i < 5; i++ { // up to 5 sub-batches per tick
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		// Trim immediately to avoid duplicates (best-effort)
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			log.Printf("[notif] LTrim failed: %v", err)
		}
		for _, raw := range vals {
			var q queuedNotification
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(q.UserIDs, q); err != nil {
				log.Printf("[notif] DB insert failed (retry later?): %v", err)
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}
