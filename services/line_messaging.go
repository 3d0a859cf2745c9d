package services

import (
	"fmt"
	"log"
	"os"

	"kindernest_go/database"
	"kindernest_go/models"

	"github.com/line/line-bot-sdk-go/linebot"
)

// LineMessagingService is the fire-and-forget parent broadcast channel.
type LineMessagingService struct {
	Bot *linebot.Client
}

// NewLineMessagingService creates a client from the channel credentials. A
// missing configuration disables the channel rather than failing startup.
func NewLineMessagingService() *LineMessagingService {
	channelSecret := os.Getenv("LINE_CHANNEL_SECRET")
	channelToken := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")

	if channelSecret == "" || channelToken == "" {
		log.Println("LINE Messaging API disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
		return &LineMessagingService{Bot: nil}
	}

	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		log.Fatalf("Cannot create LINE bot client: %v", err)
	}

	return &LineMessagingService{Bot: bot}
}

// BroadcastToParents pushes a text message to every parent with a linked
// LINE account. Individual push failures are counted, not fatal.
func (s *LineMessagingService) BroadcastToParents(title, message string) error {
	if s.Bot == nil {
		return fmt.Errorf("LINE Bot client is not initialized")
	}

	var lineIDs []string
	if err := database.DB.Model(&models.User{}).
		Where("role = ? AND status = ? AND line_id <> ''", "parent", "active").
		Pluck("line_id", &lineIDs).Error; err != nil {
		return err
	}

	text := title
	if message != "" {
		text = title + "\n" + message
	}

	failed := 0
	for _, id := range lineIDs {
		if _, err := s.Bot.PushMessage(id, linebot.NewTextMessage(text)).Do(); err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("LINE broadcast: %d of %d pushes failed", failed, len(lineIDs))
	}
	return nil
}
