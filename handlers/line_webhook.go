package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"

	"kindernest_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LineWebhookHandler links LINE accounts to parent users. A parent adds the
// school's official account and sends their registered phone number; the
// handler stores the LINE user ID so announcements can be pushed directly.
type LineWebhookHandler struct {
	DB  *gorm.DB
	Bot *linebot.Client
}

func NewLineWebhookHandler(db *gorm.DB) *LineWebhookHandler {
	secret := os.Getenv("LINE_CHANNEL_SECRET")
	token := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")

	if secret == "" || token == "" {
		logrus.Warn("LINE credentials missing: webhook disabled")
		return &LineWebhookHandler{DB: db, Bot: nil}
	}

	bot, err := linebot.New(secret, token)
	if err != nil {
		logrus.WithError(err).Error("cannot create LINE bot client; webhook disabled")
		return &LineWebhookHandler{DB: db, Bot: nil}
	}
	return &LineWebhookHandler{DB: db, Bot: bot}
}

// Handle processes incoming webhook events. The 200 goes back immediately;
// events are handled asynchronously as LINE expects.
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.Bot == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	signature := c.Get("X-Line-Signature")
	if signature == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if !validateSignature(os.Getenv("LINE_CHANNEL_SECRET"), c.Body(), signature) {
		logrus.Warn("LINE webhook signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	body := make([]byte, len(c.Body()))
	copy(body, c.Body())

	go h.processEvents(body)

	return c.SendStatus(fiber.StatusOK)
}

func (h *LineWebhookHandler) processEvents(body []byte) {
	var webhook struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(body, &webhook); err != nil {
		logrus.WithError(err).Error("Failed to parse LINE event JSON")
		return
	}

	for _, event := range webhook.Events {
		switch event.Type {
		case linebot.EventTypeFollow:
			h.replyText(event.ReplyToken,
				"Welcome to KinderNest! Send the phone number registered with the school to link your account.")

		case linebot.EventTypeMessage:
			textMessage, ok := event.Message.(*linebot.TextMessage)
			if !ok || event.Source == nil || event.Source.UserID == "" {
				continue
			}
			h.handleLinkMessage(event.Source.UserID, strings.TrimSpace(textMessage.Text), event.ReplyToken)

		case linebot.EventTypeUnfollow:
			if event.Source != nil && event.Source.UserID != "" {
				h.DB.Model(&models.User{}).
					Where("line_id = ?", event.Source.UserID).
					Update("line_id", "")
			}
		}
	}
}

// handleLinkMessage matches the sent phone number against parent accounts
// and stores the LINE user ID on success.
func (h *LineWebhookHandler) handleLinkMessage(lineUserID, text, replyToken string) {
	phone := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	if len(phone) < 9 {
		h.replyText(replyToken, "To link your account, send the phone number registered with the school.")
		return
	}

	var user models.User
	err := h.DB.Where("phone = ? AND role = ? AND status = ?", phone, "parent", "active").First(&user).Error
	if err != nil {
		h.replyText(replyToken, "No parent account matches this phone number. Please contact the school office.")
		return
	}

	if err := h.DB.Model(&user).Update("line_id", lineUserID).Error; err != nil {
		logrus.WithError(err).Error("Failed to link LINE account")
		h.replyText(replyToken, "Something went wrong, please try again later.")
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
	}).Info("Linked LINE account to parent user")
	h.replyText(replyToken, "Your LINE account is now linked. You will receive school announcements here.")
}

func (h *LineWebhookHandler) replyText(replyToken, text string) {
	if replyToken == "" {
		return
	}
	if _, err := h.Bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).Do(); err != nil {
		logrus.WithError(err).Warn("Failed to send LINE reply")
	}
}

func validateSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
