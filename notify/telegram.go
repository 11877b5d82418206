package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/zahlbot/models"
)

// TelegramNotifier pushes number updates to a Telegram chat. It is an
// ordinary broadcast subscriber; send failures are logged and skipped.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a notifier for the given bot token and chat
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	log.Printf("Telegram notifier authorized as %s", api.Self.UserName)
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// Run consumes updates until the channel is closed
func (n *TelegramNotifier) Run(updates <-chan models.Update) {
	for update := range updates {
		text := fmt.Sprintf("❓ %s\n🔢 %d (source: %s)", update.Question, update.Number, update.Source)
		if _, err := n.api.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
			log.Printf("Error sending Telegram notification: %v", err)
		}
	}
}
