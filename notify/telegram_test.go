package notify

import (
	"testing"
	"time"

	"github.com/korjavin/zahlbot/models"
)

func TestRunReturnsWhenChannelClosed(t *testing.T) {
	n := &TelegramNotifier{chatID: 1}
	updates := make(chan models.Update)

	done := make(chan struct{})
	go func() {
		n.Run(updates)
		close(done)
	}()

	close(updates)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the update channel was closed")
	}
}
