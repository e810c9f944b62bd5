package slack

import (
	"github.com/Strob0t/answerdesk/internal/port/notifier"
)

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		return NewNotifier(NewClient(config["api_url"], config["bot_token"])), nil
	})
}
