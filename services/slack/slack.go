package slacksvc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trezcool/soko/core"
)

// Notifier posts ops notifications to a Slack incoming webhook. Sends are
// best-effort: failures are logged and never returned.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     core.Logger
}

func NewNotifier(conf *core.Config, logger core.Logger) *Notifier {
	return &Notifier{
		webhookURL: conf.Slack.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (n *Notifier) Notify(text string) {
	if n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		n.logger.Error(fmt.Sprintf("encoding slack notification: %v", err), err)
		return
	}

	res, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		n.logger.Error(fmt.Sprintf("posting slack notification: %v", err), err)
		return
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		n.logger.Error(fmt.Sprintf("posting slack notification - status: %d", res.StatusCode))
	}
}
