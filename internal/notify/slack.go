package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"onebox/backend/internal/domain"
)

var errQueueFull = errors.New("notification queue full")

// SlackNotifier 通过 incoming webhook 推送 Slack 消息。
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackNotifier 创建 Slack 通知渠道。
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name 返回渠道名称。
func (n *SlackNotifier) Name() string {
	return "slack"
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// Notify 推送一条带邮件摘要的 Block Kit 消息。
func (n *SlackNotifier) Notify(ctx context.Context, email *domain.Email) error {
	from := email.From.Address
	if email.From.Name != "" {
		from = fmt.Sprintf("%s <%s>", email.From.Name, email.From.Address)
	}

	preview := email.Body
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}

	payload := slackPayload{
		Text: fmt.Sprintf("New interested lead: %s", email.Subject),
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: "🎯 New Interested Lead"},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: fmt.Sprintf("*From:*\n%s", from)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Account:*\n%s", email.Account)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Subject:*\n%s", email.Subject)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Date:*\n%s", email.Date.Format(time.RFC1123))},
				},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Preview:*\n%s", preview)},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook returned HTTP %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
