package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"onebox/backend/internal/domain"
)

// eventEmailInterested 外部 webhook 的事件类型
const eventEmailInterested = "email.interested"

// WebhookNotifier 向外部系统推送结构化事件。
type WebhookNotifier struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewWebhookNotifier 创建外部 webhook 通知渠道。
// secret 非空时对请求体附加 HMAC-SHA256 签名。
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name 返回渠道名称。
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// webhookEvent 推送的事件载荷
type webhookEvent struct {
	ID        string        `json:"id"`
	Event     string        `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Data      *domain.Email `json:"data"`
}

// Notify 以 POST 推送 email.interested 事件。
func (n *WebhookNotifier) Notify(ctx context.Context, email *domain.Email) error {
	event := webhookEvent{
		ID:        uuid.New().String(),
		Event:     eventEmailInterested,
		Timestamp: time.Now().UTC(),
		Data:      email,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event.Event)
	req.Header.Set("X-Webhook-ID", event.ID)
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", signPayload(payload, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// signPayload 计算请求体的 HMAC-SHA256 签名。
func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
