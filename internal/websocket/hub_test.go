package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"onebox/backend/internal/domain"
)

func TestUpgraderOriginCheck(t *testing.T) {
	newRequest := func(origin string) *http.Request {
		req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	t.Run("通配符允许任意来源", func(t *testing.T) {
		upgrader := upgraderFactory([]string{"*"})
		assert.True(t, upgrader.CheckOrigin(newRequest("https://evil.example.com")))
	})

	t.Run("白名单内来源放行", func(t *testing.T) {
		upgrader := upgraderFactory([]string{"https://app.example.com"})
		assert.True(t, upgrader.CheckOrigin(newRequest("https://app.example.com")))
		assert.False(t, upgrader.CheckOrigin(newRequest("https://evil.example.com")))
	})

	t.Run("无Origin视为同源", func(t *testing.T) {
		upgrader := upgraderFactory([]string{"https://app.example.com"})
		assert.True(t, upgrader.CheckOrigin(newRequest("")))
	})
}

func TestClientWantsAccount(t *testing.T) {
	client := &Client{accounts: make(map[string]bool)}

	// 未订阅任何账户时接收全部事件
	assert.True(t, client.wantsAccount("a@example.com"))

	client.accounts["a@example.com"] = true
	assert.True(t, client.wantsAccount("a@example.com"))
	assert.False(t, client.wantsAccount("b@example.com"))
}

func TestBroadcastDeliversToSubscribedClients(t *testing.T) {
	hub := NewHub([]string{"*"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := &Client{
		ID:       "c1",
		send:     make(chan []byte, 8),
		hub:      hub,
		accounts: map[string]bool{"me@example.com": true},
		log:      zap.NewNop(),
	}
	other := &Client{
		ID:       "c2",
		send:     make(chan []byte, 8),
		hub:      hub,
		accounts: map[string]bool{"other@example.com": true},
		log:      zap.NewNop(),
	}
	hub.register <- subscribed
	hub.register <- other

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastNewEmail(&domain.Email{
		ID:       "id-1",
		Account:  "me@example.com",
		Folder:   "INBOX",
		From:     domain.EmailAddress{Address: "prospect@example.com"},
		Subject:  "Re: outreach",
		Body:     "sounds good",
		Category: domain.CategoryInterested,
		Date:     time.Now().UTC(),
	})

	select {
	case raw := <-subscribed.send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, MessageTypeNewMail, msg.Type)
		assert.Equal(t, "me@example.com", msg.Account)

		var data NewMailData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "id-1", data.EmailID)
		assert.Equal(t, "Interested", data.Category)
	case <-time.After(time.Second):
		t.Fatal("subscribed client did not receive the event")
	}

	// 订阅了其他账户的客户端收不到
	select {
	case <-other.send:
		t.Fatal("unsubscribed client received the event")
	case <-time.After(50 * time.Millisecond):
	}
}
