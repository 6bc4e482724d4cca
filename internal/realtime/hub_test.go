package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := UserChannel(uuid.New().String())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)

	first := SSEMessage{Channel: channel, Event: SSEEventNotificationCreated, Data: map[string]any{"seq": 1}}
	second := SSEMessage{Channel: channel, Event: SSEEventMaterialApproved, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != SSEEventNotificationCreated {
		t.Fatalf("first event: want=%s got=%s", SSEEventNotificationCreated, gotFirst.Event)
	}
	if gotSecond.Event != SSEEventMaterialApproved {
		t.Fatalf("second event: want=%s got=%s", SSEEventMaterialApproved, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	reconnect := SSEMessage{Channel: channel, Event: SSEEventMaterialRejected, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != SSEEventMaterialRejected {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventMaterialRejected, gotReconnect.Event)
	}
}

func TestSSEHubChannelIsolation(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))

	moderator := hub.NewSSEClient(uuid.New())
	hub.AddChannel(moderator, ModerationChannel)

	member := hub.NewSSEClient(uuid.New())
	memberChannel := UserChannel(member.UserID.String())
	hub.AddChannel(member, memberChannel)

	hub.Broadcast(SSEMessage{Channel: ModerationChannel, Event: SSEEventMaterialSubmitted})
	got := recvMessage(t, moderator.Outbound, time.Second)
	if got.Event != SSEEventMaterialSubmitted {
		t.Fatalf("moderation event: want=%s got=%s", SSEEventMaterialSubmitted, got.Event)
	}

	select {
	case leaked := <-member.Outbound:
		t.Fatalf("member received moderation traffic: %+v", leaked)
	case <-time.After(100 * time.Millisecond):
	}
}
