package presence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sangha-backend/internal/models"
	"sangha-backend/internal/practice"
	"sangha-backend/internal/services"
)

func frame(event, data string) []byte {
	b, _ := json.Marshal(models.PresenceMessage{Event: event, Data: data})
	return b
}

func decodeSessions(t *testing.T, payload string) []models.Session {
	t.Helper()
	var sessions []models.Session
	require.NoError(t, json.Unmarshal([]byte(payload), &sessions))
	return sessions
}

func byHandle(deliveries []Delivery, handle uuid.UUID) []models.PresenceMessage {
	var out []models.PresenceMessage
	for _, d := range deliveries {
		if d.Handle == handle {
			out = append(out, d.Message)
		}
	}
	return out
}

func TestHandleMessage_MalformedFramesAreDropped(t *testing.T) {
	registry, repo := newTestRegistry(t)
	seedSitter(t, repo, "a")
	protocol := NewProtocol(registry)
	origin := uuid.New()

	for _, raw := range [][]byte{
		[]byte("{not json"),
		frame("dance", "a"),
		frame(models.EventStartSession, "  "),
	} {
		assert.Empty(t, protocol.HandleMessage(context.Background(), origin, raw))
	}
	assert.Zero(t, registry.Size())
}

func TestHandleMessage_MalformedFrameKeepsConnection(t *testing.T) {
	registry, repo := newTestRegistry(t)
	seedSitter(t, repo, "a")
	protocol := NewProtocol(registry)
	origin := uuid.New()

	require.NotEmpty(t, protocol.HandleMessage(context.Background(), origin, frame(models.EventStartSession, "a")))
	assert.Empty(t, protocol.HandleMessage(context.Background(), origin, []byte("garbage")))

	assert.Equal(t, 1, registry.Size())
}

func TestHandleMessage_UnknownPractitionerIsRejected(t *testing.T) {
	registry, _ := newTestRegistry(t)
	protocol := NewProtocol(registry)
	origin := uuid.New()

	deliveries := protocol.HandleMessage(context.Background(), origin, frame(models.EventStartSession, "ghost"))

	require.Len(t, deliveries, 1)
	assert.Equal(t, origin, deliveries[0].Handle)
	assert.Equal(t, models.EventRejected, deliveries[0].Message.Event)
	assert.Equal(t, "unknown_practitioner", deliveries[0].Message.Data)
	assert.Zero(t, registry.Size())
}

func TestHandleMessage_FirstConnectGetsEmptyCompanions(t *testing.T) {
	registry, repo := newTestRegistry(t)
	seedSitter(t, repo, "a")
	protocol := NewProtocol(registry)
	origin := uuid.New()

	deliveries := protocol.HandleMessage(context.Background(), origin, frame(models.EventReconnectSession, "a"))

	require.Len(t, deliveries, 1)
	assert.Equal(t, origin, deliveries[0].Handle)
	assert.Equal(t, models.EventCompanionsSessions, deliveries[0].Message.Event)
	assert.Empty(t, decodeSessions(t, deliveries[0].Message.Data))
}

func TestHandleMessage_BroadcastsNewCompanion(t *testing.T) {
	registry, repo := newTestRegistry(t)
	seedSitter(t, repo, "a")
	seedSitter(t, repo, "b")
	protocol := NewProtocol(registry)
	first, second := uuid.New(), uuid.New()
	ctx := context.Background()

	protocol.HandleMessage(ctx, first, frame(models.EventStartSession, "a"))
	deliveries := protocol.HandleMessage(ctx, second, frame(models.EventStartSession, "b"))

	toFirst := byHandle(deliveries, first)
	require.Len(t, toFirst, 1)
	assert.Equal(t, models.EventNewCompanion, toFirst[0].Event)
	assert.Len(t, decodeSessions(t, toFirst[0].Data), 2)
	assert.NotEmpty(t, toFirst[0].Extra)

	toSecond := byHandle(deliveries, second)
	require.Len(t, toSecond, 1)
	assert.Equal(t, models.EventCompanionsSessions, toSecond[0].Event)
	assert.Len(t, decodeSessions(t, toSecond[0].Data), 1)
}

func TestHandleMessage_DeclinedVirtualStillConnects(t *testing.T) {
	registry, repo := newTestRegistry(t)
	seedCreator(t, repo, "creator", 8, true)
	protocol := NewProtocol(registry)
	origin := uuid.New()

	deliveries := protocol.HandleMessage(context.Background(), origin, frame(models.EventStartVirtualSession, "creator"))

	require.Len(t, deliveries, 2)
	assert.Equal(t, models.EventCompanionsSessions, deliveries[0].Message.Event)
	assert.Equal(t, models.EventRejected, deliveries[1].Message.Event)
	assert.Equal(t, "insufficient_funds", deliveries[1].Message.Data)
	assert.Equal(t, 1, registry.Size())
}

func TestHandleDisconnect_UnknownHandle(t *testing.T) {
	registry, _ := newTestRegistry(t)
	protocol := NewProtocol(registry)

	assert.Empty(t, protocol.HandleDisconnect(uuid.New()))
}

// A creates a circle with two virtual registrations and sits in it; B sits
// alone. Both connect and, when A leaves, B is told.
func TestPresenceScenario_CreatorWithVirtualSessionsLeaves(t *testing.T) {
	registry, repo := newTestRegistry(t)
	svc := services.NewPractitionerService(repo, services.Economics{
		ContributionPercent: 100,
		CreationMinimum:     50,
		VirtualSessionCost:  virtualCost,
	}, clock)
	protocol := NewProtocol(registry)
	ctx := context.Background()
	handleA, handleB := uuid.New(), uuid.New()

	for _, id := range []string{"A", "B"} {
		_, created, err := svc.CreatePractitioner(ctx, models.CreatePractitionerRequest{ID: id})
		require.NoError(t, err)
		require.True(t, created)
	}

	circle, err := svc.CreateCircle(ctx, "A", models.CreateCircleRequest{
		Name:              "Evening sit",
		StartTime:         now.Add(-30 * time.Minute),
		EndTime:           now.Add(time.Hour),
		VirtualRegistered: 2,
	})
	require.NoError(t, err)
	_, err = svc.JoinCircle(ctx, "A", circle.ID, models.StartSessionRequest{Discipline: "zazen", Intention: "peace"})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, "B", models.StartSessionRequest{Discipline: "yoga", Intention: "love"})
	require.NoError(t, err)

	protocol.HandleMessage(ctx, handleA, frame(models.EventStartVirtualSession, "A"))
	assert.Equal(t, 3, registry.Size())
	assert.Eventually(t, func() bool {
		p, err := repo.GetByID(ctx, "A")
		return err == nil && practice.Balance(p.SpiritBankLog) == models.SpiritBankStartPoints-2*virtualCost
	}, time.Second, 10*time.Millisecond)

	deliveries := protocol.HandleMessage(ctx, handleB, frame(models.EventStartSession, "B"))
	assert.Equal(t, 4, registry.Size())
	assert.Equal(t, 2, registry.Connections())

	toA := byHandle(deliveries, handleA)
	require.Len(t, toA, 1)
	assert.Equal(t, models.EventNewCompanion, toA[0].Event)
	toB := byHandle(deliveries, handleB)
	require.Len(t, toB, 1)
	assert.Len(t, decodeSessions(t, toB[0].Data), 3)

	left := protocol.HandleDisconnect(handleA)
	assert.Equal(t, 1, registry.Size())

	require.Len(t, left, 1)
	assert.Equal(t, handleB, left[0].Handle)
	assert.Equal(t, models.EventCompanionLeft, left[0].Message.Event)
	remaining := decodeSessions(t, left[0].Message.Data)
	require.Len(t, remaining, 1)
	assert.Equal(t, "love", remaining[0].Intention)

	var leaver models.Session
	require.NoError(t, json.Unmarshal([]byte(left[0].Message.Extra), &leaver))
	assert.Equal(t, circle.ID, leaver.CircleID())

	assert.Empty(t, protocol.HandleDisconnect(handleA))
}
