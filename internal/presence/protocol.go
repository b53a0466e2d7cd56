package presence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sangha-backend/internal/metrics"
	"sangha-backend/internal/models"
)

// Delivery is one outbound frame addressed to one connection.
type Delivery struct {
	Handle  uuid.UUID
	Message models.PresenceMessage
}

// Protocol turns inbound frames and transport closes into registry operations
// and the frames to send in response. It never touches a connection itself.
type Protocol struct {
	registry *Registry
}

func NewProtocol(registry *Registry) *Protocol {
	return &Protocol{registry: registry}
}

func (p *Protocol) Registry() *Registry {
	return p.registry
}

// HandleMessage processes one inbound frame from origin. Malformed frames produce
// no deliveries; rejected connects produce a single rejected frame to origin.
func (p *Protocol) HandleMessage(ctx context.Context, origin uuid.UUID, raw []byte) []Delivery {
	var msg models.PresenceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		p.drop(origin, "", err)
		return nil
	}

	var mode Mode
	switch msg.Event {
	case models.EventStartSession, models.EventReconnectSession:
		mode = ModeReal
	case models.EventStartVirtualSession:
		mode = ModeVirtual
	default:
		p.drop(origin, msg.Event, ErrMalformedMessage)
		return nil
	}

	practitionerID := strings.TrimSpace(msg.Data)
	if practitionerID == "" {
		p.drop(origin, msg.Event, ErrMalformedMessage)
		return nil
	}

	admission, err := p.registry.Connect(ctx, origin, practitionerID, mode)
	if err != nil {
		metrics.RecordPresenceEvent(msg.Event, "rejected")
		logrus.WithError(err).WithFields(logrus.Fields{
			"handle": origin,
			"event":  msg.Event,
		}).Info("presence: connect rejected")
		return []Delivery{rejected(origin, err)}
	}

	metrics.RecordPresenceEvent(msg.Event, "accepted")

	snap := p.registry.Snapshot(origin)
	newcomer := encode(admission.Session)
	everyone := encode(snap.All)

	deliveries := make([]Delivery, 0, len(snap.Others)+2)
	for _, handle := range snap.Others {
		deliveries = append(deliveries, Delivery{Handle: handle, Message: models.PresenceMessage{
			Event: models.EventNewCompanion,
			Data:  everyone,
			Extra: newcomer,
		}})
	}
	deliveries = append(deliveries, Delivery{Handle: origin, Message: models.PresenceMessage{
		Event: models.EventCompanionsSessions,
		Data:  encode(snap.Companions),
	}})
	if admission.Declined != nil {
		deliveries = append(deliveries, rejected(origin, admission.Declined))
	}
	return deliveries
}

// HandleDisconnect unregisters handle and notifies the remaining connections.
// A handle that was never registered, or is already gone, yields nothing.
func (p *Protocol) HandleDisconnect(handle uuid.UUID) []Delivery {
	sessions, ok := p.registry.Disconnect(handle)
	if !ok || len(sessions) == 0 {
		return nil
	}

	metrics.RecordPresenceEvent(models.EventCompanionLeft, "accepted")

	snap := p.registry.Snapshot(handle)
	leaver := encode(sessions[0])
	remaining := encode(snap.All)

	deliveries := make([]Delivery, 0, len(snap.Others))
	for _, other := range snap.Others {
		deliveries = append(deliveries, Delivery{Handle: other, Message: models.PresenceMessage{
			Event: models.EventCompanionLeft,
			Data:  remaining,
			Extra: leaver,
		}})
	}
	return deliveries
}

func (p *Protocol) drop(origin uuid.UUID, event string, err error) {
	metrics.RecordPresenceEvent(event, "malformed")
	logrus.WithError(err).WithField("handle", origin).Debug("presence: dropped malformed message")
}

// RejectionReason is the machine-readable reason carried by a rejected frame.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownPractitioner):
		return "unknown_practitioner"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "unavailable"
	}
}

func rejected(origin uuid.UUID, err error) Delivery {
	return Delivery{Handle: origin, Message: models.PresenceMessage{
		Event: models.EventRejected,
		Data:  RejectionReason(err),
	}}
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).Error("presence: failed to encode payload")
		return ""
	}
	return string(b)
}
