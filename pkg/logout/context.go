package logout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/session"
)

// NotificationContext carries everything the fan-out callback needs
// between the request that initiates logout and the page that delivers
// the notifications. It lives in the host's message store and is
// consumed exactly once.
type NotificationContext struct {
	SubjectID         string                `json:"subject_id"`
	SessionID         string                `json:"session_id"`
	InitiatorClientID string                `json:"initiator_client_id,omitempty"`
	Participants      []session.Participant `json:"participants,omitempty"`
}

// SaveNotificationContext writes nc to the message store and returns the
// id the callback uses to retrieve it.
func SaveNotificationContext(ctx context.Context, store host.MessageStore, nc *NotificationContext) (string, error) {
	data, err := json.Marshal(nc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification context: %w", err)
	}
	id, err := store.Write(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to store notification context: %w", err)
	}
	return id, nil
}

// ConsumeNotificationContext reads the context stored under id and
// deletes it, so a replayed callback finds nothing.
func ConsumeNotificationContext(ctx context.Context, store host.MessageStore, id string) (*NotificationContext, error) {
	data, err := store.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	var nc NotificationContext
	if err := json.Unmarshal(data, &nc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification context: %w", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete notification context: %w", err)
	}
	return &nc, nil
}
