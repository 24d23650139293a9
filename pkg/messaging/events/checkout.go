package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
)

// CheckoutResolvedEvent is emitted once per confirmed checkout session.
type CheckoutResolvedEvent struct {
	SessionID  string    `json:"session_id"`
	Outcome    string    `json:"outcome"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func (e CheckoutResolvedEvent) Subject() string {
	return messaging.CheckoutResolvedSubject
}

func (e CheckoutResolvedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Key identifies the checkout session so a repeated publish is deduplicated by the stream.
func (e CheckoutResolvedEvent) Key() string {
	return e.Subject() + ":" + e.SessionID
}
