// Package checkout turns the cart into an order, hands the shopper to the payment page
// and reconciles the payment outcome when they come back.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/notice"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAwaitingRedirect
	StateConfirming
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateConfirming:
		return "confirming"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeUnpaid Outcome = "unpaid"
	OutcomeError  Outcome = "error"
)

// RouteOrders is where every confirmation lands.
const RouteOrders = "/orders"

// CreatedOrder is the backend answer to order creation.
type CreatedOrder struct {
	OrderID     int64
	RedirectURL string
}

// PaymentStatus is the settlement state of a payment session.
type PaymentStatus struct {
	Status string `json:"status"`
}

// Paid reports whether the payment settled.
func (p PaymentStatus) Paid() bool {
	return strings.EqualFold(p.Status, string(OutcomePaid))
}

type Remote interface {
	CreateOrder(ctx context.Context, creds auth.CredentialProvider, idempotencyKey string) (CreatedOrder, error)
	PaymentStatus(ctx context.Context, creds auth.CredentialProvider, sessionID string) (PaymentStatus, error)
}

// Ledger remembers which payment sessions were already queried.
type Ledger interface {
	MarkConsumed(ctx context.Context, sessionID string) (bool, error)
}

// CartReader exposes the local cart copy. Clear drops it once an order was created from it.
type CartReader interface {
	Entries() []cart.Entry
	Clear()
}

// Resolution tells the surface where to go after a confirmation. An empty Route means stay.
type Resolution struct {
	Outcome Outcome `json:"outcome,omitempty"`
	Route   string  `json:"route,omitempty"`
}

// Orchestrator is the checkout state machine of one shopper session.
type Orchestrator struct {
	remote    Remote
	ledger    Ledger
	cart      CartReader
	notices   *notice.Queue
	publisher messaging.Publisher
	logger    *slog.Logger

	submissions metric.Int64Counter
	resolutions metric.Int64Counter

	mu    sync.Mutex
	state State
}

func NewOrchestrator(remote Remote, ledger Ledger, cart CartReader, notices *notice.Queue,
	publisher messaging.Publisher, logger *slog.Logger) *Orchestrator {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	meter := otel.Meter("github.com/abgdnv/storefront/internal/checkout")
	submissions, _ := meter.Int64Counter("storefront.checkout.submissions",
		metric.WithDescription("Checkout submissions by result"))
	resolutions, _ := meter.Int64Counter("storefront.checkout.resolutions",
		metric.WithDescription("Checkout confirmations by outcome"))

	return &Orchestrator{
		remote:      remote,
		ledger:      ledger,
		cart:        cart,
		notices:     notices,
		publisher:   publisher,
		logger:      logger.With("component", "checkout"),
		submissions: submissions,
		resolutions: resolutions,
		state:       StateIdle,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit creates an order from the current cart and returns the payment redirect URL.
// An empty cart never reaches the backend. Failures are not retried.
func (o *Orchestrator) Submit(ctx context.Context, creds auth.CredentialProvider) (string, error) {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return "", sferrors.ErrBusy
	}
	if len(o.cart.Entries()) == 0 {
		o.mu.Unlock()
		o.notices.PushError(sferrors.ErrCartEmpty)
		o.count(ctx, o.submissions, "result", "empty")
		return "", sferrors.ErrCartEmpty
	}
	o.state = StateSubmitting
	o.mu.Unlock()

	created, err := o.remote.CreateOrder(ctx, creds, uuid.NewString())
	if err == nil && created.RedirectURL == "" {
		err = fmt.Errorf("%w: order %d created without a payment url", sferrors.ErrUnavailable, created.OrderID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state = StateIdle
		o.notices.PushError(err)
		o.count(ctx, o.submissions, "result", "failed")
		o.logger.WarnContext(ctx, "checkout submission failed", "error", err)
		return "", fmt.Errorf("failed to create order: %w", err)
	}

	o.state = StateAwaitingRedirect
	// the backend consumed the cart lines into the order
	o.cart.Clear()
	o.logger.InfoContext(ctx, "order created, handing off to payment", "order_id", created.OrderID)
	o.count(ctx, o.submissions, "result", "redirected")
	// the shopper leaves for the payment page; nothing waits for them here
	o.state = StateIdle
	return created.RedirectURL, nil
}

// Confirm reconciles the payment outcome for sessionID and always lands on Orders,
// except when ctx is canceled: then nothing is recorded and no route is returned.
func (o *Orchestrator) Confirm(ctx context.Context, creds auth.CredentialProvider, sessionID string) (Resolution, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		o.setState(StateResolved)
		return Resolution{Route: RouteOrders}, nil
	}

	first, err := o.ledger.MarkConsumed(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		o.logger.ErrorContext(ctx, "checkout ledger unavailable", "session_id", sessionID, "error", err)
		return o.resolve(ctx, sessionID, OutcomeError), nil
	}
	if !first {
		o.logger.InfoContext(ctx, "payment session already confirmed", "session_id", sessionID)
		o.setState(StateResolved)
		return Resolution{Route: RouteOrders}, nil
	}

	o.setState(StateConfirming)
	status, err := o.remote.PaymentStatus(ctx, creds, sessionID)
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		o.logger.InfoContext(ctx, "confirmation abandoned", "session_id", sessionID)
		o.setState(StateIdle)
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		return Resolution{}, err
	case err != nil:
		o.logger.WarnContext(ctx, "payment status query failed", "session_id", sessionID, "error", err)
		return o.resolve(ctx, sessionID, OutcomeError), nil
	case status.Paid():
		return o.resolve(ctx, sessionID, OutcomePaid), nil
	default:
		return o.resolve(ctx, sessionID, OutcomeUnpaid), nil
	}
}

func (o *Orchestrator) resolve(ctx context.Context, sessionID string, outcome Outcome) Resolution {
	o.setState(StateResolved)
	o.notices.Push(outcomeNotice(outcome))
	o.count(ctx, o.resolutions, "outcome", string(outcome))

	event := events.CheckoutResolvedEvent{SessionID: sessionID, Outcome: string(outcome), ResolvedAt: time.Now().UTC()}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish checkout event", "session_id", sessionID, "error", err)
	}
	return Resolution{Outcome: outcome, Route: RouteOrders}
}

func outcomeNotice(outcome Outcome) notice.Notice {
	switch outcome {
	case OutcomePaid:
		return notice.Notice{Level: notice.LevelSuccess, Message: "payment confirmed"}
	case OutcomeUnpaid:
		return notice.Notice{Level: notice.LevelInfo, Message: "payment is being processed"}
	default:
		return notice.Notice{Level: notice.LevelError, Message: "could not confirm the payment"}
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) count(ctx context.Context, counter metric.Int64Counter, key, value string) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String(key, value)))
}
