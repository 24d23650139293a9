// Package notice holds the transient user-facing messages produced by storefront operations.
package notice

import (
	"context"
	"errors"
	"sync"

	sferrors "github.com/abgdnv/storefront/internal/errors"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// FromError maps a failure to the single notice shown for it.
// A canceled operation has no audience and yields ok == false.
func FromError(err error) (Notice, bool) {
	switch {
	case err == nil:
		return Notice{}, false
	case errors.Is(err, context.Canceled):
		return Notice{}, false
	case errors.Is(err, sferrors.ErrUnauthenticated):
		return Notice{Level: LevelWarning, Message: "please sign in"}, true
	case errors.Is(err, sferrors.ErrCartEmpty):
		return Notice{Level: LevelWarning, Message: "cart is empty"}, true
	case errors.Is(err, sferrors.ErrBusy):
		return Notice{Level: LevelInfo, Message: "request already in progress"}, true
	case errors.Is(err, sferrors.ErrValidationRejected):
		return Notice{Level: LevelWarning, Message: "invalid input, previous value kept"}, true
	case errors.Is(err, sferrors.ErrNotFound):
		return Notice{Level: LevelError, Message: "not found"}, true
	default:
		return Notice{Level: LevelError, Message: "something went wrong, please try again"}, true
	}
}

// Queue collects notices until the surface drains them.
type Queue struct {
	mu      sync.Mutex
	pending []Notice
}

func (q *Queue) Push(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
}

// PushError records the notice for err, if it has one.
func (q *Queue) PushError(err error) {
	if n, ok := FromError(err); ok {
		q.Push(n)
	}
}

// Drain returns and clears the pending notices.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	if out == nil {
		return []Notice{}
	}
	return out
}
