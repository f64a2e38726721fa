package submanager

import (
	"context"
	"errors"
	"fmt"
)

// Handler processes one lifecycle event payload.
type Handler[T any] func(ctx context.Context, payload T) error

// Dispatcher fires a named lifecycle event.
type Dispatcher[T any] interface {
	// Name returns the event name.
	Name() string

	// Fire runs the event handlers for payload.
	Fire(ctx context.Context, payload T) error
}

// EventError reports which handler of which event failed.
type EventError struct {
	Event   string // Event name
	Handler int    // Index of the failing handler in registration order
	Err     error  // Error returned by the handler
}

// Error implements the error interface.
func (e *EventError) Error() string {
	return fmt.Sprintf("event %q handler %d: %v", e.Event, e.Handler, e.Err)
}

// Unwrap returns the handler error.
func (e *EventError) Unwrap() error {
	return e.Err
}

// Event is a named, ordered list of handlers fixed at construction.
//
// Fire calls each handler in registration order on the calling goroutine.
// The first failing handler stops the firing; handlers that already ran are
// not undone. An Event holds no state between firings and is safe for
// concurrent use.
type Event[T any] struct {
	name     string
	handlers []Handler[T]
}

// NewEvent creates an event with the given handlers. The handler list is
// copied and cannot be changed afterwards.
func NewEvent[T any](name string, handlers ...Handler[T]) *Event[T] {
	return &Event[T]{
		name:     name,
		handlers: append([]Handler[T](nil), handlers...),
	}
}

// Name returns the event name.
func (e *Event[T]) Name() string {
	return e.name
}

// Len returns the number of registered handlers.
func (e *Event[T]) Len() int {
	return len(e.handlers)
}

// Fire runs every handler in order and returns the first failure as an *EventError.
func (e *Event[T]) Fire(ctx context.Context, payload T) error {
	for i, h := range e.handlers {
		if err := h(ctx, payload); err != nil {
			return &EventError{Event: e.name, Handler: i, Err: err}
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (e *Event[T]) String() string {
	return fmt.Sprintf("%s event (%d handlers)", e.name, len(e.handlers))
}

// Step is one reversible unit of a CompensatingEvent.
type Step[T any] struct {
	Name string
	Do   Handler[T]
	Undo Handler[T] // optional
}

// CompensatingEvent runs its steps all-or-nothing.
//
// When step k fails, Undo of step k runs first, then Undo of every completed
// step in reverse order. The returned error wraps the original failure;
// undo failures are joined to it. Undo functions must tolerate being called
// for a step that only partially completed.
type CompensatingEvent[T any] struct {
	name  string
	steps []Step[T]
}

// NewCompensatingEvent creates a compensating event with the given steps.
func NewCompensatingEvent[T any](name string, steps ...Step[T]) *CompensatingEvent[T] {
	return &CompensatingEvent[T]{
		name:  name,
		steps: append([]Step[T](nil), steps...),
	}
}

// Name returns the event name.
func (e *CompensatingEvent[T]) Name() string {
	return e.name
}

// Fire runs the steps in order, undoing all of them if one fails.
func (e *CompensatingEvent[T]) Fire(ctx context.Context, payload T) error {
	done := make([]Step[T], 0, len(e.steps))

	for i, step := range e.steps {
		err := step.Do(ctx, payload)
		if err == nil {
			done = append(done, step)
			continue
		}

		errs := []error{&EventError{Event: e.name, Handler: i, Err: err}}
		if uerr := undo(ctx, step, payload); uerr != nil {
			errs = append(errs, uerr)
		}
		for j := len(done) - 1; j >= 0; j-- {
			if uerr := undo(ctx, done[j], payload); uerr != nil {
				errs = append(errs, uerr)
			}
		}
		return errors.Join(errs...)
	}

	return nil
}

func undo[T any](ctx context.Context, step Step[T], payload T) error {
	if step.Undo == nil {
		return nil
	}
	if err := step.Undo(ctx, payload); err != nil {
		return fmt.Errorf("undo %s: %w", step.Name, err)
	}
	return nil
}
