package submanager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func recordingHandler(log *callLog, name string, err error) Handler[int] {
	return func(_ context.Context, _ int) error {
		log.add(name)
		return err
	}
}

func TestEvent_RunsHandlersInOrder(t *testing.T) {
	log := &callLog{}
	ev := NewEvent("test",
		recordingHandler(log, "a", nil),
		recordingHandler(log, "b", nil),
		recordingHandler(log, "c", nil),
	)

	require.NoError(t, ev.Fire(context.Background(), 1))
	assert.Equal(t, []string{"a", "b", "c"}, log.get())
	assert.Equal(t, "test", ev.Name())
	assert.Equal(t, 3, ev.Len())
}

func TestEvent_StopsAtFirstError(t *testing.T) {
	log := &callLog{}
	boom := errors.New("boom")
	ev := NewEvent("test",
		recordingHandler(log, "a", nil),
		recordingHandler(log, "b", boom),
		recordingHandler(log, "c", nil),
	)

	err := ev.Fire(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, log.get())

	var evErr *EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, "test", evErr.Event)
	assert.Equal(t, 1, evErr.Handler)
}

func TestEvent_PreservesErrorCategory(t *testing.T) {
	ev := NewEvent("test", func(_ context.Context, _ int) error {
		return NewBrokerError("queue declare failed", errors.New("x"))
	})

	err := ev.Fire(context.Background(), 1)
	assert.True(t, IsBroker(err))
	assert.Equal(t, ErrCodeBroker, ErrorCode(err))
}

func TestEvent_HandlerListIsCopied(t *testing.T) {
	log := &callLog{}
	handlers := []Handler[int]{recordingHandler(log, "a", nil)}
	ev := NewEvent("test", handlers...)

	handlers[0] = recordingHandler(log, "replaced", nil)

	require.NoError(t, ev.Fire(context.Background(), 1))
	assert.Equal(t, []string{"a"}, log.get())
}

func TestEvent_NoHandlers(t *testing.T) {
	ev := NewEvent[int]("empty")
	assert.NoError(t, ev.Fire(context.Background(), 1))
	assert.Equal(t, "empty event (0 handlers)", ev.String())
}

func TestEvent_ConcurrentFire(t *testing.T) {
	var mu sync.Mutex
	sum := 0
	ev := NewEvent("sum", func(_ context.Context, n int) error {
		mu.Lock()
		defer mu.Unlock()
		sum += n
		return nil
	})

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, ev.Fire(context.Background(), n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5050, sum)
}

func step(log *callLog, name string, err error) Step[int] {
	return Step[int]{
		Name: name,
		Do:   recordingHandler(log, "do "+name, err),
		Undo: recordingHandler(log, "undo "+name, nil),
	}
}

func TestCompensatingEvent_Success(t *testing.T) {
	log := &callLog{}
	ev := NewCompensatingEvent("test", step(log, "a", nil), step(log, "b", nil))

	require.NoError(t, ev.Fire(context.Background(), 1))
	assert.Equal(t, []string{"do a", "do b"}, log.get())
	assert.Equal(t, "test", ev.Name())
}

func TestCompensatingEvent_UndoesInReverse(t *testing.T) {
	log := &callLog{}
	boom := errors.New("boom")
	ev := NewCompensatingEvent("test",
		step(log, "a", nil),
		step(log, "b", nil),
		step(log, "c", boom),
		step(log, "d", nil),
	)

	err := ev.Fire(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"do a", "do b", "do c", "undo c", "undo b", "undo a"}, log.get())
}

func TestCompensatingEvent_JoinsUndoErrors(t *testing.T) {
	boom := errors.New("boom")
	undoFailed := errors.New("undo failed")
	ev := NewCompensatingEvent("test",
		Step[int]{
			Name: "a",
			Do:   func(context.Context, int) error { return nil },
			Undo: func(context.Context, int) error { return undoFailed },
		},
		Step[int]{
			Name: "b",
			Do:   func(context.Context, int) error { return boom },
		},
	)

	err := ev.Fire(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, undoFailed)
	assert.Contains(t, err.Error(), "undo a")
}
