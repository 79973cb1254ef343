package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"tutorslot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(buffer int) *Hub {
	logger := zerolog.Nop()
	return NewHub(buffer, &logger)
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case frame, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		var ev Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case frame := <-sub.Events():
		t.Fatalf("unexpected event: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublish(t *testing.T) {
	hub := newTestHub(4)
	defer hub.Close()

	teacher1, err := hub.Subscribe("T1")
	require.NoError(t, err)
	teacher2, err := hub.Subscribe("T1")
	require.NoError(t, err)
	student, err := hub.Subscribe("A")
	require.NoError(t, err)

	assert.Equal(t, 2, hub.Subscribers("T1"))

	hub.Publish("T1", SlotUpdate(&models.Slot{ID: 1, TeacherID: "T1", Reserved: true}))

	for _, sub := range []*Subscription{teacher1, teacher2} {
		ev := receive(t, sub)
		assert.Equal(t, TypeSlotUpdate, ev.Type)
		require.NotNil(t, ev.Slot)
		assert.True(t, ev.Slot.Reserved)
	}
	assertNoEvent(t, student)
}

func TestHubErrorFrameShape(t *testing.T) {
	hub := newTestHub(1)
	defer hub.Close()

	sub, err := hub.Subscribe("B")
	require.NoError(t, err)

	hub.Publish("B", Error(models.MsgSlotAlreadyBooked))

	frame := <-sub.Events()
	assert.JSONEq(t, `{"type":"error","message":"Slot is already booked"}`, string(frame))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(1)
	defer hub.Close()

	sub, err := hub.Subscribe("A")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		hub.Publish("A", Error("first"))
		hub.Publish("A", Error("second"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, "first", receive(t, sub).Message)
	assertNoEvent(t, sub)
}

func TestHubConcurrentPublishKeepsFramesWhole(t *testing.T) {
	hub := newTestHub(256)
	defer hub.Close()

	sub, err := hub.Subscribe("T1")
	require.NoError(t, err)

	const publishers = 8
	const perPublisher = 20

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				hub.Publish("T1", BookingUpdate(&models.Booking{ID: int64(p*1000 + i), StudentID: fmt.Sprintf("S%d", p)}))
			}
		}(p)
	}
	wg.Wait()

	for i := 0; i < publishers*perPublisher; i++ {
		ev := receive(t, sub)
		assert.Equal(t, TypeBookingUpdate, ev.Type)
		require.NotNil(t, ev.Booking)
	}
}

func TestHubUnsubscribeAndClose(t *testing.T) {
	hub := newTestHub(1)

	sub, err := hub.Subscribe("A")
	require.NoError(t, err)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers("A"))

	other, err := hub.Subscribe("T1")
	require.NoError(t, err)

	hub.Close()
	_, ok = <-other.Events()
	assert.False(t, ok)

	_, err = hub.Subscribe("T1")
	assert.ErrorIs(t, err, ErrHubClosed)

	assert.NotPanics(t, func() {
		hub.Publish("T1", Error("after close"))
		hub.Unsubscribe(other)
		hub.Close()
	})
}

type recordingForwarder struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func (r *recordingForwarder) Forward(partyID string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames == nil {
		r.frames = make(map[string][][]byte)
	}
	r.frames[partyID] = append(r.frames[partyID], frame)
}

func TestHubForwarder(t *testing.T) {
	hub := newTestHub(1)
	defer hub.Close()

	fwd := &recordingForwarder{}
	hub.SetForwarder(fwd)

	hub.Publish("T1", Error("x"))
	fwd.mu.Lock()
	assert.Len(t, fwd.frames["T1"], 1)
	fwd.mu.Unlock()

	hub.SetForwarder(nil)
	hub.Publish("T1", Error("y"))
	fwd.mu.Lock()
	assert.Len(t, fwd.frames["T1"], 1)
	fwd.mu.Unlock()
}
