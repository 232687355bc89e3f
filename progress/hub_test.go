package progress

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodock-deploy/models"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	closed   bool
}

func (r *recordingSubscriber) Send(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingSubscriber) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingSubscriber) received() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}

func TestHubRoutesEventsToDeploymentSubscribers(t *testing.T) {
	hub := NewHub()
	mine := &recordingSubscriber{}
	other := &recordingSubscriber{}
	hub.Register("abc12345", mine)
	hub.Register("zzz99999", other)

	hub.Emit("abc12345", models.ProgressEvent{Step: "Validation", Status: "success"})

	waitFor(t, func() bool { return mine.received() == 1 })
	assert.Equal(t, 0, other.received())

	var event models.ProgressEvent
	mine.mu.Lock()
	require.NoError(t, json.Unmarshal(mine.payloads[0], &event))
	mine.mu.Unlock()
	assert.Equal(t, "Validation", event.Step)
}

func TestHubFansOutToFirehoseSubscribers(t *testing.T) {
	hub := NewHub()
	all := &recordingSubscriber{}
	hub.Register("", all)

	hub.Emit("abc12345", models.ProgressEvent{Step: "Health Check"})
	hub.Emit("zzz99999", models.ProgressEvent{Step: "Image Build"})

	waitFor(t, func() bool { return all.received() == 2 })
}

func TestHubDropsFailingSubscribers(t *testing.T) {
	hub := NewHub()
	broken := &recordingSubscriber{sendErr: errors.New("gone")}
	healthy := &recordingSubscriber{}
	hub.Register("abc12345", broken)
	hub.Register("abc12345", healthy)

	hub.Emit("abc12345", models.ProgressEvent{Step: "Validation"})
	waitFor(t, func() bool { return healthy.received() == 1 })

	broken.mu.Lock()
	closed := broken.closed
	broken.mu.Unlock()
	assert.True(t, closed, "a failing subscriber is closed and removed")

	hub.Emit("abc12345", models.ProgressEvent{Step: "Image Build"})
	waitFor(t, func() bool { return healthy.received() == 2 })
	assert.Equal(t, 0, broken.received())
}
