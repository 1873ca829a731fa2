package progress

import (
	"testing"
	"time"

	"github.com/lettermill/lettermill/internal/merge/domain"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer a.Close()
	defer b.Close()

	event := domain.ProgressEvent{Email: "alice@example.com", Success: true, SentCount: 1, TotalCount: 2}
	hub.Publish(event)

	require.Equal(t, event, <-a.Events())
	require.Equal(t, event, <-b.Events())
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	hub := NewHub(8)
	sub := hub.Subscribe()
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		hub.Publish(domain.ProgressEvent{SentCount: i, TotalCount: 5})
	}

	for i := 1; i <= 5; i++ {
		got := <-sub.Events()
		require.Equal(t, i, got.SentCount)
	}
}

func TestClosedSubscriberIsPruned(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer b.Close()

	a.Close()
	hub.Publish(domain.ProgressEvent{Email: "x@example.com"})

	require.Equal(t, 1, hub.Count())
	require.Equal(t, "x@example.com", (<-b.Events()).Email)
}

func TestStalledSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(1)
	stalled := hub.Subscribe()
	healthy := hub.Subscribe()
	defer healthy.Close()

	// The first publish fills the stalled subscriber's one-slot buffer.
	// The second finds it full, drops the subscriber, and still reaches
	// the healthy one.
	hub.Publish(domain.ProgressEvent{SentCount: 1})
	require.Equal(t, 1, (<-healthy.Events()).SentCount)

	hub.Publish(domain.ProgressEvent{SentCount: 2})
	require.Equal(t, 2, (<-healthy.Events()).SentCount)

	select {
	case <-stalled.Done():
	case <-time.After(time.Second):
		t.Fatal("stalled subscriber was not pruned")
	}
	require.Equal(t, 1, hub.Count())
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()

	sub.Close()
	sub.Close()
	require.Equal(t, 0, hub.Count())
}

func TestConcurrentSubscribePublish(t *testing.T) {
	hub := NewHub(64)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				hub.Publish(domain.ProgressEvent{Email: "load@example.com"})
			}
		}
	}()

	for i := 0; i < 50; i++ {
		sub := hub.Subscribe()
		sub.Close()
	}
	close(stop)
}
