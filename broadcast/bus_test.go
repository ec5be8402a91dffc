package broadcast

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllSubscribersOfKind(t *testing.T) {
	b := New()
	a := b.Subscribe(Chat)
	c := b.Subscribe(Chat)
	other := b.Subscribe(PlayerMoved)

	b.Publish(Event{Kind: Chat, ChatText: "hi"})

	select {
	case ev := <-a.C():
		assert.Equal(t, "hi", ev.ChatText)
	default:
		t.Fatal("subscriber a did not receive event")
	}
	select {
	case ev := <-c.C():
		assert.Equal(t, "hi", ev.ChatText)
	default:
		t.Fatal("subscriber c did not receive event")
	}
	select {
	case <-other.C():
		t.Fatal("subscriber of a different kind must not receive the event")
	default:
	}
}

func TestCloseUnregistersSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe(Chat)
	sub.Close()
	b.Publish(Event{Kind: Chat})
	select {
	case <-sub.C():
		t.Fatal("closed subscriber must not receive further events")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestPublishDropsOnFullChannelInsteadOfBlocking(t *testing.T) {
	b := New()
	var drops int
	b.OnDrop = func(k Kind, ev Event) { drops++ }

	sub := b.Subscribe(TimeTick)
	for i := 0; i < subscriberBufSize+5; i++ {
		b.Publish(Event{Kind: TimeTick, WorldTime: float64(i)})
	}

	assert.Equal(t, 5, drops)
	assert.Len(t, sub.C(), subscriberBufSize)
}

func TestNoSelfBroadcastIsCallerResponsibility(t *testing.T) {
	// The bus itself delivers to every subscriber; filtering out the
	// originator's own session is the subscriber's job (see
	// session/handlers), modeled here directly.
	b := New()
	me := uuid.New()
	other := uuid.New()
	sub := b.Subscribe(PlayerMoved)

	b.Publish(Event{Kind: PlayerMoved, OriginatorID: me, PlayerID: me})
	require.Len(t, sub.C(), 1)
	ev := <-sub.C()
	if ev.OriginatorID == me {
		t.Log("caller would skip delivering this to the originator's own session")
	}

	b.Publish(Event{Kind: PlayerMoved, OriginatorID: other, PlayerID: other})
	require.Len(t, sub.C(), 1)
}
