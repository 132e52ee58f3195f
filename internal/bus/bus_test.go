package bus

import (
	"testing"
	"time"
)

func TestPublishFiltersByNamespacePrefix(t *testing.T) {
	b := New()
	msgCh, unsubMsg := b.Subscribe("message.", 4)
	defer unsubMsg()
	outboxCh, unsubOutbox := b.Subscribe("outbox.", 4)
	defer unsubOutbox()

	b.Publish(Emit(KindAudioStored, nil))

	select {
	case evt := <-msgCh:
		if evt.Kind != KindAudioStored {
			t.Errorf("kind = %q, want %q", evt.Kind, KindAudioStored)
		}
	case <-time.After(time.Second):
		t.Fatal("message subscriber did not receive the event")
	}

	select {
	case evt := <-outboxCh:
		t.Errorf("outbox subscriber received %q", evt.Kind)
	default:
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("message.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Emit(KindMessageStored, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	unsub()
	unsub() // second call is harmless

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	b.Publish(Emit(KindMessageStored, nil))
}
