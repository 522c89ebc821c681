package domain_test

import (
	"context"
	"testing"
	"time"

	domain "stronghold/server/domain"
)

func TestSimplePubSub_DeliversToSubscribers(t *testing.T) {
	pubsub := domain.NewSimplePubSub()
	topic := domain.ActorTopic(1)

	ch1 := pubsub.Subscribe(topic)
	ch2 := pubsub.Subscribe(topic)
	defer pubsub.Unsubscribe(topic, ch2)

	pubsub.Publish(context.Background(), topic, domain.Message{ActorID: 1, Data: []byte("hello")})

	for i, ch := range []chan domain.Message{ch1, ch2} {
		select {
		case msg := <-ch:
			if string(msg.Data) != "hello" {
				t.Fatalf("subscriber %d got %q, want hello", i+1, msg.Data)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("subscriber %d never received the message", i+1)
		}
	}
	pubsub.Unsubscribe(topic, ch1)
}

func TestSimplePubSub_TopicsAreIsolated(t *testing.T) {
	pubsub := domain.NewSimplePubSub()

	ch := pubsub.Subscribe(domain.ActorTopic(1))
	defer pubsub.Unsubscribe(domain.ActorTopic(1), ch)

	pubsub.Publish(context.Background(), domain.ActorTopic(2), domain.Message{ActorID: 2, Data: []byte("other")})

	select {
	case msg := <-ch:
		t.Fatalf("received message for another topic: %q", msg.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSimplePubSub_UnsubscribeClosesChannel(t *testing.T) {
	pubsub := domain.NewSimplePubSub()
	topic := domain.ActorTopic(1)

	ch := pubsub.Subscribe(topic)
	pubsub.Unsubscribe(topic, ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed without pending messages")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("channel was not closed")
	}

	// 購読者がいなくなった後のPublishはパニックせずに捨てられる
	pubsub.Publish(context.Background(), topic, domain.Message{ActorID: 1, Data: []byte("late")})
}
