package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type Topic string

// ActorTopic はアクター宛プッシュ通知用のトピック名を返します。
func ActorTopic(actorID ActorID) Topic {
	return Topic(fmt.Sprintf("actor:%d", actorID))
}

// Message はPubSub経由で配送される1メッセージです。
type Message struct {
	ActorID ActorID
	Data    []byte
}

// PubSub はサービス層からセッションエンドポイントへのメッセージ配送を担当します。
type PubSub interface {
	Publish(ctx context.Context, topic Topic, msg Message)
	Subscribe(topic Topic) chan Message
	Unsubscribe(topic Topic, ch chan Message)
}

const subscriberBufferSize = 256

// SimplePubSub はプロセス内チャネルベースのPubSub実装です。
type SimplePubSub struct {
	mu     sync.RWMutex
	topics map[Topic][]chan Message
}

func NewSimplePubSub() *SimplePubSub {
	return &SimplePubSub{
		topics: make(map[Topic][]chan Message),
	}
}

// Publish はトピックの全購読者にメッセージを配送します。
// 購読者のバッファが満杯の場合、そのメッセージはドロップされます。
func (p *SimplePubSub) Publish(ctx context.Context, topic Topic, msg Message) {
	p.mu.RLock()
	subscribers := p.topics[topic]
	p.mu.RUnlock()

	for _, ch := range subscribers {
		select {
		case ch <- msg:
		default:
			slog.WarnContext(ctx, "pubsub: subscriber buffer full, message dropped", "topic", topic)
		}
	}
}

func (p *SimplePubSub) Subscribe(topic Topic) chan Message {
	ch := make(chan Message, subscriberBufferSize)
	p.mu.Lock()
	p.topics[topic] = append(p.topics[topic], ch)
	p.mu.Unlock()
	return ch
}

func (p *SimplePubSub) Unsubscribe(topic Topic, ch chan Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subscribers := p.topics[topic]
	for i, sub := range subscribers {
		if sub == ch {
			p.topics[topic] = append(subscribers[:i], subscribers[i+1:]...)
			break
		}
	}
	if len(p.topics[topic]) == 0 {
		delete(p.topics, topic)
	}
	close(ch)
}

var _ PubSub = (*SimplePubSub)(nil)
