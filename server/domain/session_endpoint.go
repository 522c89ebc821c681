package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrBackpressure は書き込みチャネルが満杯の場合に返されるエラーです。
	ErrBackpressure = errors.New("write channel is full, apply backpressure")
	// ErrInitializationFailed はセッションエンドポイントの初期化に失敗した場合に返されるエラーです。
	ErrInitializationFailed = errors.New("failed to initialize session endpoint")
)

const defaultIdleTimeout = 5 * time.Minute

// SessionEndpoint は1アクター接続のコマンド受信・応答送信・プッシュ転送を担当します。
// コマンドはreadLoop上で逐次処理されるため、同一アクターのコマンドは到着順に適用されます。
type SessionEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	session    *Session
	connection *Connection
	pubsub     PubSub
	dispatcher Dispatcher
	lifecycle  Lifecycle

	ctrlCh  chan endpointEvent // 制御用チャネル
	writeCh chan []byte        // 書き込み用チャネル

	idleTimeout time.Duration

	// lifecycle
	closed atomic.Bool
}

func NewSessionEndpoint(session *Session, connection *Connection, pubsub PubSub, dispatcher Dispatcher, lifecycle Lifecycle) (*SessionEndpoint, error) {
	if session == nil || connection == nil || pubsub == nil || dispatcher == nil || lifecycle == nil {
		return nil, ErrInitializationFailed
	}
	ctx, cancel := context.WithCancel(context.Background())
	se := &SessionEndpoint{
		ctx:         ctx,
		cancel:      cancel,
		session:     session,
		connection:  connection,
		pubsub:      pubsub,
		dispatcher:  dispatcher,
		lifecycle:   lifecycle,
		ctrlCh:      make(chan endpointEvent, 16),
		writeCh:     make(chan []byte, 1024),
		idleTimeout: defaultIdleTimeout,
	}
	return se, nil
}

func (se *SessionEndpoint) Run() error {
	// 自分宛のプッシュ通知を購読
	actorTopic := ActorTopic(se.session.ActorID())
	msgCh := se.pubsub.Subscribe(actorTopic)
	defer se.pubsub.Unsubscribe(actorTopic, msgCh)
	defer se.close()

	// プレイヤーデータをロードしてfull syncを送信
	syncPayload, err := se.lifecycle.Connect(se.ctx, se.session.ActorID())
	if err != nil {
		return err
	}
	syncMsg, err := EncodeServerMessage(MsgTypeSync, syncPayload)
	if err != nil {
		return err
	}
	if err := se.Send(syncMsg); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(se.ctx)
	eg.Go(func() error {
		se.ownerLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.readLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.writeLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		se.subscribeLoop(ctx, msgCh)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	return nil
}

func (se *SessionEndpoint) Send(data []byte) error {
	select {
	case se.writeCh <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (se *SessionEndpoint) Close(ctx context.Context) {
	se.sendCtrlEvent(ctx, endpointEvent{kind: evClose, err: nil})
}

func (se *SessionEndpoint) ForceClose() {
	se.close()
}

// ownerLoop は論理セッションの状態を監視し、必要に応じて接続の管理を行います。
func (se *SessionEndpoint) ownerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-se.ctrlCh:
			se.handleControlEvent(ctx, ev)
		case <-ticker.C:
			ok, reason := se.session.IsIdle(se.idleTimeout)
			if ok {
				se.handleControlEvent(ctx, endpointEvent{
					kind: evClose,
					err:  errors.New(reason.String()),
				})
			}
		}
	}
}

func (se *SessionEndpoint) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			data, err := se.connection.Read(ctx)
			if err != nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evReadError, err: err})
				return
			}
			se.session.TouchRead()
			se.handleData(ctx, data)
		}
	}
}

func (se *SessionEndpoint) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-se.writeCh:
			err := se.connection.Write(ctx, data)
			if err != nil {
				se.sendCtrlEvent(ctx, endpointEvent{kind: evWriteError, err: err})
				continue
			}
			se.session.TouchWrite()
		}
	}
}

// subscribeLoop はpubsubからのプッシュ通知をwriteChに転送します。
func (se *SessionEndpoint) subscribeLoop(ctx context.Context, msgCh <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case se.writeCh <- msg.Data:
				// 送信成功
			default:
				slog.WarnContext(ctx, "subscribeLoop: writeCh full, push dropped", "actorID", se.session.ActorID())
			}
		}
	}
}

// handleData は受信した1コマンドをパースしゲートウェイへ配送します。
// パース不能な入力は不正入力とみなし、応答なしで破棄します。
func (se *SessionEndpoint) handleData(ctx context.Context, data []byte) {
	cmd, err := ParseCommand(data)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse command, dropped", "actorID", se.session.ActorID(), "err", err)
		return
	}

	resp, respond := se.dispatcher.Dispatch(ctx, se.session.ActorID(), cmd)
	if !respond {
		return
	}
	encoded, err := EncodeResponse(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "actorID", se.session.ActorID(), "err", err)
		return
	}
	if err := se.Send(encoded); err != nil {
		slog.WarnContext(ctx, "response dropped", "actorID", se.session.ActorID(), "err", err)
	}
}

func (se *SessionEndpoint) close() {
	if !se.closed.CompareAndSwap(false, true) {
		return
	}
	// 切断時の永続化・リソース解放はエンドポイントのctxと独立に行う
	se.lifecycle.Disconnect(context.WithoutCancel(se.ctx), se.session.ActorID())
	se.cancel()
	se.session.Close()
	se.connection.Close()
}

// handleControlEvent は制御チャネルからのイベントを処理し論理セッションの状態を更新する唯一の関数です。
func (se *SessionEndpoint) handleControlEvent(ctx context.Context, ev endpointEvent) {
	switch ev.kind {
	case evClose:
		se.close()
	case evReadError:
		// 読み込みエラーは切断として扱う
		se.close()
	case evWriteError:
		return
	default:
		slog.WarnContext(ctx, "unknown endpoint event kind", "kind", ev.kind)
	}
}

func (se *SessionEndpoint) sendCtrlEvent(ctx context.Context, ev endpointEvent) {
	select {
	case se.ctrlCh <- ev:
	case <-ctx.Done():
	}
}
