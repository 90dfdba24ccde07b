package source

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"main/internal/domain/entity/tape"
)

const (
	wsMinBackoff = 500 * time.Millisecond
	wsMaxBackoff = 5 * time.Second
)

// WebSocket streams trade JSON from a live feed endpoint, reconnecting
// with exponential backoff when the connection drops.
type WebSocket struct {
	url     string
	handler Handler
	log     *logrus.Entry
}

// NewWebSocket builds a live websocket source.
func NewWebSocket(url string, handler Handler, logger *logrus.Logger) *WebSocket {
	return &WebSocket{
		url:     url,
		handler: handler,
		log:     logger.WithField("component", "ws_source"),
	}
}

// Run dials and consumes until the context is cancelled.
func (w *WebSocket) Run(ctx context.Context) error {
	backoff := wsMinBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.consume(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		w.log.WithError(err).Warnf("feed connection lost, retrying in %s", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxBackoff {
			backoff = wsMaxBackoff
		}
	}
}

func (w *WebSocket) consume(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, w.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutdown")
	w.log.WithField("url", w.url).Info("feed connected")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		t, err := tape.Unmarshal(data)
		if err != nil {
			w.log.WithError(err).Warn("skip undecodable trade frame")
			continue
		}
		w.handler(t)
	}
}
