package httpapi

import (
	"context"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/realtime"
	"github.com/valyala/bytebufferpool"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	maxMessageSize  = 512
)

// Subscribe upgrades to a websocket and streams change events for one
// channel. Events published before the subscription are not replayed.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "Subscribe")
	defer span.End()

	channel := subscribeChannel(r)
	if err := realtime.ValidateChannel(channel); err != nil {
		writeError(ctx, w, err)
		return
	}

	sub, err := h.hub.Subscribe(channel)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.WarnContext(ctx, "websocket upgrade failed", "channel", channel, "error", err)
		return
	}
	defer conn.Close()

	h.logger.InfoContext(ctx, "subscriber connected",
		"subscription_id", sub.ID,
		"channel", channel,
		"client_ip", clientIP(r),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.readPump(ctx, cancel, conn)

	reason := h.writePump(ctx, conn, sub)
	h.logger.InfoContext(ctx, "subscriber disconnected",
		"subscription_id", sub.ID,
		"channel", channel,
		"reason", reason,
	)
}

// readPump discards client frames and keeps the read deadline alive on pong.
// Any read error ends the subscription.
func (h *Handler) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.WarnContext(ctx, "subscriber read failed", "error", err)
			}
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription) string {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "client closed"

		case event, ok := <-sub.C():
			if !ok {
				closeCode, reason := websocket.CloseGoingAway, "server shutting down"
				if sub.Dropped() {
					closeCode, reason = websocket.CloseTryAgainLater, "subscriber too slow"
				}
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, reason), time.Now().Add(writeWait))
				return reason
			}

			if err := writeFrame(conn, event); err != nil {
				h.logger.WarnContext(ctx, "subscriber write failed", "subscription_id", sub.ID, "error", err)
				return "write failed"
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return "ping failed"
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, event match.ChangeEvent) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(toChangeFrame(event)); err != nil {
		return err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, buf.B)
}
