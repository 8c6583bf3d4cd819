package handlers

import (
	"bufio"
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"packetwatch/internal/realtime"
)

// ChannelAuth is the channel-subscribe handshake. A session may only
// subscribe to its own private channel; anything else fails closed with
// 403, admin or not. The body is form-encoded (socket_id, channel_name)
// as pusher-protocol clients send it.
func ChannelAuth(authorizer *realtime.ChannelAuthorizer, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		socketID := string(ctx.PostArgs().Peek("socket_id"))
		channel := string(ctx.PostArgs().Peek("channel_name"))
		if socketID == "" || channel == "" {
			writeMessage(ctx, fasthttp.StatusBadRequest, "socket_id and channel_name are required")
			return
		}

		channelUser, valid := realtime.ChannelUserID(channel)
		if !valid || channelUser != id.UserID {
			logger.Info("channel subscribe denied",
				zap.Uint("user_id", id.UserID),
				zap.String("channel", channel),
			)
			writeMessage(ctx, fasthttp.StatusForbidden, "forbidden")
			return
		}

		writeJSON(ctx, fasthttp.StatusOK, map[string]string{
			"auth": authorizer.Authorize(socketID, channel),
		})
	}
}

// streamHeartbeat keeps idle SSE connections from being reaped by
// intermediaries.
const streamHeartbeat = 25 * time.Second

// Stream delivers the session user's channel over server-sent events.
// Each message carries the event's stable id so the client can dedup
// against query-path backfill. Delivery is an at-most-once attempt: a
// client not connected at publish time reconciles via GET /events.
func Stream(broker realtime.Broker, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := MustIdentity(ctx)
		if !ok {
			return
		}

		channel := realtime.ChannelName(id.UserID)
		msgs, cancel, err := broker.Subscribe(context.Background(), channel)
		if err != nil {
			logger.Error("subscribe failed", zap.Uint("user_id", id.UserID), zap.Error(err))
			writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
			return
		}

		logger.Info("client subscribed", zap.Uint("user_id", id.UserID), zap.String("channel", channel))

		ctx.SetContentType("text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.Response.Header.Set("Connection", "keep-alive")

		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()

			heartbeat := time.NewTicker(streamHeartbeat)
			defer heartbeat.Stop()

			for {
				select {
				case payload, open := <-msgs:
					if !open {
						return
					}
					if _, err := w.WriteString("event: packet-event\ndata: "); err != nil {
						return
					}
					if _, err := w.Write(payload); err != nil {
						return
					}
					if _, err := w.WriteString("\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				case <-heartbeat.C:
					// SSE comment line; ignored by clients.
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		})
	}
}
