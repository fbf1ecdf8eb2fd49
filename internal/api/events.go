package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/middleware"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// EventsHandler streams a project's appointment events to staff dashboards
// over a WebSocket.
type EventsHandler struct {
	subscriber events.Subscriber
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewEventsHandler builds the handler. checkOrigin decides which browser
// origins may open the socket; nil accepts only same-origin requests.
func NewEventsHandler(subscriber events.Subscriber, checkOrigin func(*http.Request) bool, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Stream handles GET /api/events/ws
//
// The subscription is opened before the upgrade so a Redis failure can
// still be reported as a normal HTTP error.
func (h *EventsHandler) Stream(c *gin.Context) {
	projectID := middleware.GetProjectID(c)

	sub, err := h.subscriber.Subscribe(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, h.logger, err, "failed to subscribe to events")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(zap.String("project_id", projectID.String()))
	log.Debug("event stream opened")

	// The read loop only handles control frames; it ends when the client
	// goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
			log.Debug("event stream read deadline failed", zap.Error(err))
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Debug("event stream closed by client")
			return

		case msg, ok := <-sub.Messages():
			if !ok {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "event source closed")
				if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteWait)); err != nil {
					log.Debug("event stream close frame failed", zap.Error(err))
				}
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				log.Debug("event stream write deadline failed", zap.Error(err))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("event stream write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				log.Debug("event stream ping failed", zap.Error(err))
				return
			}
		}
	}
}
