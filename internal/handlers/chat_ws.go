package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/lovetree/lovetree/internal/chat"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/metrics"
	"github.com/lovetree/lovetree/internal/middleware"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	chatSubprotocol = "chat"
	pingInterval    = 30 * time.Second
	maxChatFrame    = 8 << 10
)

type chatFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ChatWSHandler upgrades to a websocket that streams the connection's chat.
// Browsers cannot set headers on the upgrade, so the session may also come
// from the token query parameter.
func (s *Server) ChatWSHandler(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live chat is disabled")
		return
	}
	remoteAddr := r.RemoteAddr
	connID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{chatSubprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")
	c.SetReadLimit(maxChatFrame)

	if c.Subprotocol() != chatSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the chat subprotocol")
		return
	}

	token := middleware.TokenFromRequest(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := s.Sessions.Verify(token)
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid or expired session")
		return
	}

	conn, err := s.Store.GetConnection(r.Context(), connID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !conn.HasMember(userID)) {
		c.Close(InvalidConnectionError, "connection not found or access denied")
		return
	}
	if err != nil {
		s.Logger.WithError(err).WithField("connection", connID).Error("failed to load connection for chat socket")
		c.Close(websocket.StatusInternalError, "failed to load connection")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := chat.NewSubscriber(userID, conn.ID)
	s.Hub.Join(ctx, sub)
	metrics.SocketOpened()
	middleware.LogWebSocketConnect(s.Logger, remoteAddr, userID, conn.ID)
	s.Logger.WithFields(logrus.Fields{"connection": conn.ID, "sockets": s.Hub.Subscribers(conn.ID)}).Debug("chat room size")

	go s.chatWritePump(ctx, c, sub)
	readErr := s.chatReadPump(ctx, c, r, conn, sub)

	cancel()
	s.Hub.Leave(context.Background(), sub)
	metrics.SocketClosed()
	middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, userID, conn.ID, readErr)
	c.Close(websocket.StatusNormalClosure, "")
}

// chatReadPump handles client frames until the socket closes. It returns the
// error that ended the session, or nil on a normal close.
func (s *Server) chatReadPump(ctx context.Context, c *websocket.Conn, r *http.Request, conn *models.Connection, sub *chat.Subscriber) error {
	log := s.Logger.WithFields(logrus.Fields{"user": sub.UserID, "connection": conn.ID})
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Debug("ignoring non-text chat frame")
			continue
		}

		var frame chatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			sub.WriteError("invalid JSON format")
			continue
		}

		switch frame.Type {
		case "message":
			content := strings.TrimSpace(frame.Content)
			if content == "" {
				sub.WriteError("content is required")
				continue
			}
			if _, err := s.postMessage(r, conn, sub.UserID, content); err != nil {
				log.WithError(err).Error("failed to store chat message")
				sub.WriteError("failed to send message")
			}
		case "ping":
			s.Hub.Heartbeat(ctx, sub.UserID)
			sub.Send(map[string]interface{}{"type": "pong"})
		default:
			sub.WriteError("unknown frame type: " + frame.Type)
		}
	}
}

// chatWritePump drains the subscriber queue and keeps the socket and the
// user's presence alive.
func (s *Server) chatWritePump(ctx context.Context, c *websocket.Conn, sub *chat.Subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				s.Logger.WithError(err).WithField("user", sub.UserID).Warn("failed to marshal chat frame")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.WithError(err).WithField("user", sub.UserID).Debug("chat write failed")
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Logger.WithError(err).WithField("user", sub.UserID).Debug("chat ping failed")
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
			s.Hub.Heartbeat(ctx, sub.UserID)
		}
	}
}
