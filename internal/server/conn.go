package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/picker"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

// rateLimitedMessage is shown when a panel sends prompts too quickly.
const rateLimitedMessage = "Too many requests. Please wait a moment and try again."

// conn is one panel connection. Its context ends when the socket closes,
// which cancels any picking session or prompt it started.
type conn struct {
	srv     *Server
	ws      *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
	limiter *rate.Limiter
	busy    atomic.Bool
	wg      sync.WaitGroup

	writeMu sync.Mutex

	mu       sync.Mutex
	stopPick context.CancelFunc
}

func newConn(srv *Server, ws *websocket.Conn, parent context.Context) *conn {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &conn{
		srv:     srv,
		ws:      ws,
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.With("conn", id),
		limiter: rate.NewLimiter(srv.config.PromptRate, srv.config.PromptBurst),
	}
}

func (c *conn) serve() {
	c.log.Info("panel connected", "remote", c.ws.RemoteAddr().String())
	stop := context.AfterFunc(c.ctx, func() { _ = c.ws.Close() })
	defer func() {
		c.cancel()
		c.wg.Wait()
		stop()
		_ = c.ws.Close()
		c.log.Info("panel disconnected")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.wg.Add(1)
	go c.keepalive()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(Message{Action: ActionError, Error: "Invalid message."})
			continue
		}
		c.handle(msg)
	}
}

func (c *conn) keepalive() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("ping failed", "error", err)
				c.cancel()
				return
			}
		}
	}
}

func (c *conn) handle(msg Message) {
	c.log.Debug("message received", "action", msg.Action)

	switch msg.Action {
	case ActionPing:
		c.send(Message{Action: ActionPong})
	case ActionStartPicking:
		c.startPicking()
	case ActionStopPicking:
		c.stopPicking()
	case ActionReleaseSelection:
		c.srv.picker.Release(c.ctx)
	case ActionExecutePrompt:
		c.executePrompt(msg)
	case ActionGetSettings:
		s, err := c.loadSettings()
		if err != nil {
			c.sendError(err)
			return
		}
		c.sendSettings(s)
	case ActionSaveSettings:
		c.saveSettings(msg.Settings)
	default:
		c.send(Message{Action: ActionError, Error: "Unknown action: " + msg.Action})
	}
}

func (c *conn) startPicking() {
	c.mu.Lock()
	if c.stopPick != nil {
		c.mu.Unlock()
		c.sendError(picker.ErrAlreadyPicking)
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.stopPick = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		sel, err := c.srv.picker.Pick(ctx)

		c.mu.Lock()
		c.stopPick = nil
		c.mu.Unlock()
		cancel()

		switch {
		case err == nil:
			c.log.Info("element selected", "session", sel.ID, "bytes", len(sel.HTML))
			c.send(Message{Action: ActionElementSelected, HTML: sel.HTML})
		case errors.Is(err, picker.ErrSelectionCancelled), errors.Is(err, context.Canceled):
			c.send(Message{Action: ActionPickingCancelled})
		default:
			c.sendError(err)
		}
	}()
}

func (c *conn) stopPicking() {
	c.mu.Lock()
	stop := c.stopPick
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *conn) executePrompt(msg Message) {
	if !c.busy.CompareAndSwap(false, true) {
		c.sendError(dispatch.ErrBusy)
		return
	}
	if !c.limiter.Allow() {
		c.busy.Store(false)
		c.send(Message{Action: ActionError, Error: rateLimitedMessage})
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reply := c.answer(msg)
		c.busy.Store(false)
		c.send(reply)
	}()
}

func (c *conn) answer(msg Message) Message {
	s, err := c.resolveSettings(msg.Settings)
	if err != nil {
		return errorMessage(err)
	}
	resp, err := c.srv.dispatcher.Execute(c.ctx, dispatch.Request{
		HTML:     msg.HTML,
		Query:    msg.Query,
		Settings: s,
	})
	if err != nil {
		c.log.Warn("prompt failed", "provider", s.Provider, "error", err)
		return errorMessage(err)
	}
	if resp.Provider == settings.ProviderGoogleAIMode {
		return Message{
			Action:  ActionGoogleAIResult,
			Data:    resp.Data,
			RawHTML: c.srv.policy.Sanitize(resp.RawHTML),
		}
	}
	return Message{Action: ActionResult, Data: resp.Data}
}

func (c *conn) loadSettings() (settings.Settings, error) {
	if c.srv.store == nil {
		return settings.Default(), nil
	}
	return c.srv.store.Load()
}

// resolveSettings uses the panel's settings when sent, keeping the stored
// API key when the panel echoes back the redacted form.
func (c *conn) resolveSettings(in *settings.Settings) (settings.Settings, error) {
	stored, err := c.loadSettings()
	if err != nil {
		return settings.Settings{}, err
	}
	if in == nil {
		return stored, nil
	}
	s := *in
	if strings.HasPrefix(s.APIKey, "…") {
		s.APIKey = stored.APIKey
	}
	return s, nil
}

func (c *conn) saveSettings(in *settings.Settings) {
	if in == nil {
		c.send(Message{Action: ActionError, Error: "No settings provided."})
		return
	}
	if c.srv.store == nil {
		c.send(Message{Action: ActionError, Error: "Settings cannot be saved."})
		return
	}
	s, err := c.resolveSettings(in)
	if err != nil {
		c.sendError(err)
		return
	}
	if err := c.srv.store.Save(s); err != nil {
		c.sendError(err)
		return
	}
	c.log.Info("settings saved", "provider", s.Provider, "model", s.Model)
	c.sendSettings(s.WithDefaults())
}

func (c *conn) sendSettings(s settings.Settings) {
	r := s.Redacted()
	c.send(Message{Action: ActionSettings, Settings: &r})
}

func (c *conn) sendError(err error) {
	c.send(errorMessage(err))
}

func errorMessage(err error) Message {
	return Message{Action: ActionError, Error: dispatch.UserMessage(err)}
}

func (c *conn) send(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.log.Debug("write failed", "action", msg.Action, "error", err)
	}
}
