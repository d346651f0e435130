package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/lexivisual/internal/adapt"
)

const streamWriteTimeout = 10 * time.Second

// Stream message types.
const (
	streamStage  = "stage"
	streamResult = "result"
	streamError  = "error"
)

type streamMessage struct {
	Type    string        `json:"type"`
	Stage   adapt.Stage   `json:"stage,omitempty"`
	Content string        `json:"content,omitempty"`
	Result  *adapt.Result `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
	Status  int           `json:"status,omitempty"`
}

// handleConvertStream upgrades to a WebSocket, reads one {"text": ...}
// message, and reports each pipeline stage as it completes before
// sending the final result.
func (s *Server) handleConvertStream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// The stream outlives the server's read and write deadlines; the
	// request timeout bounds it instead.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "request_id", RequestID(r.Context()), "error", err)
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(s.maxBodyBytes)

	ctx := r.Context()
	// Writes get their own bound so a timeout error can still be delivered.
	send := func(msg streamMessage) error {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), streamWriteTimeout)
		defer cancel()
		return wsjson.Write(wctx, c, msg)
	}
	fail := func(err error, providerMsg string) {
		status, msg := errorResponse(err, http.StatusInternalServerError, providerMsg)
		if werr := send(streamMessage{Type: streamError, Error: msg, Status: status}); werr != nil {
			slog.Warn("stream write failed", "request_id", RequestID(ctx), "error", werr)
		}
		s.record(r, start, err, outcomeFlags{})
		c.Close(websocket.StatusNormalClosure, "")
	}

	_, data, err := c.Read(ctx)
	if err != nil {
		slog.Warn("stream read failed", "request_id", RequestID(ctx), "error", err)
		s.record(r, start, err, outcomeFlags{})
		return
	}

	var req textRequest
	if err := decodeJSON(data, textSchema, &req); err != nil {
		fail(err, msgInternal)
		return
	}

	// No further client messages are expected. CloseRead's context ends
	// when the peer closes or drops the connection, which stops the
	// pipeline. It is not tied to the request deadline, so a timeout
	// error can still be written.
	gone := c.CloseRead(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(gone, cancel)
	defer stop()

	observe := func(stage adapt.Stage, content string) {
		if err := send(streamMessage{Type: streamStage, Stage: stage, Content: content}); err != nil {
			slog.Warn("stream write failed",
				"request_id", RequestID(ctx),
				"stage", stage,
				"error", err,
			)
		}
	}

	res, err := s.adapter.AdaptObserved(ctx, req.Text, observe)
	if err != nil {
		fail(err, convertFailureMessage(err))
		return
	}

	if err := send(streamMessage{Type: streamResult, Result: &res}); err != nil {
		slog.Warn("stream write failed", "request_id", RequestID(ctx), "error", err)
	}
	s.record(r, start, nil, outcomeFlags{
		usedFallback:   res.UsedFallback.Any(),
		imageGenerated: res.GeneratedImage != nil,
	})
	c.Close(websocket.StatusNormalClosure, "")
}
