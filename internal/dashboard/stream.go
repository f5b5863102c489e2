package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	streamPollInterval = 2 * time.Second
	streamBacklog      = 200
)

// handleActivityStream pushes interaction-log lines to the client as
// they are appended. The log is append-only, so a poll-tail over the
// last seen line count is a faithful stream.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("failed to accept activity stream", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("failed to close activity stream", "error", closeErr)
		}
	}()

	// Reads are discarded; the stream is one-way. CloseRead also gives
	// us a context that ends when the client goes away.
	ctx := ws.CloseRead(r.Context())

	// Position is the day's total line count, so the tail keeps up no
	// matter how large the file grows. Only the initial catch-up is
	// capped at the backlog window; After restarts the count when the
	// day rolls over.
	sent := 0
	caughtUp := false
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		lines, total, err := s.log.After(sent)
		if err != nil {
			slog.Warn("failed to tail activity log", "error", err)
		} else {
			if !caughtUp && len(lines) > streamBacklog {
				lines = lines[len(lines)-streamBacklog:]
			}
			caughtUp = true
			for _, line := range lines {
				if err := s.writeLine(ctx, ws, line); err != nil {
					return
				}
			}
			sent = total
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeLine(ctx context.Context, ws *websocket.Conn, line string) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, []byte(line))
}
