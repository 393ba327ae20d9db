package daemon

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/relay"
)

const (
	eventBuffer    = 16
	eventHeartbeat = 30 * time.Second
)

// handleEvents streams one hub channel as server-sent events until the client
// goes away. Each stream holds one subscriber slot on the channel. A client
// that falls more than eventBuffer messages behind gets an overflow event and
// the stream ends.
func (s *AdminServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("channel")
	channel, ok := pubsub.ParseChannel(raw)
	if !ok {
		s.errorAdapter.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "unknown channel").
			WithContext("channel", raw).
			Build())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	msgs, err := s.daemon.hub.Listen(ctx, channel, eventBuffer)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	flush := func() bool {
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	_, _ = bw.WriteString(": connected\n\n")
	if !flush() {
		return
	}

	hb := s.daemon.clock.NewTicker(eventHeartbeat)
	defer hb.Stop()
	logger := s.logger.With(logfields.Channel(string(channel)))

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() == nil {
					logger.Warn("Event stream dropped", logfields.Error(pubsub.ErrListenerOverflow))
					_, _ = bw.WriteString("event: overflow\ndata: {}\n\n")
					flush()
				}
				return
			}
			data, err := json.Marshal(s.eventPayload(msg))
			if err != nil {
				logger.Debug("Dropping unencodable event", logfields.Error(err))
				continue
			}
			_, _ = bw.WriteString("event: " + string(msg.Channel) + "\ndata: ")
			_, _ = bw.Write(data)
			_, _ = bw.WriteString("\n\n")
			if !flush() {
				return
			}
		case <-hb.Chan():
			_, _ = bw.WriteString(": ping\n\n")
			if !flush() {
				logger.Debug("Event stream closed", slog.String("reason", "ping failed"))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *AdminServer) eventPayload(msg pubsub.Message) any {
	if st, ok := msg.Payload.(relay.ConnectionStatus); ok {
		return st.View(s.daemon.clock.Now())
	}
	return msg.Payload
}
