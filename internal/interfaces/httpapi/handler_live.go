package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/fantasy-auction/internal/domain/auction"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
	"github.com/sourcegraph/conc"
	"github.com/valyala/bytebufferpool"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveReadLimit  = 512
)

// LiveAuctions upgrades to a websocket, sends the active auctions as one
// snapshot frame and then streams every registry event. The subscription
// is opened before the snapshot is read, so a client may see an event
// already reflected in the snapshot but never misses one.
func (h *Handler) LiveAuctions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LiveAuctions")
	defer span.End()

	sub := h.registry.Subscribe()
	defer sub.Close()

	snapshot, err := h.registry.ListActive(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.DebugContext(ctx, "live upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	stream := &liveStream{conn: conn, logger: h.logger}
	if err := stream.send(liveSnapshotFrame{Type: "snapshot", Auctions: usecase.NewAuctionViews(snapshot)}); err != nil {
		h.logger.DebugContext(ctx, "live snapshot write failed", "error", err)
		return
	}
	h.logger.DebugContext(ctx, "live subscriber attached", "remote_addr", r.RemoteAddr, "auctions", len(snapshot))

	closed := make(chan struct{})
	var wg conc.WaitGroup
	wg.Go(func() {
		defer close(closed)
		stream.discardReads()
	})
	wg.Go(func() {
		stream.forward(sub.C(), closed)
	})
	wg.Wait()

	h.logger.DebugContext(ctx, "live subscriber detached", "remote_addr", r.RemoteAddr)
}

type liveStream struct {
	conn   *websocket.Conn
	logger *logging.Logger
}

// discardReads keeps control frames flowing and returns once the peer goes
// away.
func (s *liveStream) discardReads() {
	s.conn.SetReadLimit(liveReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *liveStream) forward(events <-chan auction.Event, closed <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	// unblocks discardReads when the write side fails first.
	defer s.conn.Close()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.send(usecase.NewAuctionEventMessage(ev)); err != nil {
				s.logger.Debug("live event write failed", "auction_id", ev.AuctionID, "sequence", ev.Sequence, "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *liveStream) send(frame any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(frame); err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, buf.B)
}

func (h *Handler) checkLiveOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if h.origins.allows(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
