package dhanhq

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

const (
	feedURL = "wss://api-feed.dhan.co"

	// Feed request codes.
	reqSubscribeQuote = 15
	reqDisconnect     = 12

	// Binary response codes.
	respTicker     = 2
	respQuote      = 4
	respDisconnect = 50

	pingInterval     = 10 * time.Second
	readDeadline     = 40 * time.Second
	maxReconnectWait = 30 * time.Second
)

// Instrument identifies one feed subscription.
type Instrument struct {
	Segment    string `json:"ExchangeSegment"`
	SecurityID string `json:"SecurityId"`
}

// segment byte codes used in the binary feed header.
var segmentCodes = map[byte]string{
	0: model.SegmentIndex,
	2: model.SegmentFNO,
	8: model.SegmentBSE,
}

// Feed is the streaming market-data connection. It reconnects with
// exponential backoff and replays all subscriptions after each reconnect.
// Ticks are delivered to the TickHandler on the read goroutine.
type Feed struct {
	clientID    string
	accessToken string
	onTick      func(model.Tick)
	log         *slog.Logger

	// OnReconnect, when set before Run, is called once per reconnect
	// attempt.
	OnReconnect func()

	mu   sync.Mutex
	subs map[string]Instrument // key "segment:security_id"
	conn *websocket.Conn
}

// NewFeed creates a feed. onTick receives every parsed tick.
func NewFeed(clientID, accessToken string, onTick func(model.Tick)) *Feed {
	return &Feed{
		clientID:    clientID,
		accessToken: accessToken,
		onTick:      onTick,
		log:         slog.With("component", "dhan_feed"),
		subs:        make(map[string]Instrument),
	}
}

// Subscribe registers instruments and, when connected, sends the
// subscription frame immediately. Safe to call before Run.
func (f *Feed) Subscribe(instruments ...Instrument) error {
	f.mu.Lock()
	fresh := make([]Instrument, 0, len(instruments))
	for _, in := range instruments {
		key := in.Segment + ":" + in.SecurityID
		if _, ok := f.subs[key]; ok {
			continue
		}
		f.subs[key] = in
		fresh = append(fresh, in)
	}
	conn := f.conn
	f.mu.Unlock()

	if conn == nil || len(fresh) == 0 {
		return nil
	}
	return f.sendSubscribe(conn, fresh)
}

// Run connects and pumps ticks until ctx is cancelled. Disconnects are
// retried with exponential backoff (1s doubling, capped at 30s).
func (f *Feed) Run(ctx context.Context) error {
	wait := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("feed disconnected, reconnecting", "err", err, "wait", wait)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
}

// session runs one connect → subscribe → read loop and returns on any error.
func (f *Feed) session(ctx context.Context) error {
	u := feedURL + "?" + url.Values{
		"version":  {"2"},
		"token":    {f.accessToken},
		"clientId": {f.clientID},
		"authType": {"2"},
	}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	f.mu.Lock()
	f.conn = conn
	all := make([]Instrument, 0, len(f.subs))
	for _, in := range f.subs {
		all = append(all, in)
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
	}()

	if len(all) > 0 {
		if err := f.sendSubscribe(conn, all); err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}
	f.log.Info("feed connected", "subscriptions", len(all))

	// Keepalive pings; the feed drops silent connections.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-t.C:
				f.mu.Lock()
				c := f.conn
				f.mu.Unlock()
				if c == nil {
					return
				}
				_ = c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		f.dispatch(data)
	}
}

// sendSubscribe writes quote-mode subscription frames, batching 100
// instruments per frame as the feed requires.
func (f *Feed) sendSubscribe(conn *websocket.Conn, instruments []Instrument) error {
	const batch = 100
	for start := 0; start < len(instruments); start += batch {
		end := start + batch
		if end > len(instruments) {
			end = len(instruments)
		}
		frame := map[string]any{
			"RequestCode":     reqSubscribeQuote,
			"InstrumentCount": end - start,
			"InstrumentList":  instruments[start:end],
		}
		if err := conn.WriteJSON(frame); err != nil {
			return err
		}
	}
	return nil
}

// dispatch parses one binary frame. Frames may carry multiple packets
// back to back; each starts with an 8-byte header:
//
//	byte 0      response code
//	bytes 1-2   packet length, little endian, header included
//	byte 3      exchange segment code
//	bytes 4-7   security id, little endian int32
func (f *Feed) dispatch(data []byte) {
	for len(data) >= 8 {
		code := data[0]
		length := int(binary.LittleEndian.Uint16(data[1:3]))
		if length < 8 || length > len(data) {
			f.log.Warn("malformed feed packet", "code", code, "length", length, "have", len(data))
			return
		}
		packet := data[:length]
		data = data[length:]

		switch code {
		case respTicker:
			f.parseTicker(packet)
		case respQuote:
			f.parseQuote(packet)
		case respDisconnect:
			f.log.Warn("feed sent disconnect packet")
		}
	}
}

func packetHeader(p []byte) (segment, securityID string, ok bool) {
	seg, known := segmentCodes[p[3]]
	if !known {
		return "", "", false
	}
	return seg, fmt.Sprintf("%d", int32(binary.LittleEndian.Uint32(p[4:8]))), true
}

// parseTicker handles the minimal packet: LTP float32 + LTT int32.
func (f *Feed) parseTicker(p []byte) {
	if len(p) < 16 {
		return
	}
	seg, sid, ok := packetHeader(p)
	if !ok {
		return
	}
	ltp := math.Float32frombits(binary.LittleEndian.Uint32(p[8:12]))
	ltt := int64(binary.LittleEndian.Uint32(p[12:16]))
	f.emit(model.Tick{
		Segment:    seg,
		SecurityID: sid,
		LTP:        paise(ltp),
		TS:         feedTime(ltt),
	})
}

// parseQuote handles the quote packet, which adds volume and day OHLC.
func (f *Feed) parseQuote(p []byte) {
	if len(p) < 50 {
		return
	}
	seg, sid, ok := packetHeader(p)
	if !ok {
		return
	}
	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(p[off : off+4]))
	}
	ltp := f32(8)
	ltt := int64(binary.LittleEndian.Uint32(p[14:18]))
	volume := int64(binary.LittleEndian.Uint32(p[22:26]))
	f.emit(model.Tick{
		Segment:    seg,
		SecurityID: sid,
		LTP:        paise(ltp),
		Open:       paise(f32(34)),
		Close:      paise(f32(38)),
		High:       paise(f32(42)),
		Low:        paise(f32(46)),
		Volume:     volume,
		TS:         feedTime(ltt),
	})
}

func (f *Feed) emit(t model.Tick) {
	if t.LTP <= 0 || f.onTick == nil {
		return
	}
	f.onTick(t)
}

func paise(rupees float32) int64 {
	return int64(math.Round(float64(rupees) * 100))
}

// feedTime converts the feed's epoch seconds, tolerating a zero field by
// substituting receive time.
func feedTime(epoch int64) time.Time {
	if epoch <= 0 {
		return time.Now()
	}
	return time.Unix(epoch, 0)
}
