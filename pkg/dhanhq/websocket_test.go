package dhanhq

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper-sub004/internal/model"
)

func collector() (*Feed, *[]model.Tick) {
	var ticks []model.Tick
	f := NewFeed("client", "token", func(t model.Tick) {
		ticks = append(ticks, t)
	})
	return f, &ticks
}

// tickerPacket builds a 16-byte ticker packet.
func tickerPacket(segCode byte, securityID int32, ltp float32, epoch uint32) []byte {
	p := make([]byte, 16)
	p[0] = respTicker
	binary.LittleEndian.PutUint16(p[1:3], 16)
	p[3] = segCode
	binary.LittleEndian.PutUint32(p[4:8], uint32(securityID))
	binary.LittleEndian.PutUint32(p[8:12], math.Float32bits(ltp))
	binary.LittleEndian.PutUint32(p[12:16], epoch)
	return p
}

// quotePacket builds a 50-byte quote packet.
func quotePacket(segCode byte, securityID int32, ltp float32, epoch, volume uint32, open, close_, high, low float32) []byte {
	p := make([]byte, 50)
	p[0] = respQuote
	binary.LittleEndian.PutUint16(p[1:3], 50)
	p[3] = segCode
	binary.LittleEndian.PutUint32(p[4:8], uint32(securityID))
	binary.LittleEndian.PutUint32(p[8:12], math.Float32bits(ltp))
	binary.LittleEndian.PutUint32(p[14:18], epoch)
	binary.LittleEndian.PutUint32(p[22:26], volume)
	binary.LittleEndian.PutUint32(p[34:38], math.Float32bits(open))
	binary.LittleEndian.PutUint32(p[38:42], math.Float32bits(close_))
	binary.LittleEndian.PutUint32(p[42:46], math.Float32bits(high))
	binary.LittleEndian.PutUint32(p[46:50], math.Float32bits(low))
	return p
}

func TestDispatchTicker(t *testing.T) {
	f, ticks := collector()
	epoch := uint32(time.Date(2026, 8, 24, 4, 30, 0, 0, time.UTC).Unix())

	f.dispatch(tickerPacket(2, 49081, 100.50, epoch))

	if len(*ticks) != 1 {
		t.Fatalf("emitted %d ticks, want 1", len(*ticks))
	}
	got := (*ticks)[0]
	if got.Segment != model.SegmentFNO || got.SecurityID != "49081" {
		t.Errorf("identity = %s:%s", got.Segment, got.SecurityID)
	}
	if got.LTP != 10050 {
		t.Errorf("LTP = %d paise, want 10050", got.LTP)
	}
	if got.TS.Unix() != int64(epoch) {
		t.Errorf("TS = %v, want epoch %d", got.TS, epoch)
	}
}

func TestDispatchQuote(t *testing.T) {
	f, ticks := collector()

	f.dispatch(quotePacket(0, 13, 24510.25, 1756008000, 123456, 24400, 24380, 24600.5, 24350))

	if len(*ticks) != 1 {
		t.Fatalf("emitted %d ticks, want 1", len(*ticks))
	}
	got := (*ticks)[0]
	if got.Segment != model.SegmentIndex || got.SecurityID != "13" {
		t.Errorf("identity = %s:%s", got.Segment, got.SecurityID)
	}
	if got.LTP != 2451025 || got.High != 2460050 || got.Low != 2435000 {
		t.Errorf("prices = ltp %d high %d low %d", got.LTP, got.High, got.Low)
	}
	if got.Volume != 123456 {
		t.Errorf("volume = %d", got.Volume)
	}
}

func TestDispatchMultiplePackets(t *testing.T) {
	f, ticks := collector()
	frame := append(
		tickerPacket(2, 49081, 100, 1756008000),
		tickerPacket(2, 49082, 55.25, 1756008001)...,
	)

	f.dispatch(frame)

	if len(*ticks) != 2 {
		t.Fatalf("emitted %d ticks, want 2", len(*ticks))
	}
	if (*ticks)[1].SecurityID != "49082" || (*ticks)[1].LTP != 5525 {
		t.Errorf("second tick = %+v", (*ticks)[1])
	}
}

func TestDispatchMalformedLength(t *testing.T) {
	f, ticks := collector()

	// Declared length exceeds the frame: drop without panicking.
	p := tickerPacket(2, 49081, 100, 1756008000)
	binary.LittleEndian.PutUint16(p[1:3], 500)
	f.dispatch(p)

	if len(*ticks) != 0 {
		t.Fatalf("malformed packet emitted %d ticks", len(*ticks))
	}
}

func TestDispatchUnknownSegment(t *testing.T) {
	f, ticks := collector()
	f.dispatch(tickerPacket(7, 49081, 100, 1756008000))
	if len(*ticks) != 0 {
		t.Fatal("unknown segment code should be dropped")
	}
}

func TestDispatchRejectsNonPositivePrice(t *testing.T) {
	f, ticks := collector()
	f.dispatch(tickerPacket(2, 49081, 0, 1756008000))
	f.dispatch(tickerPacket(2, 49081, -1, 1756008000))
	if len(*ticks) != 0 {
		t.Fatal("non-positive LTP should be dropped")
	}
}

func TestFeedTimeZeroFallsBackToNow(t *testing.T) {
	before := time.Now()
	got := feedTime(0)
	if got.Before(before.Add(-time.Second)) || got.After(time.Now().Add(time.Second)) {
		t.Errorf("feedTime(0) = %v, want roughly now", got)
	}
}

func TestSubscribeDeduplicates(t *testing.T) {
	f, _ := collector()
	in := Instrument{Segment: model.SegmentFNO, SecurityID: "49081"}

	if err := f.Subscribe(in); err != nil {
		t.Fatal(err)
	}
	if err := f.Subscribe(in, in); err != nil {
		t.Fatal(err)
	}
	if len(f.subs) != 1 {
		t.Errorf("subs = %d, want 1", len(f.subs))
	}
}
