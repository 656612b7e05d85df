// Package media implements the per-call RTP media endpoint.
//
// An Endpoint owns one UDP socket for the lifetime of a call: inbound RTP
// payloads are surfaced as a channel of [Packet] values, and outbound audio
// is submitted to a FIFO playback queue serviced by a single long-lived
// worker goroutine. The single-flight worker guarantees at most one playback
// session at a time, which makes barge-in trivially correct: cancelling the
// in-flight session and draining the queue leaves silence.
//
// Inbound parsing is deliberately lenient — any datagram of at least twelve
// bytes yields its payload as bytes[12:], without inspecting extensions or
// CSRC entries. Outbound packets carry a well-formed header built with
// pion/rtp: payload type 0 (PCMU), a random SSRC fixed per playback session,
// sequence numbers from 0 mod 2¹⁶, and timestamps stepping by the frame size.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"

	"github.com/voxgate/voxgate/pkg/audio"
)

const (
	// rtpHeaderSize is the fixed portion of an RTP header in bytes.
	rtpHeaderSize = 12

	// payloadTypePCMU is the static RTP payload type for G.711 µ-law.
	payloadTypePCMU = 0

	// DefaultPacketSize is the receive buffer size for ingress datagrams.
	DefaultPacketSize = 2048
)

// ErrPacketSizeTooSmall is returned by [Endpoint.Ingress] when the requested
// packet size cannot hold an RTP header.
var ErrPacketSizeTooSmall = errors.New("packet size must be at least 12 bytes")

// ErrClosed is returned by operations on an endpoint that has been closed.
var ErrClosed = errors.New("endpoint is closed")

// Packet is one inbound RTP payload together with its sender.
type Packet struct {
	// Payload is the datagram with the 12-byte RTP header stripped.
	Payload []byte

	// Peer is the address the datagram was received from.
	Peer *net.UDPAddr
}

// playbackItem is one queued playback session.
type playbackItem struct {
	audio         []byte
	peer          *net.UDPAddr
	sampleRate    int
	frameDuration time.Duration
}

// Endpoint owns a call's UDP socket and playback worker.
// All exported methods are safe for concurrent use.
type Endpoint struct {
	conn *net.UDPConn

	mu        sync.Mutex
	queue     []playbackItem
	cancelCur context.CancelFunc // cancels the in-flight session; nil when idle
	playing   bool
	closed    bool

	wake chan struct{} // signals the worker that the queue is non-empty
	done chan struct{} // closed on Close
	wg   sync.WaitGroup
}

// Open binds a UDP socket on addr (e.g. "0.0.0.0:0" for an ephemeral port)
// and starts the playback worker. The caller must call [Endpoint.Close] to
// release the socket and stop the worker; Close runs on every exit path of
// the owning orchestrator, a leaked bind would block the next call to the
// same port.
func Open(addr string) (*Endpoint, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("media: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("media: bind %q: %w", addr, err)
	}

	e := &Endpoint{
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.playbackWorker()

	slog.Debug("media: endpoint open", "addr", conn.LocalAddr())
	return e, nil
}

// LocalAddr returns the bound UDP address, including the actual port when the
// endpoint was opened with port 0.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Ingress returns a channel of inbound RTP payloads. The stream is lazy and
// infinite until the endpoint is closed or an empty datagram is received.
// Datagrams shorter than the RTP header are dropped.
//
// packetSize is the receive buffer size; it must be at least 12 or Ingress
// fails with [ErrPacketSizeTooSmall].
func (e *Endpoint) Ingress(ctx context.Context, packetSize int) (<-chan Packet, error) {
	if packetSize < rtpHeaderSize {
		return nil, fmt.Errorf("media: %w (got %d)", ErrPacketSizeTooSmall, packetSize)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("media: ingress: %w", ErrClosed)
	}
	e.mu.Unlock()

	ch := make(chan Packet)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(ch)

		buf := make([]byte, packetSize)
		for {
			n, peer, err := e.conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
					return
				}
				select {
				case <-e.done:
					return
				default:
				}
				// Transient failures never tear down the call.
				slog.Warn("media: ingress read failed, retrying", "err", err)
				continue
			}
			if n == 0 {
				// An empty datagram terminates the stream.
				return
			}
			if n < rtpHeaderSize {
				slog.Debug("media: dropping short datagram", "bytes", n, "peer", peer)
				continue
			}
			payload := make([]byte, n-rtpHeaderSize)
			copy(payload, buf[rtpHeaderSize:n])

			select {
			case ch <- Packet{Payload: payload, Peer: peer}:
			case <-ctx.Done():
				return
			case <-e.done:
				return
			}
		}
	}()
	return ch, nil
}

// EnqueuePlayback appends one playback session to the FIFO queue. It never
// blocks on playback and never drops the audio unless [Endpoint.CancelPlayback]
// is called. sampleRate and frameDuration determine the per-packet frame size
// (sampleRate/1000 · frameDuration ms); pass [audio.SampleRate] and
// [audio.FrameDuration] for the gateway defaults.
func (e *Endpoint) EnqueuePlayback(ulaw []byte, peer *net.UDPAddr, sampleRate int, frameDuration time.Duration) error {
	if sampleRate <= 0 {
		sampleRate = audio.SampleRate
	}
	if frameDuration <= 0 {
		frameDuration = audio.FrameDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("media: enqueue playback: %w", ErrClosed)
	}
	e.queue = append(e.queue, playbackItem{
		audio:         ulaw,
		peer:          peer,
		sampleRate:    sampleRate,
		frameDuration: frameDuration,
	})
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// IsPlaying reports whether the worker is streaming a session or the queue
// holds pending sessions.
func (e *Endpoint) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing || len(e.queue) > 0
}

// CancelPlayback atomically drains the queue and interrupts the in-flight
// session, if any. On return the queue is empty and the frame-send loop stops
// no later than the next frame boundary. Idempotent and safe from any caller.
func (e *Endpoint) CancelPlayback() {
	e.mu.Lock()
	dropped := len(e.queue)
	e.queue = nil
	cancel := e.cancelCur
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if dropped > 0 || cancel != nil {
		slog.Debug("media: playback cancelled", "dropped", dropped, "interrupted", cancel != nil)
	}
}

// Close cancels playback, closes the UDP socket, and waits for the worker and
// any ingress readers to exit. Safe to call more than once.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.done)
	e.CancelPlayback()
	err := e.conn.Close()
	e.wg.Wait()

	slog.Debug("media: endpoint closed", "addr", e.conn.LocalAddr())
	if err != nil {
		return fmt.Errorf("media: close socket: %w", err)
	}
	return nil
}

// playbackWorker services the FIFO queue one session at a time. A failure in
// one session is logged and swallowed; the worker survives to service the
// next session.
func (e *Endpoint) playbackWorker() {
	defer e.wg.Done()

	for {
		item, ctx, ok := e.nextItem()
		if !ok {
			return
		}

		err := e.streamSession(ctx, item)

		e.mu.Lock()
		cancel := e.cancelCur
		e.cancelCur = nil
		e.playing = false
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("media: playback session failed", "peer", item.peer, "err", err)
		}
	}
}

// nextItem blocks until a queued session is available or the endpoint closes.
// The pop and the session registration happen in one critical section: the
// instant a session leaves the queue its cancel function is installed and
// playing is set, so a concurrent [Endpoint.CancelPlayback] always sees
// either the queued item or the cancellable session — never neither.
func (e *Endpoint) nextItem() (playbackItem, context.Context, bool) {
	for {
		e.mu.Lock()
		if len(e.queue) > 0 {
			item := e.queue[0]
			e.queue = e.queue[1:]
			ctx, cancel := context.WithCancel(context.Background())
			e.cancelCur = cancel
			e.playing = true
			e.mu.Unlock()
			return item, ctx, true
		}
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return playbackItem{}, nil, false
		}

		select {
		case <-e.wake:
		case <-e.done:
			return playbackItem{}, nil, false
		}
	}
}

// streamSession walks one session's audio in frame-sized slices, sending each
// as an RTP packet and sleeping one frame duration between sends. The header
// is fresh per session: random SSRC, sequence number from 0, timestamp from 0
// stepping by the frame size — the wire behaviour of a brand-new media source.
func (e *Endpoint) streamSession(ctx context.Context, item playbackItem) error {
	frameSize := audio.FrameSizeFor(item.sampleRate, item.frameDuration)
	if frameSize <= 0 {
		return fmt.Errorf("stream: invalid frame size for rate %d", item.sampleRate)
	}

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:     2,
			PayloadType: payloadTypePCMU,
			SSRC:        rand.Uint32(),
		},
	}

	timer := time.NewTimer(item.frameDuration)
	defer timer.Stop()

	for off := 0; off < len(item.audio); off += frameSize {
		end := off + frameSize
		if end > len(item.audio) {
			end = len(item.audio)
		}
		pkt.Payload = item.audio[off:end]

		wire, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("stream: marshal packet: %w", err)
		}
		if _, err := e.conn.WriteToUDP(wire, item.peer); err != nil {
			return fmt.Errorf("stream: send to %s: %w", item.peer, err)
		}

		pkt.Header.SequenceNumber++
		pkt.Header.Timestamp += uint32(frameSize)

		timer.Reset(item.frameDuration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
