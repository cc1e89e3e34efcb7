// Package transport connects the NASA packet codec to a physical link -
// either a TCP socket (for WiFi-bridged units) or a serial port (for a
// directly wired RS-485 JIG adapter) - and reassembles the byte stream into
// complete frames using internal/nasa.FrameReader.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/nasa"
)

// ErrClosed is returned by Send once the transport has been closed; the
// channel returned by Frames is closed instead.
var ErrClosed = errors.New("transport: closed")

const (
	// writeQueueSize bounds the number of pending outgoing frames. The
	// producer already paces its own writes (500ms between chunks, 1s
	// after a write), so this only needs to absorb brief bursts.
	writeQueueSize = 16

	readBufSize = 4096
)

// Transport reads and writes NASA frames over a physical link. Reading is
// push-based: the read loop forwards every reassembled frame to the channel
// returned by Frames. Writing goes through a single actor goroutine so
// concurrent callers never interleave partial frames on the wire.
type Transport struct {
	logger *zap.Logger
	conn   io.ReadWriteCloser

	frameReader *nasa.FrameReader
	frames      chan []byte
	writeQueue  chan writeRequest

	closeOnce sync.Once
	closed    chan struct{}
}

type writeRequest struct {
	frame []byte
	done  chan error
}

// newTransport wraps an already-open connection, grounded on client.go's
// split between dialing (constructor-specific) and the generic read/write
// actor loops (shared here instead of duplicated per transport kind).
func newTransport(logger *zap.Logger, conn io.ReadWriteCloser) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transport{
		logger:      logger,
		conn:        conn,
		frameReader: nasa.NewFrameReader(logger),
		frames:      make(chan []byte, 32),
		writeQueue:  make(chan writeRequest, writeQueueSize),
		closed:      make(chan struct{}),
	}
	go t.readLoop()
	go t.writeLoop()
	return t
}

// Frames returns the channel of reassembled frame payloads. It is closed
// once the underlying connection is closed or a read error occurs.
func (t *Transport) Frames() <-chan []byte {
	return t.frames
}

func (t *Transport) readLoop() {
	defer close(t.frames)
	buf := make([]byte, readBufSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			for _, frame := range t.frameReader.Feed(buf[:n]) {
				select {
				case t.frames <- frame:
				case <-t.closed:
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Warn("transport read failed", zap.Error(err))
			}
			return
		}
	}
}

// writeLoop is the single writer actor: every Send is funneled through
// here so frames are never interleaved on the wire, matching spec.md's
// "writer is an actor" design note.
func (t *Transport) writeLoop() {
	for {
		select {
		case req := <-t.writeQueue:
			_, err := t.conn.Write(req.frame)
			req.done <- err
		case <-t.closed:
			return
		}
	}
}

// Send submits frame to the write actor and blocks until it has been
// written (or ctx is done, or the transport is closed).
func (t *Transport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	req := writeRequest{frame: frame, done: make(chan error, 1)}
	select {
	case t.writeQueue <- req:
	case <-t.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return ErrClosed
	}
}

// Close closes the underlying connection and stops the reader/writer
// goroutines. Safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}

// dialWithTimeout is shared by both constructors; it hands dial a context
// carrying the timeout, matching client.go's defaultConnectTimeout. Only a
// dial function that honours its context is bounded by it: the TCP dial is,
// the serial open ignores the context and is not.
func dialWithTimeout(ctx context.Context, timeout time.Duration, dial func(context.Context) (io.ReadWriteCloser, error)) (io.ReadWriteCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: dial failed: %w", err)
	}
	return conn, nil
}
