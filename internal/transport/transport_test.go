package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticFrame is a minimal well-formed frame for the byte-reframer: start
// byte, 0x00, a declared-size byte of 5 (so total length is 5+2=7), three
// body bytes, and the end byte. It carries no real NASA semantics - only
// Transport's framing boundary matters here, nasa.Parse's own codec tests
// cover CRC/header validation.
var syntheticFrame = []byte{0x32, 0x00, 0x05, 0xAA, 0xBB, 0xCC, 0x34}

func TestTransport_framesSurfaceFullFrame(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()

	tr := newTransport(nil, clientEnd)
	defer tr.Close()

	go func() {
		_, _ = serverEnd.Write(syntheticFrame)
	}()

	select {
	case frame := <-tr.Frames():
		assert.Equal(t, syntheticFrame, frame)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestTransport_sendWritesFrameToConn(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()

	tr := newTransport(nil, clientEnd)
	defer tr.Close()

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(syntheticFrame))
		n, _ := serverEnd.Read(buf)
		received <- buf[:n]
	}()

	err := tr.Send(context.Background(), syntheticFrame)
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, syntheticFrame, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestTransport_sendSerializesConcurrentWriters(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()

	tr := newTransport(nil, clientEnd)
	defer tr.Close()

	frameA := []byte{0x32, 0x00, 0x02, 0x01, 0x34}
	frameB := []byte{0x32, 0x00, 0x02, 0x02, 0x34}

	readDone := make(chan []byte, 2)
	go func() {
		for i := 0; i < 2; i++ {
			buf := make([]byte, len(frameA))
			n, err := serverEnd.Read(buf)
			if err != nil {
				return
			}
			readDone <- buf[:n]
		}
	}()

	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() { errA <- tr.Send(context.Background(), frameA) }()
	go func() { errB <- tr.Send(context.Background(), frameB) }()

	require.NoError(t, <-errA)
	require.NoError(t, <-errB)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case got := <-readDone:
			seen[string(got)] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for write")
		}
	}
	assert.True(t, seen[string(frameA)])
	assert.True(t, seen[string(frameB)])
}

func TestTransport_closeStopsFramesChannelAndRejectsSend(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()

	tr := newTransport(nil, clientEnd)
	require.NoError(t, tr.Close())

	_, ok := <-tr.Frames()
	assert.False(t, ok, "frames channel should be closed")

	err := tr.Send(context.Background(), syntheticFrame)
	assert.ErrorIs(t, err, ErrClosed)
}
