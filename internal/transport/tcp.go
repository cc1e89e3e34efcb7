package transport

import (
	"context"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

const defaultDialTimeout = 5 * time.Second

// NewTCPTransport dials addr (host:port) and returns a Transport reading
// and writing NASA frames over the connection, mirroring client.go's
// NewTCPClient/Connect split collapsed into a single dial-and-wrap call.
func NewTCPTransport(ctx context.Context, logger *zap.Logger, addr string) (*Transport, error) {
	conn, err := dialWithTimeout(ctx, defaultDialTimeout, func(ctx context.Context) (io.ReadWriteCloser, error) {
		dialer := &net.Dialer{KeepAlive: 15 * time.Second}
		return dialer.DialContext(ctx, "tcp", addr)
	})
	if err != nil {
		return nil, err
	}
	return newTransport(logger, conn), nil
}
