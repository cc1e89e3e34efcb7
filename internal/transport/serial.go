package transport

import (
	"context"
	"io"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// SerialConfig configures the RS-485 JIG adapter link.
type SerialConfig struct {
	Device string
	Baud   int
}

// NewSerialTransport opens the serial port described by conf and returns a
// Transport reading and writing NASA frames over it, mirroring
// serialclient.go's NewSerialClient wrapping an io.ReadWriteCloser.
func NewSerialTransport(ctx context.Context, logger *zap.Logger, conf SerialConfig) (*Transport, error) {
	baud := conf.Baud
	if baud == 0 {
		baud = 9600 // matches the NASA bus's fixed JIG adapter rate
	}
	conn, err := dialWithTimeout(ctx, defaultDialTimeout, func(_ context.Context) (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{
			Name:        conf.Device,
			Baud:        baud,
			Size:        8,
			Parity:      serial.ParityEven,
			StopBits:    serial.Stop1,
			ReadTimeout: 100 * time.Millisecond,
		})
	})
	if err != nil {
		return nil, err
	}
	return newTransport(logger, conn), nil
}
