// Package serialbridge carries the device console over a physical serial
// port, so the byte stream can be exercised from tooling that only speaks
// serial.
package serialbridge

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Bridge is an open serial port mirroring the console stream.
type Bridge struct {
	port   *serial.Port
	logger *log.Entry
}

// Open opens the named serial port at the given baud rate.
func Open(name string, baud int) (*Bridge, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, err
	}
	return &Bridge{
		port:   port,
		logger: log.WithFields(log.Fields{"component": "serialbridge", "port": name}),
	}, nil
}

// Run copies bytes both ways between the console stream and the serial port
// until either side fails, and returns the first error.
func (b *Bridge) Run(console io.ReadWriter) error {
	b.logger.Info("bridging console")
	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(b.port, console)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(console, b.port)
		errc <- err
	}()
	return <-errc
}

// Close closes the serial port.
func (b *Bridge) Close() error {
	return b.port.Close()
}
