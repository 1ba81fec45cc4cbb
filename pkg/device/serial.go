package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/bladc/pkg/shell"
)

const (
	// DefaultBaudRate is the BL602 console speed.
	DefaultBaudRate = 2000000
	// DefaultBufferSize is the default size of the received lines buffer.
	DefaultBufferSize = 64
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

type opener func(name string, baudRate int) (io.ReadWriteCloser, error)

func openSerial(name string, baudRate int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baudRate})
}

// Serial is a sampler firmware reached over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	open     opener

	conn      io.ReadWriteCloser
	lines     chan string
	mu        sync.RWMutex
	execMu    sync.Mutex
	cancel    context.CancelFunc
	connected bool
}

// NewSerial creates a Serial device for port. Zero baudRate or bufSize select
// the defaults.
func NewSerial(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		open:     openSerial,
	}
}

// Connect opens the serial port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := d.open(d.port, d.baudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = conn
	d.cancel = cancel
	d.lines = make(chan string, d.bufSize)
	d.connected = true

	go d.readLines(ctx, conn, d.lines)

	return nil
}

// Close closes the port and stops the reader.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Exec sends line to the firmware and returns the response lines up to the
// prompt.
func (d *Serial) Exec(ctx context.Context, line string) ([]string, error) {
	d.execMu.Lock()
	defer d.execMu.Unlock()

	d.mu.RLock()
	conn, lines, connected := d.conn, d.lines, d.connected
	d.mu.RUnlock()

	if !connected {
		return nil, fmt.Errorf("not connected")
	}

	// Drop output that arrived outside of a command.
	for drained := false; !drained; {
		select {
		case _, ok := <-lines:
			if !ok {
				return nil, fmt.Errorf("connection closed")
			}
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var out []string
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return out, fmt.Errorf("connection closed")
			}
			if l == shell.Prompt {
				return out, nil
			}
			out = append(out, l)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// readLines reads lines from conn until ctx is done or the port fails.
func (d *Serial) readLines(ctx context.Context, conn io.Reader, lines chan<- string) {
	defer close(lines)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readLines: %v", r)
		}
	}()

	scanner := bufio.NewScanner(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && err != io.EOF {
					select {
					case <-ctx.Done():
					default:
						log.Printf("Error reading from serial port: %v", err)
					}
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			select {
			case lines <- line:
			case <-ctx.Done():
				return
			default:
				log.Printf("Lines buffer full, dropping %q", line)
			}
		}
	}
}
