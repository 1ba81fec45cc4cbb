//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/bladc/pkg/adc"
	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/console"
	"github.com/itohio/bladc/pkg/fault"
	"github.com/itohio/bladc/pkg/shell"
)

var (
	uart = machine.UART0

	board boardADC
	cmds  *shell.Registry

	// Serial buffer for reading lines
	serialBuffer [LINE_BUFFER_SIZE]byte
	serialPos    int
	overrun      bool
)

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// Faults stop the firmware; the console keeps the diagnostic.
	fault.SetHandler(func(*fault.Fault) {
		for {
			time.Sleep(time.Second)
		}
	})

	cmds = shell.NewRegistry(console.DefaultCapacity)
	shell.RegisterADC(cmds, adc.New(&board), config.Default().ADC)

	print("Hello from Go!\r\n")
	print(shell.Prompt, "\r\n")

	for {
		processSerial()
		board.sample(time.Now())
		time.Sleep(10 * time.Microsecond)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 && !overrun {
				execute(string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			overrun = false
			continue
		}

		if serialPos >= len(serialBuffer) {
			overrun = true
			continue
		}
		serialBuffer[serialPos] = data
		serialPos++
	}
}

// execute runs one command line and prints its output followed by the prompt.
func execute(line string) {
	out, err := cmds.Exec(line)
	if out != "" {
		print(out)
	}
	if err != nil {
		print(err.Error(), "\r\n")
	}
	print(shell.Prompt, "\r\n")
}
