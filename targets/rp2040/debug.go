//go:build rp2040

package main

import (
	"machine"

	"gobldc/core"
)

var debugUART *machine.UART

// InitDebugUART initializes UART1 on GPIO8 (TX) and GPIO9 (RX) and routes
// core debug output to it
// Baud rate: 115200
func InitDebugUART() {
	debugUART = machine.UART1

	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO8, // UART1 TX
		RX:       machine.GPIO9, // UART1 RX
	})
	if err != nil {
		debugUART = nil
		return
	}

	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(true)
	DebugPrintln("=== ESC debug UART, TX=GPIO8 RX=GPIO9 ===")
}

// DebugPrintln writes a string followed by CRLF to the debug UART
func DebugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
