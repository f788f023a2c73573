// Package driver provides raw pin drivers for the board: the Raspberry Pi
// GPIO header (go-rpio), an MCP23017 I2C expander laid out like the PiFace
// Digital (inputs on port B, outputs on port A) and an in-memory mock.
//
// Drivers deal in electrical levels only; polarity is applied by package board.
package driver
