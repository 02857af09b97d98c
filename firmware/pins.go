//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 1  // Input read interval in milliseconds
	NUM_SAMPLES        = 20 // Number of samples averaged per output line
	DEBOUNCE_SAMPLES   = 5  // Consecutive equal switch reads before a switch changes

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Serial configuration
	// Format "unix_micros,sw1,sw2,s1a,s1b,s2a,s2b\n", ~40 bytes max per line.
	// 50 lines/sec * 40 bytes = 2,000 bytes/sec; 115200 baud gives ~5.7x headroom.
	UART_BAUD_RATE = 115200
)

// Switch pins, wired to ground with internal pull-ups: released reads 1.
var switchPins = [...]machine.Pin{
	machine.D1,
	machine.D2,
}

// Slider wiper pins, in output order after the switches.
var sliderPins = [...]machine.Pin{
	machine.A0,
	machine.A1,
	machine.A2,
	machine.A3,
}
