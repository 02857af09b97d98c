//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	sliders [len(sliderPins)]machine.ADC
	uart    = machine.UART0

	// Debounced switch states and the run of equal raw reads behind them
	switchStates [len(switchPins)]bool
	switchRaw    [len(switchPins)]bool
	switchRun    [len(switchPins)]int

	// ADC averaging - running sums and sample count
	sliderSums  [len(sliderPins)]uint32
	sampleCount int

	// Timing
	lastRead time.Time
)

func main() {
	for i, pin := range switchPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		switchStates[i] = pin.Get()
		switchRaw[i] = switchStates[i]
	}

	machine.InitADC()
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	for i, pin := range sliderPins {
		sliders[i] = machine.ADC{Pin: pin}
		sliders[i].Configure(adcConfig)
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	lastRead = time.Now()

	for {
		now := time.Now()

		if now.Sub(lastRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			readSwitches()
			readSliders()
			lastRead = now
		}

		if sampleCount >= NUM_SAMPLES {
			outputValues()
			for i := range sliderSums {
				sliderSums[i] = 0
			}
			sampleCount = 0
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// readSwitches accepts a new switch level only after DEBOUNCE_SAMPLES equal reads.
func readSwitches() {
	for i, pin := range switchPins {
		level := pin.Get()
		if level != switchRaw[i] {
			switchRaw[i] = level
			switchRun[i] = 0
		}
		if switchRun[i] < DEBOUNCE_SAMPLES {
			switchRun[i]++
			if switchRun[i] == DEBOUNCE_SAMPLES {
				switchStates[i] = level
			}
		}
	}
}

func readSliders() {
	for i := range sliders {
		// Get returns a left-aligned 16-bit value regardless of resolution
		sliderSums[i] += uint32(sliders[i].Get() >> (16 - ADC_RESOLUTION))
	}
	sampleCount++
}

func outputValues() {
	n := uint32(sampleCount)
	if n == 0 {
		n = 1
	}

	// Output format: "unix_micros,sw1,sw2,s1a,s1b,s2a,s2b\n"
	// Example: "1234567890123,1,0,2048,1024,4095,0\n"
	print(time.Now().UnixNano() / 1000)
	for _, state := range switchStates {
		if state {
			print(",1")
		} else {
			print(",0")
		}
	}
	for _, sum := range sliderSums {
		print(",")
		print(uint16(sum / n))
	}
	print("\n")
}
