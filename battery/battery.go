// Package battery estimates the battery state of charge from periodic ADC
// samples of the battery voltage: raw reading → voltage → travelling mean →
// discharge-curve interpolation → percentage.
package battery

import (
	"errors"
	"math"
	"sync/atomic"
)

// ADC abstracts the one-shot conversions the monitor performs. On the
// device this is the SAADC driver; hosts supply a synthetic source.
type ADC interface {
	// Configure prepares the single-ended battery channel for one
	// conversion: 10-bit resolution, no oversampling.
	Configure() error

	// Sample triggers one conversion and returns the raw result.
	Sample() (int16, error)
}

// Timer is the low-frequency timer service that drives sampling. The
// registered handler is invoked on every timer tick.
type Timer interface {
	AddHandler(fn func())
}

// Lithium battery discharge curve at 10% steps: index 0 is 100%, index 10 is
// 0%. Modeled from Grepow data for a 1C discharge rate. Voltages must be
// strictly decreasing.
var dischargeCurve = []float64{
	3.80, 3.45, 3.18, 3.12, 3.10, 3.07, 3.02, 2.97, 2.89, 2.79, 2.70,
}

const (
	// Resolution of the ADC: 10 bits, so raw full scale is 1 << 10.
	resolutionBits = 10

	// VDD = 1.8 V divided by 4 as the ADC reference.
	reference = 1.8 / 4.0

	// ADC gain 1/4, so the input range is the full reference range.
	adcGain = 1.0 / 4.0

	// The analog mux scales the battery voltage: 1.25 V out at 4.5 V in.
	muxGain = 1.25 / 4.5

	// Total gain from the battery terminal to the raw ADC result.
	gain = adcGain * muxGain

	// meanWindow caps the travelling mean weight: after meanWindow samples
	// the mean behaves as an exponential average with that window.
	meanWindow = 10
)

var errCurveNotDecreasing = errors.New("battery: discharge curve must be strictly decreasing")

// Monitor computes the battery percentage in the background. Percent is
// written only by the sampling tick and may be read from anywhere without
// locking.
type Monitor struct {
	adc   ADC
	curve []float64

	percent atomic.Uint32

	// Travelling mean state, touched only by Tick.
	mean  float64
	count float64

	// tickCounter downscales the timer tick rate: a sample is taken only
	// when the 8-bit counter wraps, every 256th tick.
	tickCounter uint8
}

// New returns a monitor sampling from adc, using the built-in discharge
// curve.
func New(adc ADC) *Monitor {
	return &Monitor{adc: adc, curve: dischargeCurve}
}

// SetCurve replaces the discharge curve with a calibration table of the same
// shape: strictly decreasing voltages spanning 100% down to 0% in equal
// steps.
func (m *Monitor) SetCurve(curve []float64) error {
	if len(curve) < 2 {
		return errCurveNotDecreasing
	}
	for i := 1; i < len(curve); i++ {
		if curve[i] >= curve[i-1] {
			return errCurveNotDecreasing
		}
	}
	m.curve = curve
	return nil
}

// Start registers the sampling handler with the timer service.
func (m *Monitor) Start(t Timer) {
	t.AddHandler(m.Tick)
}

// Percent returns the last computed state of charge, 0..100. It never
// blocks and returns 0 before the first sample completes.
func (m *Monitor) Percent() uint8 {
	return uint8(m.percent.Load())
}

// Tick is the timer handler. Only every 256th tick performs a sample; the
// counter is allowed to wrap. A failing conversion is fatal: the ADC has no
// recovery path once configured.
func (m *Monitor) Tick() {
	m.tickCounter++
	if m.tickCounter != 0 {
		return
	}

	if err := m.adc.Configure(); err != nil {
		panic("battery: " + err.Error())
	}
	raw, err := m.adc.Sample()
	if err != nil {
		panic("battery: " + err.Error())
	}

	// Grounded inputs read a few counts below zero.
	if raw < 0 {
		raw = 0
	}

	volts := rawToVoltage(raw)
	m.percent.Store(uint32(voltageToPercent(m.travellingMean(volts), m.curve)))
}

// rawToVoltage converts a raw ADC result to the battery terminal voltage:
// voltage = raw / 2^resolution * reference / gain.
func rawToVoltage(raw int16) float64 {
	return float64(raw) / float64(int(1)<<resolutionBits) * reference / gain
}

// travellingMean folds one sample into the running average:
// mean = (mean*count + v) / (count+1), with count capped at meanWindow.
// It smooths instantaneous ADC and load noise.
func (m *Monitor) travellingMean(v float64) float64 {
	m.mean = (m.mean*m.count + v) / (m.count + 1)
	if m.count < meanWindow {
		m.count++
	}
	return m.mean
}

// voltageToPercent interpolates the voltage against the discharge curve.
// Above the highest calibration point the battery is full; below the lowest
// it is empty; in between the percentage is linear within the 10% bucket and
// rounded to the nearest integer.
func voltageToPercent(volts float64, curve []float64) uint8 {
	if volts > curve[0] {
		return 100
	}
	step := 100.0 / float64(len(curve)-1)
	for i, cv := range curve {
		if cv < volts {
			v0, v1 := cv, curve[i-1]
			p0 := float64(len(curve)-1-i) * step
			return uint8(math.Round(p0 + step*(volts-v0)/(v1-v0)))
		}
	}
	return 0
}
