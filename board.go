// Copyright 2026 The go-pixtendl Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pixtendl

import (
	"context"
	"errors"
	"time"

	"github.com/pixtend-community/go-pixtendl/internal/frame"
)

// SessionState tracks the health of a board session
type SessionState int

const (
	// StateConnected - transport open, no validated frame yet
	StateConnected SessionState = iota
	// StateSynchronized - at least one validated frame received
	StateSynchronized
	// StateFaulted - too many consecutive failures, session dead
	StateFaulted
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateSynchronized:
		return "synchronized"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Range bounds a floating point value, both ends inclusive
type Range struct {
	Min float64
	Max float64
}

// SafemodeBounds declares per-channel safe ranges. While installed, a
// setter that would commit a value outside its bound fails with
// ErrUnsafeValueRejected and leaves the pending frame untouched. There
// is no clamping: a value is either safe as requested or rejected.
//
// Nil maps and masks leave the corresponding channels unrestricted.
type SafemodeBounds struct {
	// AnalogOutputVolts bounds the requested voltage per DAC channel
	AnalogOutputVolts map[int]Range
	// PWMValueMax caps the raw channel value per PWM group
	PWMValueMax map[int]uint16
	// DigitalAllowedOn is a bit mask of digital outputs that may be
	// switched on (bit 0 = DO0)
	DigitalAllowedOn *uint16
	// RelayAllowedOn is a bit mask of relays that may be switched on
	RelayAllowedOn *uint8
}

// BoardConfig holds the session configuration
type BoardConfig struct {
	// FaultThreshold is the number of consecutive failed exchanges
	// after which the session faults
	FaultThreshold int
	// CycleInterval is the minimum spacing between exchanges; the
	// board firmware needs time to process a frame
	CycleInterval time.Duration
	// Reference selects the analog input measurement range, matching
	// the board jumpers
	Reference ReferenceVoltage
	// Timeout is applied to the transport on New when non-zero
	Timeout time.Duration
}

// DefaultBoardConfig returns the configuration for a stock PiXtend L
func DefaultBoardConfig() *BoardConfig {
	return &BoardConfig{
		FaultThreshold: 3,
		CycleInterval:  30 * time.Millisecond,
		Reference:      Ref10V,
	}
}

// Option configures a Board during New
type Option func(*Board)

// WithFaultThreshold overrides the consecutive-failure count that
// faults the session
func WithFaultThreshold(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.config.FaultThreshold = n
		}
	}
}

// WithCycleInterval overrides the minimum exchange spacing
func WithCycleInterval(d time.Duration) Option {
	return func(b *Board) {
		if d >= 0 {
			b.config.CycleInterval = d
		}
	}
}

// WithReferenceVoltage declares the analog input jumper setting
func WithReferenceVoltage(ref ReferenceVoltage) Option {
	return func(b *Board) {
		b.config.Reference = ref
	}
}

// WithTimeout sets the transport exchange timeout
func WithTimeout(d time.Duration) Option {
	return func(b *Board) {
		b.config.Timeout = d
	}
}

// WithDACPort supplies a separate port for the analog output DAC. By
// default the DAC is reached through the main transport when it
// implements DACPort.
func WithDACPort(dac DACPort) Option {
	return func(b *Board) {
		b.dac = dac
	}
}

// WithSafemodeBounds installs safemode bounds from the start
func WithSafemodeBounds(bounds SafemodeBounds) Option {
	return func(b *Board) {
		b.safemode = &bounds
	}
}

// WithSensorKind declares the DHT sensor model wired to a GPIO
// terminal. DHT11 is assumed otherwise.
func WithSensorKind(index int, kind SensorKind) Option {
	return func(b *Board) {
		if index >= 0 && index < NumGPIOs {
			b.sensorKinds[index] = kind
		}
	}
}

// Board is one communication session with a PiXtend L. It owns the
// pending output frame, the last validated input snapshot and the
// session state machine.
//
// Board is not safe for concurrent use. Drive it from a single
// goroutine, typically a control loop around ReadWrite.
type Board struct {
	transport    Transport
	dac          DACPort
	config       *BoardConfig
	output       *OutputState
	snapshot     *InputSnapshot
	safemode     *SafemodeBounds
	sensorKinds  [NumGPIOs]SensorKind
	pendingDAC   [][]byte
	lastExchange time.Time
	exchanges    uint64
	faults       int
	state        SessionState
	wdFired      bool
}

// New opens a session over an already-open transport.
func New(transport Transport, opts ...Option) (*Board, error) {
	if transport == nil || !transport.IsConnected() {
		return nil, ErrTransportUnavailable
	}

	b := &Board{
		transport: transport,
		config:    DefaultBoardConfig(),
		output:    newOutputState(),
		state:     StateConnected,
	}
	if dac, ok := transport.(DACPort); ok {
		b.dac = dac
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.config.Timeout > 0 {
		if err := transport.SetTimeout(b.config.Timeout); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Close closes the underlying transport.
func (b *Board) Close() error {
	return b.transport.Close()
}

// State reports the session state.
func (b *Board) State() SessionState {
	return b.state
}

// FaultCount reports the current consecutive-failure count.
func (b *Board) FaultCount() int {
	return b.faults
}

// Exchanges reports how many validated exchanges completed.
func (b *Board) Exchanges() uint64 {
	return b.exchanges
}

// ReadWrite performs one exchange cycle: the pending output frame goes
// out, the input frame that clocks back in is validated and becomes
// the new snapshot.
func (b *Board) ReadWrite() error {
	return b.ReadWriteContext(context.Background())
}

// ReadWriteContext performs one exchange cycle with context support.
//
// A faulted session refuses immediately without touching the bus. A
// board that reported safe state in the previous cycle is refused with
// ErrBoardNotReady: only a power cycle brings it back, and clocking
// more frames into it would silently do nothing.
func (b *Board) ReadWriteContext(ctx context.Context) error {
	if b.state == StateFaulted {
		return ErrSessionFaulted
	}
	if b.snapshot != nil && !b.snapshot.Run() {
		return ErrBoardNotReady
	}

	if err := b.pace(ctx); err != nil {
		return err
	}

	out := b.output.encode()
	debugf("exchange: sending %d byte frame, watchdog=%d", len(out), b.output.WatchdogPeriod())

	raw, err := b.transport.ExchangeContext(ctx, out)
	b.lastExchange = time.Now()
	if err != nil {
		// Caller-driven cancellation is not a board fault.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return b.fault(err)
	}

	snap, err := decodeInput(raw)
	if err != nil {
		// Stale snapshot stays; never replace validated data with a
		// frame that failed its checks.
		return b.fault(err)
	}

	if snap.Model() != frame.ModelL {
		// CRC-validated wrong model byte is a wiring problem, not line
		// noise; it neither counts toward the fault threshold nor
		// updates the snapshot.
		return ErrModelMismatch
	}

	if code := snap.ErrorCode(); code != BoardOK {
		// The board rejected our frame, so its answer reflects the
		// previous accepted state. Surface the rejection and keep the
		// old snapshot.
		return b.fault(&BoardError{Code: code})
	}

	b.faults = 0
	b.snapshot = snap
	b.state = StateSynchronized
	b.exchanges++

	if !snap.Run() && b.output.WatchdogPeriod() != WatchdogOff {
		b.wdFired = true
	}

	return b.flushDAC()
}

// pace blocks until the minimum cycle spacing has passed.
func (b *Board) pace(ctx context.Context) error {
	if b.config.CycleInterval <= 0 || b.lastExchange.IsZero() {
		return nil
	}
	wait := b.config.CycleInterval - time.Since(b.lastExchange)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fault records a failed exchange and trips the state machine at the
// threshold.
func (b *Board) fault(err error) error {
	b.faults++
	debugf("exchange failed (%d/%d): %v", b.faults, b.config.FaultThreshold, err)
	if b.faults >= b.config.FaultThreshold {
		b.state = StateFaulted
	}
	return err
}

// flushDAC writes staged DAC packets after a successful exchange. A
// failed write is surfaced to the ReadWrite caller: the frame exchange
// itself went through, but the requested analog output was not
// applied. Undelivered packets stay staged, so the next cycle delivers
// them once the caller decides to continue.
func (b *Board) flushDAC() error {
	if b.dac == nil || len(b.pendingDAC) == 0 {
		return nil
	}
	for i, packet := range b.pendingDAC {
		if err := b.dac.WriteDAC(packet); err != nil {
			b.pendingDAC = b.pendingDAC[i:]
			return NewTransportError("WriteDAC", "", err, errorTypeOf(err))
		}
	}
	b.pendingDAC = nil
	return nil
}

// SetSafemodeBounds installs or replaces the safemode bounds. Passing
// the zero value enables safemode with no restrictions; use
// ClearSafemodeBounds to disable it.
func (b *Board) SetSafemodeBounds(bounds SafemodeBounds) {
	b.safemode = &bounds
}

// ClearSafemodeBounds disables safemode checking.
func (b *Board) ClearSafemodeBounds() {
	b.safemode = nil
}

// Setters. All of them validate fully before mutating the pending
// frame and never touch the bus.

// SetDigitalOutput sets the pending level of digital output 0-11.
func (b *Board) SetDigitalOutput(index int, on bool) error {
	if index < 0 || index >= NumDigitalOutputs {
		return ErrInvalidChannel
	}
	if on && b.safemode != nil && b.safemode.DigitalAllowedOn != nil &&
		*b.safemode.DigitalAllowedOn&(1<<uint(index)) == 0 {
		return ErrUnsafeValueRejected
	}
	return b.output.SetDigitalOutput(index, on)
}

// SetRelayOutput sets the pending state of relay 0-3.
func (b *Board) SetRelayOutput(index int, on bool) error {
	if index < 0 || index >= NumRelays {
		return ErrInvalidChannel
	}
	if on && b.safemode != nil && b.safemode.RelayAllowedOn != nil &&
		*b.safemode.RelayAllowedOn&(1<<uint(index)) == 0 {
		return ErrUnsafeValueRejected
	}
	return b.output.SetRelayOutput(index, on)
}

// SetAnalogOutput stages a DAC update for channel 0-1 with the given
// voltage. The packet is written on the next successful exchange; the
// DAC sits on its own chip select and is not part of the cyclic frame.
func (b *Board) SetAnalogOutput(channel int, volts float64) error {
	if channel < 0 || channel >= NumAnalogOutputs {
		return ErrInvalidChannel
	}
	if b.dac == nil {
		return ErrTransportUnavailable
	}

	counts, err := dacCounts(volts)
	if err != nil {
		return err
	}
	if b.safemode != nil && b.safemode.AnalogOutputVolts != nil {
		if bound, ok := b.safemode.AnalogOutputVolts[channel]; ok {
			if volts < bound.Min || volts > bound.Max {
				return ErrUnsafeValueRejected
			}
		}
	}

	packet := frame.DACPacket(uint8(channel), true, counts)
	b.pendingDAC = append(b.pendingDAC, packet[:])
	return nil
}

// DisableAnalogOutput stages a shutdown packet for DAC channel 0-1.
// The channel output goes high impedance.
func (b *Board) DisableAnalogOutput(channel int) error {
	if channel < 0 || channel >= NumAnalogOutputs {
		return ErrInvalidChannel
	}
	if b.dac == nil {
		return ErrTransportUnavailable
	}
	packet := frame.DACPacket(uint8(channel), false, 0)
	b.pendingDAC = append(b.pendingDAC, packet[:])
	return nil
}

// SetGPIOConfig configures GPIO 0-3 as input, pullup input, output or
// DHT sensor terminal.
func (b *Board) SetGPIOConfig(index int, config GPIOConfig) error {
	return b.output.SetGPIOConfig(index, config)
}

// SetGPIOOutput sets the pending level of an output-configured GPIO.
func (b *Board) SetGPIOOutput(index int, on bool) error {
	return b.output.SetGPIOOutput(index, on)
}

// SetDigitalDebounce configures debounce cycles for a pair of digital
// inputs; group 0 covers inputs 0 and 1.
func (b *Board) SetDigitalDebounce(group int, cycles uint8) error {
	return b.output.SetDigitalDebounce(group, cycles)
}

// SetGPIODebounce configures debounce cycles for a pair of GPIOs.
func (b *Board) SetGPIODebounce(group int, cycles uint8) error {
	return b.output.SetGPIODebounce(group, cycles)
}

// SetPWMConfig configures PWM group 0-2.
func (b *Board) SetPWMConfig(group int, config PWMConfig) error {
	return b.output.SetPWMConfig(group, config)
}

// SetPWMValue sets the raw channel value of PWM group 0-2.
func (b *Board) SetPWMValue(group int, channel PWMChannel, value uint16) error {
	if b.safemode != nil && b.safemode.PWMValueMax != nil {
		if maxValue, ok := b.safemode.PWMValueMax[group]; ok && value > maxValue {
			return ErrUnsafeValueRejected
		}
	}
	return b.output.SetPWMValue(group, channel, value)
}

// WriteRetain stages up to 64 bytes of retain data for the next
// exchange.
func (b *Board) WriteRetain(data []byte) error {
	return b.output.WriteRetain(data)
}

// SetRetainEnable activates the board retain storage.
func (b *Board) SetRetainEnable(on bool) {
	b.output.SetRetainEnable(on)
}

// SetRetainCopy selects mirroring of sent retain data into the input
// area.
func (b *Board) SetRetainCopy(on bool) {
	b.output.SetRetainCopy(on)
}

// SetLEDDisable turns the status LED off.
func (b *Board) SetLEDDisable(on bool) {
	b.output.SetLEDDisable(on)
}

// SetGPIOPullupEnable globally enables GPIO pullups.
func (b *Board) SetGPIOPullupEnable(on bool) {
	b.output.SetGPIOPullupEnable(on)
}

// SetWatchdog encodes the watchdog period into every subsequent frame.
func (b *Board) SetWatchdog(period Watchdog) error {
	return b.output.SetWatchdog(period)
}

// EnterSafeState requests the microcontroller's safe state with the
// next exchange: outputs off, PWM tri-stated, retain stored. Only a
// power cycle brings the board back.
func (b *Board) EnterSafeState() {
	b.output.RequestSafeState()
}

// Getters. All of them read the snapshot of the last validated
// exchange and fail with ErrNotSynchronized before the first one.

func (b *Board) snap() (*InputSnapshot, error) {
	if b.snapshot == nil {
		return nil, ErrNotSynchronized
	}
	return b.snapshot, nil
}

// DigitalInput reports the debounced level of digital input 0-15.
func (b *Board) DigitalInput(index int) (bool, error) {
	s, err := b.snap()
	if err != nil {
		return false, err
	}
	return s.DigitalInput(index)
}

// AnalogVoltageInput reports analog input 0-3 in volts for the
// configured reference.
func (b *Board) AnalogVoltageInput(index int) (float64, error) {
	if index < 0 || index > 3 {
		return 0, ErrInvalidChannel
	}
	s, err := b.snap()
	if err != nil {
		return 0, err
	}
	raw, err := s.analogRaw(index)
	if err != nil {
		return 0, err
	}
	return analogVoltage(raw, b.config.Reference), nil
}

// AnalogCurrentInput reports analog input 4-5 in milliamps.
func (b *Board) AnalogCurrentInput(index int) (float64, error) {
	if index < 4 || index > 5 {
		return 0, ErrInvalidChannel
	}
	s, err := b.snap()
	if err != nil {
		return 0, err
	}
	raw, err := s.analogRaw(index)
	if err != nil {
		return 0, err
	}
	return analogCurrent(raw), nil
}

// AnalogRawInput reports the raw conversion counts of analog input
// 0-5.
func (b *Board) AnalogRawInput(index int) (uint16, error) {
	s, err := b.snap()
	if err != nil {
		return 0, err
	}
	return s.analogRaw(index)
}

// GPIOInput reports the level of an input-configured GPIO 0-3.
func (b *Board) GPIOInput(index int) (bool, error) {
	s, err := b.snap()
	if err != nil {
		return false, err
	}
	cfg, err := b.output.GPIOConfigAt(index)
	if err != nil {
		return false, err
	}
	if cfg != GPIOInput && cfg != GPIOInputPullup {
		return false, ErrGPIONotInput
	}
	return s.GPIOInput(index)
}

// Temperature reports the temperature of the DHT sensor on GPIO 0-3
// in degrees Celsius.
func (b *Board) Temperature(index int) (float64, error) {
	temp, _, err := b.sensorWords(index)
	if err != nil {
		return 0, err
	}
	return sensorTemperature(temp, b.sensorKinds[index]), nil
}

// Humidity reports the relative humidity of the DHT sensor on GPIO
// 0-3 as a fraction between 0 and 1.
func (b *Board) Humidity(index int) (float64, error) {
	_, hum, err := b.sensorWords(index)
	if err != nil {
		return 0, err
	}
	return sensorHumidity(hum, b.sensorKinds[index]), nil
}

func (b *Board) sensorWords(index int) (temperature, humidity uint16, err error) {
	s, err := b.snap()
	if err != nil {
		return 0, 0, err
	}
	cfg, err := b.output.GPIOConfigAt(index)
	if err != nil {
		return 0, 0, err
	}
	if cfg != GPIOSensor {
		return 0, 0, ErrGPIONotSensor
	}
	temperature, humidity, err = s.sensorRaw(index)
	if err != nil {
		return 0, 0, err
	}
	if err := checkSensorPayload(index, temperature, humidity, b.sensorKinds[index]); err != nil {
		return 0, 0, err
	}
	return temperature, humidity, nil
}

// ReadRetain reports the retain block of the last validated frame.
func (b *Board) ReadRetain() ([]byte, error) {
	s, err := b.snap()
	if err != nil {
		return nil, err
	}
	return s.Retain(), nil
}

// Versions reports the board identification of the last validated
// frame.
func (b *Board) Versions() (Versions, error) {
	s, err := b.snap()
	if err != nil {
		return Versions{}, err
	}
	return Versions{
		Firmware: s.FirmwareVersion(),
		Hardware: s.HardwareVersion(),
		Model:    s.Model(),
	}, nil
}

// Status reports the board state of the last validated frame.
func (b *Board) Status() (Status, error) {
	s, err := b.snap()
	if err != nil {
		return Status{}, err
	}
	run := s.Run()
	return Status{
		Run:             run,
		SafeStateActive: !run,
		WatchdogFired:   b.wdFired,
		ErrorCode:       s.ErrorCode(),
		Warnings:        s.Warnings(),
	}, nil
}
