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

// Package boardsim simulates a PiXtend L microcontroller behind the
// Transport interface. It parses outgoing frames the way the firmware
// does, latches outputs, keeps retain memory across simulated power
// cycles and answers with sealed input frames.
//
// The simulator exists for tests that need firmware-like behavior
// rather than scripted responses: CRC rejection with board error
// codes, watchdog expiry, safe state entry, retain persistence.
package boardsim

import (
	"context"
	"time"

	pixtendl "github.com/pixtend-community/go-pixtendl"
	"github.com/pixtend-community/go-pixtendl/internal/frame"
	"github.com/pixtend-community/go-pixtendl/internal/syncutil"
)

// Simulator is a virtual PiXtend L. It implements pixtendl.Transport
// and pixtendl.DACPort.
type Simulator struct {
	mu syncutil.Mutex

	// identity
	firmware uint8
	hardware uint8
	model    byte

	// microcontroller state
	run       bool
	errorCode uint8
	warnings  uint8

	// latched outputs, as last accepted
	lastFrame []byte

	// retain
	storage    [frame.RetainLen]byte // survives PowerCycle
	lastRetain [frame.RetainLen]byte // last received block, echo source

	// simulated inputs
	digital [2]byte
	analog  [6]uint16
	gpio    byte
	sensors [4][2]uint16

	// timing
	lastValid time.Time

	// fault injection
	nextErr     error
	corruptNext bool
	shortNext   bool

	// bookkeeping
	exchanges int
	dacWrites [][]byte
	closed    bool
}

// New creates a simulator for a powered-up board in run state.
func New() *Simulator {
	return &Simulator{
		firmware: 1,
		hardware: 21,
		model:    frame.ModelL,
		run:      true,
	}
}

// Exchange implements the transport contract.
func (s *Simulator) Exchange(out []byte) ([]byte, error) {
	return s.ExchangeContext(context.Background(), out)
}

// ExchangeContext parses the outgoing frame like the firmware would
// and answers with a sealed input frame. Rejected frames still get an
// answer; the rejection travels in the state byte error code.
func (s *Simulator) ExchangeContext(ctx context.Context, out []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, pixtendl.NewTransportClosedError("Exchange", "boardsim")
	}
	s.exchanges++

	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return nil, err
	}

	s.errorCode = s.accept(out)
	resp := s.respond()

	if s.corruptNext {
		s.corruptNext = false
		resp[frame.DataStart] ^= 0x01 // data CRC no longer matches
	}
	if s.shortNext {
		s.shortNext = false
		resp = resp[:frame.Len/2]
	}
	return resp, nil
}

// accept validates an outgoing frame and latches its outputs,
// returning the firmware error code.
func (s *Simulator) accept(out []byte) uint8 {
	if len(out) < frame.Len {
		return uint8(pixtendl.BoardDataTooShort)
	}
	if !frame.CheckCRC(out, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC) {
		return uint8(pixtendl.BoardHeaderCRCError)
	}
	if out[frame.OutModel] != s.model {
		return uint8(pixtendl.BoardModelMismatch)
	}
	if !frame.CheckCRC(out, frame.DataStart, frame.DataEnd, frame.DataCRC) {
		return uint8(pixtendl.BoardDataCRCError)
	}

	// Watchdog: a gap longer than the configured period since the last
	// valid frame already tripped the safe state before this frame
	// arrived.
	if s.run && !s.lastValid.IsZero() && len(s.lastFrame) == frame.Len {
		if period := watchdogPeriod(s.lastFrame[frame.OutWatchdog]); period > 0 {
			if time.Since(s.lastValid) > period {
				s.enterSafeState()
				return 0
			}
		}
	}

	s.lastValid = time.Now()
	if !s.run {
		// Safe state: frame acknowledged, outputs ignored.
		return 0
	}

	s.lastFrame = append(s.lastFrame[:0], out...)
	copy(s.lastRetain[:], out[frame.OutRetain:frame.OutRetain+frame.RetainLen])

	if out[frame.OutSystem]&frame.SysSafe != 0 {
		s.enterSafeState()
	}
	return 0
}

// enterSafeState drops the run bit and persists the last retain block,
// like the firmware does on watchdog expiry or safe state request.
func (s *Simulator) enterSafeState() {
	s.run = false
	if len(s.lastFrame) == frame.Len && s.lastFrame[frame.OutSystem]&frame.SysRetainEnable != 0 {
		s.storage = s.lastRetain
	}
}

// respond builds a sealed input frame from the current state.
func (s *Simulator) respond() []byte {
	buf := make([]byte, frame.Len)
	buf[frame.InFirmware] = s.firmware
	buf[frame.InHardware] = s.hardware
	buf[frame.InModel] = s.model

	state := s.errorCode << frame.StateErrorShift
	if s.run {
		state |= frame.StateRun
	}
	buf[frame.InState] = state
	buf[frame.InWarnings] = s.warnings

	buf[frame.InDigitalIn] = s.digital[0]
	buf[frame.InDigitalIn+1] = s.digital[1]
	for i, v := range s.analog {
		frame.PutUint16(buf, frame.InAnalogIn+2*i, v)
	}
	buf[frame.InGPIOIn] = s.gpio
	for i, words := range s.sensors {
		base := frame.InSensor + i*frame.SensorLen
		frame.PutUint16(buf, base, words[0])
		frame.PutUint16(buf, base+2, words[1])
	}

	retain := s.storage
	if len(s.lastFrame) == frame.Len && s.lastFrame[frame.OutSystem]&frame.SysRetainCopy != 0 {
		retain = s.lastRetain
	}
	copy(buf[frame.InRetain:], retain[:])

	frame.PutCRC(buf, frame.HeaderStart, frame.HeaderEnd, frame.HeaderCRC)
	frame.PutCRC(buf, frame.DataStart, frame.DataEnd, frame.DataCRC)
	return buf
}

// watchdogPeriod maps the watchdog register value to a duration.
func watchdogPeriod(register byte) time.Duration {
	if register == 0 || register > 10 {
		return 0
	}
	return 16 * time.Millisecond << (register - 1)
}

// WriteDAC implements pixtendl.DACPort, recording each packet.
func (s *Simulator) WriteDAC(packet []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pixtendl.NewTransportClosedError("WriteDAC", "boardsim")
	}
	s.dacWrites = append(s.dacWrites, append([]byte(nil), packet...))
	return nil
}

// Close implements the transport contract.
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// SetTimeout implements the transport contract. The simulator never
// blocks, so the timeout is accepted and ignored.
func (*Simulator) SetTimeout(time.Duration) error {
	return nil
}

// IsConnected implements the transport contract.
func (s *Simulator) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Type implements the transport contract.
func (*Simulator) Type() pixtendl.TransportType {
	return pixtendl.TransportMock
}

// Simulation knobs

// PowerCycle restarts the microcontroller. Outputs and warnings reset,
// retain storage survives.
func (s *Simulator) PowerCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = true
	s.errorCode = 0
	s.warnings = 0
	s.lastFrame = nil
	s.lastRetain = [frame.RetainLen]byte{}
	s.lastValid = time.Time{}
}

// FailNext makes the next exchange fail with err instead of answering.
func (s *Simulator) FailNext(err error) {
	s.mu.Lock()
	s.nextErr = err
	s.mu.Unlock()
}

// CorruptNext flips a data byte in the next response after sealing, so
// its data CRC check fails.
func (s *Simulator) CorruptNext() {
	s.mu.Lock()
	s.corruptNext = true
	s.mu.Unlock()
}

// ShortFrameNext truncates the next response.
func (s *Simulator) ShortFrameNext() {
	s.mu.Lock()
	s.shortNext = true
	s.mu.Unlock()
}

// SetModel overrides the model byte the simulator identifies with.
func (s *Simulator) SetModel(model byte) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
}

// SetRun overrides the run bit directly.
func (s *Simulator) SetRun(run bool) {
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
}

// SetWarnings sets the raw warning bits of subsequent responses.
func (s *Simulator) SetWarnings(warnings byte) {
	s.mu.Lock()
	s.warnings = warnings
	s.mu.Unlock()
}

// SetDigitalInput drives simulated digital input 0-15.
func (s *Simulator) SetDigitalInput(index int, on bool) {
	if index < 0 || index >= 16 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byteIdx, bit := index/8, uint(index%8)
	if on {
		s.digital[byteIdx] |= 1 << bit
	} else {
		s.digital[byteIdx] &^= 1 << bit
	}
}

// SetAnalogInput drives simulated analog input 0-5 with raw counts.
func (s *Simulator) SetAnalogInput(index int, raw uint16) {
	if index < 0 || index >= 6 {
		return
	}
	s.mu.Lock()
	s.analog[index] = raw
	s.mu.Unlock()
}

// SetGPIOInput drives simulated GPIO input 0-3.
func (s *Simulator) SetGPIOInput(index int, on bool) {
	if index < 0 || index >= 4 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.gpio |= 1 << uint(index)
	} else {
		s.gpio &^= 1 << uint(index)
	}
}

// SetSensor drives the raw temperature and humidity words of DHT
// channel 0-3.
func (s *Simulator) SetSensor(index int, temperature, humidity uint16) {
	if index < 0 || index >= 4 {
		return
	}
	s.mu.Lock()
	s.sensors[index] = [2]uint16{temperature, humidity}
	s.mu.Unlock()
}

// Introspection

// Exchanges reports how many exchanges the simulator served.
func (s *Simulator) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// LastOutput returns a copy of the last accepted output frame.
func (s *Simulator) LastOutput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.lastFrame...)
}

// DACWrites returns copies of every recorded DAC packet.
func (s *Simulator) DACWrites() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.dacWrites))
	for i, w := range s.dacWrites {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Running reports the simulated run bit.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}
