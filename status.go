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

// Warnings are non-fatal conditions the board reports with every
// frame. The board keeps running; retain functionality may be degraded.
type Warnings struct {
	// I2CError indicates an I2C fault between the board and the host
	I2CError bool
	// VoltageLow indicates the supply dropped below 19V; retain memory
	// is unavailable until it recovers
	VoltageLow bool
	// RetainCRCError indicates the stored retain data failed its CRC
	// check on the board side
	RetainCRCError bool
}

// Versions identifies the connected board.
type Versions struct {
	Firmware uint8
	Hardware uint8
	Model    byte
}

// Status is the session's view of the board state after the last
// validated exchange.
type Status struct {
	// Run mirrors the run bit: false means the microcontroller is in
	// its safe state and needs a power cycle
	Run bool
	// SafeStateActive is the inverse of Run, kept separate for
	// readability at call sites
	SafeStateActive bool
	// WatchdogFired is set when the board entered its safe state while
	// a watchdog period was configured; the watchdog forcing outputs to
	// a safe state is the usual cause
	WatchdogFired bool
	// ErrorCode is the board-reported error code of the last frame
	ErrorCode BoardErrorCode
	// Warnings are the warning bits of the last frame
	Warnings Warnings
}
