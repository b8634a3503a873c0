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

// Package pixtendl drives the PiXtend L I/O board from a Raspberry Pi.
//
// Communication is cyclic: every ReadWrite sends the pending output
// frame and receives an input frame in the same full duplex SPI
// transfer. Stage outputs with the setters, call ReadWrite, then read
// inputs from the validated snapshot:
//
//	t, err := spi.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	board, err := pixtendl.New(t)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer board.Close()
//
//	_ = board.SetDigitalOutput(0, true)
//	if err := board.ReadWrite(); err != nil {
//		log.Fatal(err)
//	}
//	on, _ := board.DigitalInput(0)
//
// Transports live in the transport subpackages: spi (kernel spidev via
// periph.io), rpio (direct register access) and serial (bench bridge).
package pixtendl
