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

// boardmon cycles exchanges with a PiXtend L and prints the inputs,
// versions and board status. A quick way to verify wiring and watch
// the board react to stimuli.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pixtendl "github.com/pixtend-community/go-pixtendl"
	"github.com/pixtend-community/go-pixtendl/transport/rpio"
	"github.com/pixtend-community/go-pixtendl/transport/serial"
	"github.com/pixtend-community/go-pixtendl/transport/spi"
)

var (
	flagTransport = flag.String("transport", "spi", "Transport: spi, rpio or serial")
	flagPort      = flag.String("port", "", "Serial device path (serial transport only)")
	flagInterval  = flag.Duration("interval", time.Second, "Print interval")
	flagWatchdog  = flag.Uint("watchdog", 0, "Watchdog period 0-10 (0 = off)")
	flagRef5V     = flag.Bool("ref5v", false, "Analog inputs jumpered to 5V range")
	flagDebug     = flag.Bool("debug", false, "Enable debug output")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "boardmon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *flagDebug {
		pixtendl.SetDebugEnabled(true)
	}

	transport, err := openTransport()
	if err != nil {
		return err
	}

	opts := []pixtendl.Option{}
	if *flagRef5V {
		opts = append(opts, pixtendl.WithReferenceVoltage(pixtendl.Ref5V))
	}
	board, err := pixtendl.New(transport, opts...)
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() { _ = board.Close() }()

	if *flagWatchdog > 0 {
		if err := board.SetWatchdog(pixtendl.Watchdog(*flagWatchdog)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lastPrint := time.Time{}
	for {
		if err := board.ReadWriteContext(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nshutting down")
				return nil
			}
			if pixtendl.IsFatal(err) {
				return err
			}
			fmt.Fprintf(os.Stderr, "exchange failed: %v\n", err)
			continue
		}

		if time.Since(lastPrint) >= *flagInterval {
			printBoard(board)
			lastPrint = time.Now()
		}
	}
}

func openTransport() (pixtendl.Transport, error) {
	switch *flagTransport {
	case "spi":
		return spi.New()
	case "rpio":
		return rpio.New()
	case "serial":
		if *flagPort == "" {
			return nil, errors.New("serial transport requires -port")
		}
		return serial.New(*flagPort)
	default:
		return nil, fmt.Errorf("unknown transport %q", *flagTransport)
	}
}

func printBoard(board *pixtendl.Board) {
	versions, err := board.Versions()
	if err != nil {
		return
	}
	status, _ := board.Status()

	fmt.Printf("--- PiXtend %c  fw %d  hw %d  state=%s  exchanges=%d\n",
		versions.Model, versions.Firmware, versions.Hardware,
		board.State(), board.Exchanges())

	if status.SafeStateActive {
		fmt.Println("  board in SAFE STATE, power cycle required")
	}
	if status.Warnings.VoltageLow {
		fmt.Println("  warning: supply voltage low")
	}
	if status.Warnings.I2CError {
		fmt.Println("  warning: I2C fault")
	}
	if status.Warnings.RetainCRCError {
		fmt.Println("  warning: retain CRC failure")
	}

	var digital strings.Builder
	for i := 0; i < pixtendl.NumDigitalInputs; i++ {
		on, _ := board.DigitalInput(i)
		if on {
			digital.WriteByte('1')
		} else {
			digital.WriteByte('0')
		}
	}
	fmt.Printf("  digital in : %s\n", digital.String())

	fmt.Print("  analog in  :")
	for i := 0; i < 4; i++ {
		v, _ := board.AnalogVoltageInput(i)
		fmt.Printf(" %5.2fV", v)
	}
	for i := 4; i < pixtendl.NumAnalogInputs; i++ {
		mA, _ := board.AnalogCurrentInput(i)
		fmt.Printf(" %6.2fmA", mA)
	}
	fmt.Println()
}
