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

// ReferenceVoltage is the measurement range of the voltage inputs,
// selected by jumpers on the board. The session-wide setting must
// match the jumper position or every reading is off by a factor of
// two, so it is part of the session configuration rather than a
// per-call argument.
type ReferenceVoltage uint8

const (
	// Ref10V selects the 0-10V range (factory default, jumper open)
	Ref10V ReferenceVoltage = iota
	// Ref5V selects the 0-5V range
	Ref5V
)

func (r ReferenceVoltage) volts() float64 {
	if r == Ref5V {
		return 5.0
	}
	return 10.0
}

// SensorKind identifies the one-wire sensor model wired to a GPIO.
// The raw register format differs between the two.
type SensorKind uint8

const (
	// SensorDHT11 - 8.8 fixed point, no negative temperatures
	SensorDHT11 SensorKind = iota
	// SensorDHT22 - tenths with a sign bit, also sold as AM2302
	SensorDHT22
)

// analogInCurrentScale converts conversion counts of inputs 4 and 5 to
// milliamps, from the board's 10-bit ADC over the burden resistor.
const analogInCurrentScale = 0.020158400229358

// dacMaxVolts is the full-scale output of the board DAC.
const dacMaxVolts = 10.0

// analogVoltage converts raw conversion counts of inputs 0-3 into
// volts for the configured reference.
func analogVoltage(raw uint16, ref ReferenceVoltage) float64 {
	return float64(raw) * ref.volts() / 1024.0
}

// analogCurrent converts raw conversion counts of inputs 4-5 into
// milliamps.
func analogCurrent(raw uint16) float64 {
	return float64(raw) * analogInCurrentScale
}

// dacCounts converts a desired output voltage into the DAC's 10-bit
// count value. Out-of-range values are rejected, not clamped: silently
// driving a different voltage than requested is exactly what a control
// caller must be able to rule out.
func dacCounts(volts float64) (uint16, error) {
	if volts < 0 || volts > dacMaxVolts {
		return 0, ErrOutOfRange
	}
	return uint16(volts / dacMaxVolts * 1023.0), nil
}

// checkSensorPayload validates the raw words of one DHT sensor before
// conversion. All-ones and all-zero payloads mean the board had no
// conversion to report. A humidity or temperature word beyond the
// sensor's physical full scale means the one-wire transfer was
// corrupted; the DHT's own parity byte already failed on the board or
// the bits arrived mangled.
func checkSensorPayload(channel int, temperature, humidity uint16, kind SensorKind) error {
	if temperature == 0xFFFF && humidity == 0xFFFF {
		return &SensorError{Channel: channel, Fault: SensorFaultNoSensor}
	}
	if temperature == 0 && humidity == 0 {
		return &SensorError{Channel: channel, Fault: SensorFaultNoSensor}
	}

	switch kind {
	case SensorDHT22:
		// 100.0% RH and +/-125.0C are the AM2302 limits
		if humidity > 1000 || temperature&0x7FFF > 1250 {
			return &SensorError{Channel: channel, Fault: SensorFaultParity}
		}
	case SensorDHT11:
		// 100% RH and 60C in 8.8 fixed point
		if humidity > 25600 || temperature > 15360 {
			return &SensorError{Channel: channel, Fault: SensorFaultParity}
		}
	}
	return nil
}

// sensorTemperature converts a raw temperature word into degrees
// Celsius. DHT22 words carry a sign bit and tenths; DHT11 words are
// 8.8 fixed point and never negative.
func sensorTemperature(raw uint16, kind SensorKind) float64 {
	if kind == SensorDHT22 {
		value := float64(raw&0x7FFF) / 10.0
		if raw&0x8000 != 0 {
			return -value
		}
		return value
	}
	return float64(raw) / 256.0
}

// sensorHumidity converts a raw humidity word into a relative humidity
// fraction between 0 and 1.
func sensorHumidity(raw uint16, kind SensorKind) float64 {
	if kind == SensorDHT22 {
		return float64(raw) / 1000.0
	}
	return float64(raw) / 25600.0
}
