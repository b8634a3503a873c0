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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalogVoltage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  uint16
		ref  ReferenceVoltage
		want float64
	}{
		{"zero", 0, Ref10V, 0},
		{"full_scale_10v", 1023, Ref10V, 9.990234375},
		{"half_scale_10v", 512, Ref10V, 5.0},
		{"half_scale_5v", 512, Ref5V, 2.5},
		{"one_count_10v", 1, Ref10V, 10.0 / 1024.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, analogVoltage(tt.raw, tt.ref), 1e-9)
		})
	}
}

func TestAnalogCurrent(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, analogCurrent(0), 1e-9)
	assert.InDelta(t, 20.158400229358, analogCurrent(1000), 1e-9)
	assert.InDelta(t, 0.020158400229358, analogCurrent(1), 1e-12)
}

func TestDACCounts(t *testing.T) {
	t.Parallel()

	t.Run("range", func(t *testing.T) {
		t.Parallel()

		counts, err := dacCounts(0)
		require.NoError(t, err)
		assert.Equal(t, uint16(0), counts)

		counts, err = dacCounts(10)
		require.NoError(t, err)
		assert.Equal(t, uint16(1023), counts)

		counts, err = dacCounts(5)
		require.NoError(t, err)
		assert.Equal(t, uint16(511), counts)
	})

	t.Run("rejects_out_of_range", func(t *testing.T) {
		t.Parallel()

		_, err := dacCounts(-0.1)
		require.ErrorIs(t, err, ErrOutOfRange)

		_, err = dacCounts(10.01)
		require.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestSensorTemperature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  uint16
		kind SensorKind
		want float64
	}{
		{"dht22_positive", 215, SensorDHT22, 21.5},
		{"dht22_negative", 0x8000 | 105, SensorDHT22, -10.5},
		{"dht22_zero", 0, SensorDHT22, 0},
		{"dht11_fixed_point", 0x1580, SensorDHT11, 21.5},
		{"dht11_whole", 0x1800, SensorDHT11, 24.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, sensorTemperature(tt.raw, tt.kind), 1e-9)
		})
	}
}

func TestSensorHumidity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.642, sensorHumidity(642, SensorDHT22), 1e-9)
	assert.InDelta(t, 1.0, sensorHumidity(1000, SensorDHT22), 1e-9)
	assert.InDelta(t, 0.5, sensorHumidity(12800, SensorDHT11), 1e-9)
}

func TestCheckSensorPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		temperature uint16
		humidity    uint16
		kind        SensorKind
		wantFault   SensorFault
		wantErr     bool
	}{
		{name: "dht22_plausible", temperature: 215, humidity: 642, kind: SensorDHT22},
		{name: "dht22_negative_plausible", temperature: 0x8000 | 400, humidity: 500, kind: SensorDHT22},
		{
			name: "all_ones_no_sensor", temperature: 0xFFFF, humidity: 0xFFFF, kind: SensorDHT22,
			wantErr: true, wantFault: SensorFaultNoSensor,
		},
		{
			name: "all_zero_no_sensor", temperature: 0, humidity: 0, kind: SensorDHT11,
			wantErr: true, wantFault: SensorFaultNoSensor,
		},
		{
			name: "dht22_humidity_beyond_full_scale", temperature: 215, humidity: 1001, kind: SensorDHT22,
			wantErr: true, wantFault: SensorFaultParity,
		},
		{
			name: "dht22_temperature_beyond_limit", temperature: 1251, humidity: 500, kind: SensorDHT22,
			wantErr: true, wantFault: SensorFaultParity,
		},
		{
			name: "dht11_humidity_beyond_full_scale", temperature: 0x1580, humidity: 25601, kind: SensorDHT11,
			wantErr: true, wantFault: SensorFaultParity,
		},
		{
			name: "dht11_temperature_beyond_limit", temperature: 15361, humidity: 12800, kind: SensorDHT11,
			wantErr: true, wantFault: SensorFaultParity,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := checkSensorPayload(2, tt.temperature, tt.humidity, tt.kind)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			var sensorErr *SensorError
			require.ErrorAs(t, err, &sensorErr)
			assert.Equal(t, 2, sensorErr.Channel)
			assert.Equal(t, tt.wantFault, sensorErr.Fault)
		})
	}
}
