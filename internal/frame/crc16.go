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

package frame

// CRC16 computes the CRC16/Modbus checksum the board firmware uses for
// both frame regions: init 0xFFFF, reflected polynomial 0xA001, no
// final XOR.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// PutCRC computes the CRC16 of buf[start:end] and stores it
// little-endian at crcOff. Offsets come from the layout constants;
// invalid offsets panic.
func PutCRC(buf []byte, start, end, crcOff int) {
	PutUint16(buf, crcOff, CRC16(buf[start:end]))
}

// CheckCRC reports whether the little-endian CRC16 stored at crcOff
// matches buf[start:end]. Out-of-range offsets report false rather
// than panicking, so corrupt length information from the wire can
// never crash the decoder.
func CheckCRC(buf []byte, start, end, crcOff int) bool {
	if start < 0 || end < start || end > len(buf) {
		return false
	}
	if crcOff < 0 || crcOff+2 > len(buf) {
		return false
	}
	return Uint16(buf, crcOff) == CRC16(buf[start:end])
}
