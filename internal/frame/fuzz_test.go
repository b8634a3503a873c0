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

import "testing"

// FuzzCheckCRC hammers the bounds handling of CheckCRC. Length and
// offset information ultimately comes from the wire, so no combination
// of inputs may panic.
//
// Run with: go test -fuzz=FuzzCheckCRC -fuzztime=30s ./internal/frame/
func FuzzCheckCRC(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0xBF, 0x40}, 0, 2, 2)
	f.Add([]byte{}, 0, 0, 0)
	f.Add([]byte{0xFF}, -1, 5, 3)
	f.Add(make([]byte, Len), HeaderStart, HeaderEnd, HeaderCRC)
	f.Add(make([]byte, Len), DataStart, DataEnd, DataCRC)

	f.Fuzz(func(_ *testing.T, buf []byte, start, end, crcOff int) {
		// Should never panic regardless of input.
		_ = CheckCRC(buf, start, end, crcOff)
	})
}
