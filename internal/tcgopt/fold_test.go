/*
 * Copyright 2024 The tcgopt Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tcgopt

import (
    "testing"

    "github.com/stretchr/testify/require"
)

func TestFoldBinaryArithAndWidthMasking(t *testing.T) {
    require.Equal(t, uint64(12), foldBinary(OpAdd32, 5, 7, W32))
    require.Equal(t, uint64(0xffffffff), foldBinary(OpSub32, 0, 1, W32))
    require.Equal(t, ^uint64(0), foldBinary(OpSub64, 0, 1, W64))
}

func TestFoldShiftReducesOutOfRangeAmount(t *testing.T) {
    // shifting by the full width (undefined in many host languages) must
    // not panic and must behave as shifting by amount % width.
    require.Equal(t, foldShift(1, 0, W32, shiftLeft), foldShift(1, 32, W32, shiftLeft))
    require.Equal(t, uint64(1), foldShift(1, 32, W32, shiftLeft))
}

func TestFoldRotateByZeroIsIdentity(t *testing.T) {
    require.Equal(t, uint64(0x1234), foldRotate(0x1234, 0, W32, true))
    require.Equal(t, uint64(0x1234), foldRotate(0x1234, 0, W32, false))
}

func TestFoldRotateLeftAndRight(t *testing.T) {
    require.Equal(t, uint64(0x00000001), foldRotate(0x80000000, 1, W32, true))
    require.Equal(t, uint64(0x80000000), foldRotate(0x00000001, 1, W32, false))
}

func TestFoldDepositInsertsBitfield(t *testing.T) {
    // base=0, insert 0xf at bit position 4, length 4 -> 0xf0
    require.Equal(t, uint64(0xf0), foldDeposit(0, 0xf, 4, 4, W32))
    // base=0xff, insert 0 at bits [0,4) -> clears the low nibble
    require.Equal(t, uint64(0xf0), foldDeposit(0xff, 0, 0, 4, W32))
}

func TestEvalCondSignedVsUnsigned(t *testing.T) {
    neg1 := uint64(0xffffffff) // -1 as i32
    require.True(t, evalCond(CondLT, neg1, 1, W32))
    require.False(t, evalCond(CondLTU, neg1, 1, W32))
    require.True(t, evalCond(CondGTU, neg1, 1, W32))
}

func TestFoldUnaryExtensions(t *testing.T) {
    require.Equal(t, uint64(0xffffffff), foldUnary(OpExt8s32, 0xff, W32))
    require.Equal(t, uint64(0x7f), foldUnary(OpExt8u32, 0xff7f, W32))
    require.Equal(t, uint64(0xffffffffffffffff), foldUnary(OpExt32s64, 0xffffffff, W64))
}
