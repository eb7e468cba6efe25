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

func TestCondSwapInvertInvolution(t *testing.T) {
    for c := CondEQ; c <= CondGTU; c++ {
        require.Equal(t, c, c.Swap().Swap())
        require.Equal(t, c, c.Invert().Invert())
    }
}

func TestCondSwapInvertDistinctFromIdentity(t *testing.T) {
    require.Equal(t, CondNE, CondEQ.Invert())
    require.Equal(t, CondGT, CondLT.Swap())
    require.Equal(t, CondGEU, CondLEU.Swap())
}

func TestOpInfoLookupInRange(t *testing.T) {
    info := OpAdd32.Info()
    require.Equal(t, CatArith, info.Category)
    require.Equal(t, W32, info.Width)
    require.True(t, info.Commutative)
}

func TestOpInfoPanicsOutOfRange(t *testing.T) {
    require.Panics(t, func() {
        OpCode(_OpCodeCount + 1).Info()
    })
}

func TestLdStAreBasicBlockEnd(t *testing.T) {
    require.True(t, OpLd.Info().IsBasicBlockEnd)
    require.True(t, OpSt.Info().IsBasicBlockEnd)
    require.True(t, OpBr.Info().IsBasicBlockEnd)
    require.False(t, OpBrcond32.Info().IsBasicBlockEnd)
}

func TestWidthMask(t *testing.T) {
    require.Equal(t, uint64(0xffffffff), W32.mask())
    require.Equal(t, ^uint64(0), W64.mask())
}
