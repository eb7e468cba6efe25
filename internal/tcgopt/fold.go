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
    `fmt`
)

// foldUnary computes op's result on the concrete value x at width w,
// masked to w bits.
func foldUnary(op OpCode, x uint64, w Width) uint64 {
    m := w.mask()

    switch op {
        case OpNot32, OpNot64:
            return (^x) & m

        case OpNeg32, OpNeg64:
            return (-x) & m

        case OpExt8s32, OpExt8s64:
            return uint64(int64(int8(x))) & m
        case OpExt16s32, OpExt16s64:
            return uint64(int64(int16(x))) & m
        case OpExt32s64:
            return uint64(int64(int32(x))) & m
        case OpExtI32I64:
            return uint64(int64(int32(x)))

        case OpExt8u32, OpExt8u64:
            return x & 0xff
        case OpExt16u32, OpExt16u64:
            return x & 0xffff
        case OpExt32u64:
            return x & 0xffffffff
        case OpExtuI32I64:
            return x & 0xffffffff

        default:
            panic(fmt.Sprintf("tcgopt: fold: no unary fold table entry for %s", op))
    }
}

// foldBinary computes op's result on the concrete values x, y at width w,
// masked to w bits, for the arithmetic, bitwise, shift and rotate
// families. Comparisons are not folded here; evalCond handles them.
func foldBinary(op OpCode, x, y uint64, w Width) uint64 {
    m := w.mask()

    switch op {
        case OpAdd32, OpAdd64:
            return (x + y) & m
        case OpSub32, OpSub64:
            return (x - y) & m
        case OpMul32, OpMul64:
            return (x * y) & m

        case OpAnd32, OpAnd64:
            return (x & y) & m
        case OpOr32, OpOr64:
            return (x | y) & m
        case OpXor32, OpXor64:
            return (x ^ y) & m
        case OpAndc32, OpAndc64:
            return (x &^ y) & m
        case OpOrc32, OpOrc64:
            return (x | (^y)) & m
        case OpEqv32, OpEqv64:
            return (^(x ^ y)) & m
        case OpNand32, OpNand64:
            return (^(x & y)) & m
        case OpNor32, OpNor64:
            return (^(x | y)) & m

        case OpShl32, OpShl64:
            return foldShift(x, y, w, shiftLeft)
        case OpShr32, OpShr64:
            return foldShift(x, y, w, shiftRightLogical)
        case OpSar32, OpSar64:
            return foldShift(x, y, w, shiftRightArith)
        case OpRotl32, OpRotl64:
            return foldRotate(x, y, w, true)
        case OpRotr32, OpRotr64:
            return foldRotate(x, y, w, false)

        default:
            panic(fmt.Sprintf("tcgopt: fold: no binary fold table entry for %s", op))
    }
}

type shiftKind int

const (
    shiftLeft shiftKind = iota
    shiftRightLogical
    shiftRightArith
)

// foldShift applies a shift of y bits to x at width w. Per §4.D the
// behavior for y >= w is an undefined-input case: the pass may produce
// any value but must not fault, so the shift amount is reduced modulo w
// rather than left to overflow Go's own shift-count panics.
func foldShift(x, y uint64, w Width, kind shiftKind) uint64 {
    m := w.mask()
    n := uint(y) % uint(w)

    switch kind {
        case shiftLeft:
            return (x << n) & m

        case shiftRightLogical:
            return (x & m) >> n

        case shiftRightArith:
            if w == W32 {
                return uint64(int32(x)>>n) & m
            }
            return uint64(int64(x) >> n)

        default:
            panic("tcgopt: fold: unreachable shift kind")
    }
}

// foldRotate rotates x by y bits within a w-bit word. Rotating by zero is
// guarded explicitly rather than falling through to a w-0 = w shift, which
// would be a full-width shift and, depending on host language, undefined
// (§9 open question resolution).
func foldRotate(x, y uint64, w Width, left bool) uint64 {
    m := w.mask()
    n := uint(y) % uint(w)

    if n == 0 {
        return x & m
    }

    v := x & m

    if left {
        return ((v << n) | (v >> (uint(w) - n))) & m
    }

    return ((v >> n) | (v << (uint(w) - n))) & m
}

// evalCond evaluates predicate c on concrete values x, y at width w.
func evalCond(c Cond, x, y uint64, w Width) bool {
    m := w.mask()
    sx, sy := signExtend(x, w), signExtend(y, w)
    ux, uy := x&m, y&m

    switch c {
        case CondEQ  : return ux == uy
        case CondNE  : return ux != uy
        case CondLT  : return sx < sy
        case CondGE  : return sx >= sy
        case CondLE  : return sx <= sy
        case CondGT  : return sx > sy
        case CondLTU : return ux < uy
        case CondGEU : return ux >= uy
        case CondLEU : return ux <= uy
        case CondGTU : return ux > uy
        default      : panic(fmt.Sprintf("tcgopt: fold: invalid condition %d", c))
    }
}

func signExtend(x uint64, w Width) int64 {
    if w == W32 {
        return int64(int32(x))
    }
    return int64(x)
}

func boolToWord(b bool) uint64 {
    if b {
        return 1
    }
    return 0
}

// foldDeposit computes the deposit bitfield insert of §4.D: replace len
// bits at position pos in base with the low len bits of value.
func foldDeposit(base, value uint64, pos, length uint, w Width) uint64 {
    mask := (uint64(1)<<length - 1) << pos
    return ((base &^ mask) | ((value << pos) & mask)) & w.mask()
}
