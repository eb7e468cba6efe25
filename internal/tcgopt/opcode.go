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

// Width is the bit width at which an opcode's arithmetic is interpreted.
type Width uint8

const (
    W32 Width = 32
    W64 Width = 64
)

func (w Width) mask() uint64 {
    switch w {
        case W32 : return 0xffffffff
        case W64 : return ^uint64(0)
        default  : panic(fmt.Sprintf("tcgopt: invalid width %d", w))
    }
}

func (w Width) valid() bool {
    return w == W32 || w == W64
}

// Category groups opcodes that share fold/rewrite handling, so the driver
// and the folding algebra dispatch on category rather than switching over
// every enumerant individually.
type Category uint8

const (
    CatOther    Category = iota // nop and anything the pass does not recognize
    CatMove                     // mov
    CatConst                    // movi
    CatArith                    // add, sub, mul
    CatBitwise                  // and, or, xor, andc, orc, eqv, nand, nor
    CatUnary                    // not, neg
    CatShift                    // shl, shr, sar, rotl, rotr
    CatExt                      // ext8s/16s/32s, ext8u/16u/32u, ext/extu_i32_i64
    CatDeposit                  // deposit
    CatSetcond                  // setcond
    CatBrcond                   // brcond
    CatMovcond                  // movcond
    CatAdd2                     // add2_i32, sub2_i32
    CatMulu2                    // mulu2_i32
    CatBrcond2                  // brcond2_i32
    CatSetcond2                 // setcond2_i32
    CatCall                     // call
    CatMemory                   // ld, st
    CatBBEnd                    // br, mb, and any other unconditional block end
)

// OpCode is a 16-bit enumerated opcode, matching the wire format of §6.
type OpCode uint16

const (
    OpNop OpCode = iota
    OpMov
    OpMovi
    OpBr
    OpMb
    OpLd
    OpSt
    OpCall

    OpAdd32
    OpAdd64
    OpSub32
    OpSub64
    OpMul32
    OpMul64

    OpAnd32
    OpAnd64
    OpOr32
    OpOr64
    OpXor32
    OpXor64
    OpAndc32
    OpAndc64
    OpOrc32
    OpOrc64
    OpEqv32
    OpEqv64
    OpNand32
    OpNand64
    OpNor32
    OpNor64

    OpNot32
    OpNot64
    OpNeg32
    OpNeg64

    OpShl32
    OpShl64
    OpShr32
    OpShr64
    OpSar32
    OpSar64
    OpRotl32
    OpRotl64
    OpRotr32
    OpRotr64

    OpExt8s32
    OpExt8s64
    OpExt16s32
    OpExt16s64
    OpExt32s64
    OpExt8u32
    OpExt8u64
    OpExt16u32
    OpExt16u64
    OpExt32u64
    OpExtI32I64
    OpExtuI32I64

    OpDeposit32
    OpDeposit64

    OpSetcond32
    OpSetcond64
    OpBrcond32
    OpBrcond64
    OpMovcond32
    OpMovcond64

    OpAdd2I32
    OpSub2I32
    OpMulu2I32
    OpBrcond2I32
    OpSetcond2I32

    _OpCodeCount
)

// OpInfo is the per-opcode metadata of component A: arity, width, and the
// predicates the driver and folding algebra consult.
type OpInfo struct {
    Category        Category
    Width           Width // zero (invalid) for width-agnostic opcodes
    Commutative     bool
    IsBasicBlockEnd bool
    IsCall          bool
    NoReadGlobals   bool
    NoWriteGlobals  bool
}

var opTable = [_OpCodeCount]OpInfo{
    OpNop: {Category: CatOther},
    OpMov: {Category: CatMove},
    OpMovi: {Category: CatConst},
    OpBr: {Category: CatBBEnd, IsBasicBlockEnd: true},
    OpMb: {Category: CatBBEnd, IsBasicBlockEnd: true},
    OpLd: {Category: CatMemory, IsBasicBlockEnd: true},
    OpSt: {Category: CatMemory, IsBasicBlockEnd: true},
    OpCall: {Category: CatCall, IsCall: true},

    OpAdd32: {Category: CatArith, Width: W32, Commutative: true},
    OpAdd64: {Category: CatArith, Width: W64, Commutative: true},
    OpSub32: {Category: CatArith, Width: W32},
    OpSub64: {Category: CatArith, Width: W64},
    OpMul32: {Category: CatArith, Width: W32, Commutative: true},
    OpMul64: {Category: CatArith, Width: W64, Commutative: true},

    OpAnd32:  {Category: CatBitwise, Width: W32, Commutative: true},
    OpAnd64:  {Category: CatBitwise, Width: W64, Commutative: true},
    OpOr32:   {Category: CatBitwise, Width: W32, Commutative: true},
    OpOr64:   {Category: CatBitwise, Width: W64, Commutative: true},
    OpXor32:  {Category: CatBitwise, Width: W32, Commutative: true},
    OpXor64:  {Category: CatBitwise, Width: W64, Commutative: true},
    OpAndc32: {Category: CatBitwise, Width: W32},
    OpAndc64: {Category: CatBitwise, Width: W64},
    OpOrc32:  {Category: CatBitwise, Width: W32},
    OpOrc64:  {Category: CatBitwise, Width: W64},
    OpEqv32:  {Category: CatBitwise, Width: W32, Commutative: true},
    OpEqv64:  {Category: CatBitwise, Width: W64, Commutative: true},
    OpNand32: {Category: CatBitwise, Width: W32, Commutative: true},
    OpNand64: {Category: CatBitwise, Width: W64, Commutative: true},
    OpNor32:  {Category: CatBitwise, Width: W32, Commutative: true},
    OpNor64:  {Category: CatBitwise, Width: W64, Commutative: true},

    OpNot32: {Category: CatUnary, Width: W32},
    OpNot64: {Category: CatUnary, Width: W64},
    OpNeg32: {Category: CatUnary, Width: W32},
    OpNeg64: {Category: CatUnary, Width: W64},

    OpShl32:  {Category: CatShift, Width: W32},
    OpShl64:  {Category: CatShift, Width: W64},
    OpShr32:  {Category: CatShift, Width: W32},
    OpShr64:  {Category: CatShift, Width: W64},
    OpSar32:  {Category: CatShift, Width: W32},
    OpSar64:  {Category: CatShift, Width: W64},
    OpRotl32: {Category: CatShift, Width: W32},
    OpRotl64: {Category: CatShift, Width: W64},
    OpRotr32: {Category: CatShift, Width: W32},
    OpRotr64: {Category: CatShift, Width: W64},

    OpExt8s32:    {Category: CatExt, Width: W32},
    OpExt8s64:    {Category: CatExt, Width: W64},
    OpExt16s32:   {Category: CatExt, Width: W32},
    OpExt16s64:   {Category: CatExt, Width: W64},
    OpExt32s64:   {Category: CatExt, Width: W64},
    OpExt8u32:    {Category: CatExt, Width: W32},
    OpExt8u64:    {Category: CatExt, Width: W64},
    OpExt16u32:   {Category: CatExt, Width: W32},
    OpExt16u64:   {Category: CatExt, Width: W64},
    OpExt32u64:   {Category: CatExt, Width: W64},
    OpExtI32I64:  {Category: CatExt, Width: W64},
    OpExtuI32I64: {Category: CatExt, Width: W64},

    OpDeposit32: {Category: CatDeposit, Width: W32},
    OpDeposit64: {Category: CatDeposit, Width: W64},

    OpSetcond32: {Category: CatSetcond, Width: W32},
    OpSetcond64: {Category: CatSetcond, Width: W64},
    OpBrcond32:  {Category: CatBrcond, Width: W32, IsBasicBlockEnd: false},
    OpBrcond64:  {Category: CatBrcond, Width: W64, IsBasicBlockEnd: false},
    OpMovcond32: {Category: CatMovcond, Width: W32},
    OpMovcond64: {Category: CatMovcond, Width: W64},

    OpAdd2I32:      {Category: CatAdd2, Width: W32},
    OpSub2I32:      {Category: CatAdd2, Width: W32},
    OpMulu2I32:     {Category: CatMulu2, Width: W32},
    OpBrcond2I32:   {Category: CatBrcond2, Width: W32},
    OpSetcond2I32:  {Category: CatSetcond2, Width: W32},
}

// Info looks up the metadata for op, panicking if op is outside the table.
// The driver checks an opcode against _OpCodeCount before calling Info and
// passes out-of-range opcodes through every phase unchanged (§6).
func (op OpCode) Info() OpInfo {
    if int(op) >= len(opTable) {
        panic(fmt.Sprintf("tcgopt: opcode %d has no metadata entry", op))
    }
    return opTable[op]
}

func (op OpCode) String() string {
    if n, ok := opNames[op]; ok {
        return n
    }
    return fmt.Sprintf("op(%d)", op)
}

var opNames = map[OpCode]string{
    OpNop: "nop", OpMov: "mov", OpMovi: "movi", OpBr: "br", OpMb: "mb",
    OpLd: "ld", OpSt: "st", OpCall: "call",
    OpAdd32: "add_i32", OpAdd64: "add_i64", OpSub32: "sub_i32", OpSub64: "sub_i64",
    OpMul32: "mul_i32", OpMul64: "mul_i64",
    OpAnd32: "and_i32", OpAnd64: "and_i64", OpOr32: "or_i32", OpOr64: "or_i64",
    OpXor32: "xor_i32", OpXor64: "xor_i64",
    OpAndc32: "andc_i32", OpAndc64: "andc_i64", OpOrc32: "orc_i32", OpOrc64: "orc_i64",
    OpEqv32: "eqv_i32", OpEqv64: "eqv_i64", OpNand32: "nand_i32", OpNand64: "nand_i64",
    OpNor32: "nor_i32", OpNor64: "nor_i64",
    OpNot32: "not_i32", OpNot64: "not_i64", OpNeg32: "neg_i32", OpNeg64: "neg_i64",
    OpShl32: "shl_i32", OpShl64: "shl_i64", OpShr32: "shr_i32", OpShr64: "shr_i64",
    OpSar32: "sar_i32", OpSar64: "sar_i64",
    OpRotl32: "rotl_i32", OpRotl64: "rotl_i64", OpRotr32: "rotr_i32", OpRotr64: "rotr_i64",
    OpExt8s32: "ext8s_i32", OpExt8s64: "ext8s_i64", OpExt16s32: "ext16s_i32", OpExt16s64: "ext16s_i64",
    OpExt32s64: "ext32s_i64", OpExt8u32: "ext8u_i32", OpExt8u64: "ext8u_i64",
    OpExt16u32: "ext16u_i32", OpExt16u64: "ext16u_i64", OpExt32u64: "ext32u_i64",
    OpExtI32I64: "ext_i32_i64", OpExtuI32I64: "extu_i32_i64",
    OpDeposit32: "deposit_i32", OpDeposit64: "deposit_i64",
    OpSetcond32: "setcond_i32", OpSetcond64: "setcond_i64",
    OpBrcond32: "brcond_i32", OpBrcond64: "brcond_i64",
    OpMovcond32: "movcond_i32", OpMovcond64: "movcond_i64",
    OpAdd2I32: "add2_i32", OpSub2I32: "sub2_i32", OpMulu2I32: "mulu2_i32",
    OpBrcond2I32: "brcond2_i32", OpSetcond2I32: "setcond2_i32",
}

// Cond is a comparison predicate used by setcond/brcond and their
// double-word and conditional-move variants.
type Cond uint8

const (
    CondEQ Cond = iota
    CondNE
    CondLT
    CondGE
    CondLE
    CondGT
    CondLTU
    CondGEU
    CondLEU
    CondGTU
)

var condNames = [...]string{"eq", "ne", "lt", "ge", "le", "gt", "ltu", "geu", "leu", "gtu"}

func (c Cond) String() string {
    if int(c) < len(condNames) {
        return condNames[c]
    }
    return fmt.Sprintf("cond(%d)", c)
}

// Swap returns the predicate equivalent to c with its operands exchanged.
func (c Cond) Swap() Cond {
    switch c {
        case CondLT  : return CondGT
        case CondGT  : return CondLT
        case CondLE  : return CondGE
        case CondGE  : return CondLE
        case CondLTU : return CondGTU
        case CondGTU : return CondLTU
        case CondLEU : return CondGEU
        case CondGEU : return CondLEU
        default      : return c // EQ, NE are invariant under swap
    }
}

// Invert returns the negation of c.
func (c Cond) Invert() Cond {
    switch c {
        case CondEQ  : return CondNE
        case CondNE  : return CondEQ
        case CondLT  : return CondGE
        case CondGE  : return CondLT
        case CondLE  : return CondGT
        case CondGT  : return CondLE
        case CondLTU : return CondGEU
        case CondGEU : return CondLTU
        case CondLEU : return CondGTU
        case CondGTU : return CondLEU
        default      : panic(fmt.Sprintf("tcgopt: invalid condition %d", c))
    }
}
