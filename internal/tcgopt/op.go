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
    `strings`
)

// Op is the decoded, in-memory form of one operation: the shape the
// rewriting driver (component E) actually manipulates. The wire format of
// §6 — opcodes packed as uint16, args packed as a flat uint64 stream — is
// encoded/decoded at the boundary by decodeOp/encodeOp below; nothing past
// that boundary deals with raw argument offsets.
type Op struct {
    Code  OpCode
    Out   []Temp
    In    []Temp
    Cond  Cond
    Imm   []uint64 // movi's value, ld/st's offset, or deposit's {pos, len}; otherwise unused
    Label int64    // branch target identifier for br/brcond/brcond2
}

func (op *Op) String() string {
    out := make([]string, len(op.Out))
    in := make([]string, len(op.In))

    for i, t := range op.Out {
        out[i] = t.String()
    }
    for i, t := range op.In {
        in[i] = t.String()
    }

    switch op.Code {
        case OpNop:
            return "nop"
        case OpMovi:
            return fmt.Sprintf("%s = movi %#x", out[0], op.Imm[0])
        case OpBr:
            return fmt.Sprintf("br L%d", op.Label)
        case OpBrcond32, OpBrcond64:
            return fmt.Sprintf("brcond.%s %s, %s, L%d", op.Cond, in[0], in[1], op.Label)
        case OpBrcond2I32:
            return fmt.Sprintf("brcond2.%s {%s,%s}, {%s,%s}, L%d", op.Cond, in[0], in[1], in[2], in[3], op.Label)
        default:
            return fmt.Sprintf("{%s} = %s {%s}", strings.Join(out, ","), op.Code, strings.Join(in, ","))
    }
}

// argShape describes how many output temps, input temps, and raw
// immediate words follow an opcode in the wire-format argument stream.
// OpCall is handled separately: its arg count is data-dependent, encoded
// in the first argument word (§4.E Phase 1).
type argShape struct {
    nOut, nIn, nImm int
}

var shapeTable = map[OpCode]argShape{
    OpNop: {0, 0, 0},
    OpMov: {1, 1, 0},
    OpMovi: {1, 0, 1},
    OpBr: {0, 0, 1},
    OpMb: {0, 0, 0},
    OpLd: {1, 1, 1}, // R <- *(Mem + offset); offset is the one immediate
    OpSt: {0, 2, 1}, // *(Mem + offset) <- R

    OpAdd32: {1, 2, 0}, OpAdd64: {1, 2, 0},
    OpSub32: {1, 2, 0}, OpSub64: {1, 2, 0},
    OpMul32: {1, 2, 0}, OpMul64: {1, 2, 0},

    OpAnd32: {1, 2, 0}, OpAnd64: {1, 2, 0},
    OpOr32: {1, 2, 0}, OpOr64: {1, 2, 0},
    OpXor32: {1, 2, 0}, OpXor64: {1, 2, 0},
    OpAndc32: {1, 2, 0}, OpAndc64: {1, 2, 0},
    OpOrc32: {1, 2, 0}, OpOrc64: {1, 2, 0},
    OpEqv32: {1, 2, 0}, OpEqv64: {1, 2, 0},
    OpNand32: {1, 2, 0}, OpNand64: {1, 2, 0},
    OpNor32: {1, 2, 0}, OpNor64: {1, 2, 0},

    OpNot32: {1, 1, 0}, OpNot64: {1, 1, 0},
    OpNeg32: {1, 1, 0}, OpNeg64: {1, 1, 0},

    OpShl32: {1, 2, 0}, OpShl64: {1, 2, 0},
    OpShr32: {1, 2, 0}, OpShr64: {1, 2, 0},
    OpSar32: {1, 2, 0}, OpSar64: {1, 2, 0},
    OpRotl32: {1, 2, 0}, OpRotl64: {1, 2, 0},
    OpRotr32: {1, 2, 0}, OpRotr64: {1, 2, 0},

    OpExt8s32: {1, 1, 0}, OpExt8s64: {1, 1, 0},
    OpExt16s32: {1, 1, 0}, OpExt16s64: {1, 1, 0},
    OpExt32s64: {1, 1, 0},
    OpExt8u32: {1, 1, 0}, OpExt8u64: {1, 1, 0},
    OpExt16u32: {1, 1, 0}, OpExt16u64: {1, 1, 0},
    OpExt32u64: {1, 1, 0},
    OpExtI32I64: {1, 1, 0}, OpExtuI32I64: {1, 1, 0},

    OpDeposit32: {1, 2, 2}, OpDeposit64: {1, 2, 2},

    OpSetcond32: {1, 2, 1}, OpSetcond64: {1, 2, 1},
    OpBrcond32: {0, 2, 2}, OpBrcond64: {0, 2, 2},
    OpMovcond32: {1, 4, 1}, OpMovcond64: {1, 4, 1},

    OpAdd2I32: {2, 4, 0},
    OpSub2I32: {2, 4, 0},
    OpMulu2I32: {2, 2, 0},
    OpBrcond2I32: {0, 4, 2},
    OpSetcond2I32: {1, 4, 1},
}

// decodeOp reads one operation starting at args[pos], returning the
// decoded Op and the number of argument words consumed. code is the
// opcode driving the decode — callers pass the ORIGINAL (pre-rewrite)
// opcode, since Phase 1-4 always reasons about the operation as the
// front-end emitted it.
func decodeOp(code OpCode, args []uint64, pos int) (Op, int, error) {
    op := Op{Code: code}

    if code == OpCall {
        if pos >= len(args) {
            return op, 0, fmt.Errorf("tcgopt: truncated call operation at arg %d", pos)
        }

        packed := args[pos]
        nOut := int(packed >> 16)
        nIn := int(packed & 0xffff)
        need := 1 + nOut + nIn

        if pos+need > len(args) {
            return op, 0, fmt.Errorf("tcgopt: truncated call operation at arg %d", pos)
        }

        op.Out = make([]Temp, nOut)
        op.In = make([]Temp, nIn)

        for i := 0; i < nOut; i++ {
            op.Out[i] = Temp(args[pos+1+i])
        }
        for i := 0; i < nIn; i++ {
            op.In[i] = Temp(args[pos+1+nOut+i])
        }

        return op, need, nil
    }

    shape, ok := shapeTable[code]

    if !ok {
        // unrecognized opcode: fall through Phase 5 unchanged per §6; it
        // carries no arguments the pass understands.
        return op, 0, nil
    }

    need := shape.nOut + shape.nIn + shape.nImm

    if pos+need > len(args) {
        return op, 0, fmt.Errorf("tcgopt: truncated operation %s at arg %d", code, pos)
    }

    op.Out = make([]Temp, shape.nOut)
    op.In = make([]Temp, shape.nIn)

    for i := 0; i < shape.nOut; i++ {
        op.Out[i] = Temp(args[pos+i])
    }
    for i := 0; i < shape.nIn; i++ {
        op.In[i] = Temp(args[pos+shape.nOut+i])
    }

    imms := args[pos+shape.nOut+shape.nIn : pos+need]
    decodeImmediates(&op, code, imms)

    return op, need, nil
}

func decodeImmediates(op *Op, code OpCode, imms []uint64) {
    switch code {
        case OpMovi:
            op.Imm = []uint64{imms[0]}
        case OpBr:
            op.Label = int64(imms[0])
        case OpLd, OpSt:
            op.Imm = []uint64{imms[0]}
        case OpDeposit32, OpDeposit64:
            op.Imm = []uint64{imms[0], imms[1]}
        case OpSetcond32, OpSetcond64, OpMovcond32, OpMovcond64, OpSetcond2I32:
            op.Cond = Cond(imms[0])
        case OpBrcond32, OpBrcond64, OpBrcond2I32:
            op.Cond = Cond(imms[0])
            op.Label = int64(imms[1])
    }
}

// encodeOp writes op's arguments (outputs, inputs, then immediates) to
// out[pos:], returning the number of words written. op.Code must be the
// FINAL (possibly rewritten) opcode for this operation.
func encodeOp(op *Op, out []uint64, pos int) int {
    if op.Code == OpCall {
        out[pos] = uint64(len(op.Out))<<16 | uint64(len(op.In))
        n := 1

        for _, t := range op.Out {
            out[pos+n] = uint64(t)
            n++
        }
        for _, t := range op.In {
            out[pos+n] = uint64(t)
            n++
        }

        return n
    }

    n := 0

    for _, t := range op.Out {
        out[pos+n] = uint64(t)
        n++
    }
    for _, t := range op.In {
        out[pos+n] = uint64(t)
        n++
    }

    switch op.Code {
        case OpMovi:
            out[pos+n] = op.Imm[0]
            n++
        case OpBr:
            out[pos+n] = uint64(op.Label)
            n++
        case OpLd, OpSt:
            out[pos+n] = op.Imm[0]
            n++
        case OpDeposit32, OpDeposit64:
            out[pos+n] = op.Imm[0]
            out[pos+n+1] = op.Imm[1]
            n += 2
        case OpSetcond32, OpSetcond64, OpMovcond32, OpMovcond64, OpSetcond2I32:
            out[pos+n] = uint64(op.Cond)
            n++
        case OpBrcond32, OpBrcond64, OpBrcond2I32:
            out[pos+n] = uint64(op.Cond)
            out[pos+n+1] = uint64(op.Label)
            n += 2
    }

    return n
}
