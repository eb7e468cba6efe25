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

// Package tcgopt is a single-pass, per-basic-block optimizer for a flat TCG
// style intermediate operation stream: constant propagation, copy
// propagation, constant folding, and algebraic identity simplification
// (component E, §4 of the expanded design).
package tcgopt

import (
    "github.com/oleiade/lane"
)

// decodedOp is one logical operation plus the bookkeeping the driver needs
// to re-emit it: how many physical opcode slots it occupies (2 for the
// add2/sub2/mulu2 family, which reserve an adjacent NOP slot the front end
// must have left for a possible split into two movi results; 1 otherwise)
// and, once Phase 4 has folded such a pair completely, the two replacement
// operations to emit into those slots instead.
type decodedOp struct {
    op          Op
    slots       int
    split       []Op    // non-nil only for a fully-folded 2-slot op: exactly 2 entries
    narrowZMask *uint64 // set by narrowOutputZMask when op.Out[0] survives unfolded but with tighter known-zero bits (§3.1)
}

func (d *decodedOp) finalized() bool {
    return d.op.Code == OpMov || d.op.Code == OpMovi || d.op.Code == OpNop || d.split != nil
}

// Optimize runs the pass over one translation unit's operation stream.
// opcodes and args are rewritten in place: opcodes[i] becomes OpNop for an
// eliminated operation, and args is repacked to hold only the surviving
// operations' arguments, with the unused tail left untouched (the caller
// is expected to track the returned length). Optimize never mutates ctx.
func Optimize(ctx *Context, opcodes []OpCode, args []uint64) (int, error) {
    if err := ctx.validate(); err != nil {
        return 0, err
    }

    ops, err := decodeProgram(opcodes, args)
    if err != nil {
        return 0, err
    }

    blocks := splitBlocks(ops)
    state := NewState(ctx)

    queue := lane.NewQueue()
    for _, b := range blocks {
        queue.Enqueue(b)
    }

    for !queue.Empty() {
        blk := queue.Dequeue().(blockRange)

        state.ResetAll()

        for i := blk.start; i < blk.end; i++ {
            if err := processOp(ctx, state, &ops[i], i); err != nil {
                return 0, err
            }
            state.checkRingSymmetry()
        }
    }

    return encodeProgram(ops, opcodes, args)
}

type blockRange struct {
    start, end int // half-open range over the ops slice
}

// splitBlocks partitions ops into basic blocks using each operation's
// STATIC (pre-rewrite) IsBasicBlockEnd flag. This is purely a traversal
// convenience: correctness of invariant 5 (table reset between basic
// blocks, and whenever a BB_END opcode is processed) falls out of
// processOp's own Phase 5 regardless of how the stream is chunked, since a
// brcond that folds to an unconditional branch becomes BB_END-flagged
// dynamically and triggers the same reset mid-block.
func splitBlocks(ops []decodedOp) []blockRange {
    var blocks []blockRange
    start := 0

    for i, d := range ops {
        if int(d.op.Code) < int(_OpCodeCount) && d.op.Code.Info().IsBasicBlockEnd {
            blocks = append(blocks, blockRange{start: start, end: i + 1})
            start = i + 1
        }
    }
    if start < len(ops) {
        blocks = append(blocks, blockRange{start: start, end: len(ops)})
    }

    return blocks
}

// decodeProgram decodes the full operation stream into logical operations,
// resolving the add2/sub2/mulu2 reserved-slot convention (§9).
func decodeProgram(opcodes []OpCode, args []uint64) ([]decodedOp, error) {
    var ops []decodedOp
    argPos := 0

    for slot := 0; slot < len(opcodes); {
        code := opcodes[slot]
        op, consumed, err := decodeOp(code, args, argPos)
        if err != nil {
            return nil, err
        }

        d := decodedOp{op: op, slots: 1}

        switch code {
            case OpAdd2I32, OpSub2I32, OpMulu2I32:
                if slot+1 >= len(opcodes) || opcodes[slot+1] != OpNop {
                    return nil, fatalf(slot, code, "missing reserved NOP slot required for a two-result split")
                }
                d.slots = 2
        }

        ops = append(ops, d)
        argPos += consumed
        slot += d.slots
    }

    return ops, nil
}

// encodeProgram writes the final opcodes/args back into the caller's
// buffers and returns the surviving argument-word count.
func encodeProgram(ops []decodedOp, opcodes []OpCode, args []uint64) (int, error) {
    slot := 0
    pos := 0

    for i := range ops {
        d := &ops[i]

        if d.slots == 1 {
            opcodes[slot] = d.op.Code
            pos += encodeOp(&d.op, args, pos)
            slot++
            continue
        }

        // 2-slot op (add2/sub2/mulu2 family plus its reserved NOP).
        if d.split != nil {
            opcodes[slot] = d.split[0].Code
            pos += encodeOp(&d.split[0], args, pos)
            opcodes[slot+1] = d.split[1].Code
            pos += encodeOp(&d.split[1], args, pos)
        } else {
            opcodes[slot] = d.op.Code
            pos += encodeOp(&d.op, args, pos)
            opcodes[slot+1] = OpNop
        }
        slot += 2
    }

    return pos, nil
}

// processOp runs Phases 1 through 5 of §4.E on a single logical operation.
// An opcode outside the pass's known range is opaque front-end-specific
// data (§6): it falls through every phase untouched.
func processOp(ctx *Context, state *State, d *decodedOp, index int) error {
    op := &d.op

    if int(op.Code) >= int(_OpCodeCount) {
        return nil
    }

    substituteInputs(state, op)
    canonicalize(state, op)

    if identitySimplify(state, op) {
        ctx.trace("op %d: %s (identity)", index, op)
    } else if err := foldAndPropagate(ctx, state, d, index); err != nil {
        return err
    } else {
        ctx.trace("op %d: %s", index, op)
    }

    if !d.finalized() {
        narrowOutputZMask(state, d)
    }

    invalidate(ctx, state, d)
    return nil
}

// narrowOutputZMask is the §3.1 partial-constant extension: ext8u/16u/32u
// and and-with-constant only ever clear bits, so even when the operand
// they act on isn't itself constant, their result's known-zero-bit mask
// can be tightened below the all-unknown default invalidate would
// otherwise install. The narrowed mask is stashed on d and consulted by
// invalidate in place of a plain Reset.
func narrowOutputZMask(state *State, d *decodedOp) {
    op := &d.op
    if len(op.Out) != 1 {
        return
    }

    w := op.Code.Info().Width
    var zmask uint64
    var ok bool

    switch op.Code {
        case OpExt8u32, OpExt8u64:
            zmask, ok = zmaskKeepLow(state.ZMask(op.In[0]), 8)&w.mask(), true
        case OpExt16u32, OpExt16u64:
            zmask, ok = zmaskKeepLow(state.ZMask(op.In[0]), 16)&w.mask(), true
        case OpExt32u64:
            zmask, ok = zmaskKeepLow(state.ZMask(op.In[0]), 32)&w.mask(), true

        case OpAnd32, OpAnd64:
            if c, okc := state.IsConst(op.In[1]); okc {
                zmask, ok = (state.ZMask(op.In[0])|(^c))&w.mask(), true
            }
    }

    if ok {
        d.narrowZMask = &zmask
    }
}

// zmaskKeepLow computes the known-zero-bit mask of a zero-extension that
// keeps only the low `bits` bits of a value whose own known-zero mask is
// xZMask: everything above `bits` is definitely zero, and the low bits
// carry over whatever was already known zero below it.
func zmaskKeepLow(xZMask uint64, bits uint) uint64 {
    keep := uint64(1)<<bits - 1
    return ^keep | (xZMask & keep)
}

// substituteInputs is Phase 1: every input temp currently in COPY state is
// replaced by its equivalence class's representative (component C). Output
// temps are never touched here; a call's outputs are excluded by
// construction since op.In holds only its input slots.
func substituteInputs(state *State, op *Op) {
    for i, t := range op.In {
        op.In[i] = state.Representative(t)
    }
}

func isConstT(state *State, t Temp) bool {
    _, ok := state.IsConst(t)
    return ok
}

// canonicalize is Phase 2: commutative families move a lone constant
// operand to the right, comparisons do the same and flip their predicate
// to compensate, and movcond's false arm is canonicalized to already equal
// the destination.
func canonicalize(state *State, op *Op) {
    info := op.Code.Info()

    switch info.Category {
        case CatArith, CatBitwise:
            if info.Commutative {
                canonicalizeBinary(state, op.In, op.Out[0])
            }

        case CatSetcond:
            if canonicalizeBinary(state, op.In, op.Out[0]) {
                op.Cond = op.Cond.Swap()
            }

        case CatBrcond:
            if canonicalizeBinary(state, op.In, ^Temp(0)) {
                op.Cond = op.Cond.Swap()
            }

        case CatMovcond:
            ab := op.In[:2]
            if canonicalizeBinary(state, ab, ^Temp(0)) {
                op.Cond = op.Cond.Swap()
            }
            vt, vf := op.In[2], op.In[3]
            if vt == op.Out[0] && vf != op.Out[0] {
                op.In[2], op.In[3] = vf, vt
                op.Cond = op.Cond.Invert()
            }

        case CatAdd2:
            if op.Code != OpSub2I32 { // sub2 is not commutative; no pair swap
                canonicalizePair(state, op.In, op.Out[0])
            }

        case CatMulu2:
            // mulu2_i32 takes two plain 32-bit inputs (not double-word
            // pairs) and is commutative.
            canonicalizeBinary(state, op.In, op.Out[0])

        case CatSetcond2:
            if canonicalizePair(state, op.In, op.Out[0]) {
                op.Cond = op.Cond.Swap()
            }

        case CatBrcond2:
            if canonicalizePair(state, op.In, ^Temp(0)) {
                op.Cond = op.Cond.Swap()
            }
    }
}

// canonicalizeBinary applies the lone-constant-to-the-right rule, with a
// destination-aliasing tie-break when neither or both operands are
// constant. out0 is the sentinel ^Temp(0) for operations with no output
// (brcond), which disables the tie-break.
func canonicalizeBinary(state *State, in []Temp, out0 Temp) bool {
    c0, c1 := isConstT(state, in[0]), isConstT(state, in[1])
    hasOut := out0 != ^Temp(0)

    swap := false
    switch {
        case c0 && !c1:
            swap = true
        case hasOut && in[1] == out0 && in[0] != out0 && (c0 == c1):
            swap = true
    }

    if swap {
        in[0], in[1] = in[1], in[0]
    }
    return swap
}

// canonicalizePair applies the same rule to a double-word operand pair
// (Xl,Xh,Yl,Yh), treating each half-pair as a single constant-or-not unit.
func canonicalizePair(state *State, in []Temp, out0 Temp) bool {
    xc := isConstT(state, in[0]) && isConstT(state, in[1])
    yc := isConstT(state, in[2]) && isConstT(state, in[3])
    hasOut := out0 != ^Temp(0)

    swap := false
    switch {
        case xc && !yc:
            swap = true
        case hasOut && in[2] == out0 && in[0] != out0 && (xc == yc):
            swap = true
    }

    if swap {
        in[0], in[2] = in[2], in[0]
        in[1], in[3] = in[3], in[1]
    }
    return swap
}

// identitySimplify is Phase 3: algebraic identities that do not require
// BOTH operands to be constant. On a match it rewrites op into a mov,
// movi, or nop shape via emitMovOrNop/emitMovi, which also record the
// resulting state effect (propagation, constant, or reset).
func identitySimplify(state *State, op *Op) bool {
    switch op.Code {
        case OpShl32, OpShl64, OpShr32, OpShr64, OpSar32, OpSar64, OpRotl32, OpRotl64, OpRotr32, OpRotr64:
            if v, ok := state.IsConst(op.In[0]); ok && v == 0 {
                emitMovi(state, op, 0)
                return true
            }
            if v, ok := state.IsConst(op.In[1]); ok && v == 0 {
                emitMovOrNop(state, op, op.In[0])
                return true
            }

        case OpAdd32, OpAdd64:
            if v, ok := state.IsConst(op.In[1]); ok && v == 0 {
                emitMovOrNop(state, op, op.In[0])
                return true
            }

        case OpSub32, OpSub64:
            if v, ok := state.IsConst(op.In[1]); ok && v == 0 {
                emitMovOrNop(state, op, op.In[0])
                return true
            }
            if state.AreCopies(op.In[0], op.In[1]) {
                emitMovi(state, op, 0)
                return true
            }

        case OpOr32, OpOr64:
            if v, ok := state.IsConst(op.In[1]); ok && v == 0 {
                emitMovOrNop(state, op, op.In[0])
                return true
            }
            if state.AreCopies(op.In[0], op.In[1]) {
                emitMovOrNop(state, op, op.In[0])
                return true
            }

        case OpXor32, OpXor64:
            if v, ok := state.IsConst(op.In[1]); ok && v == 0 {
                emitMovOrNop(state, op, op.In[0])
                return true
            }
            if state.AreCopies(op.In[0], op.In[1]) {
                emitMovi(state, op, 0)
                return true
            }

        case OpAnd32, OpAnd64:
            if v, ok := state.IsConst(op.In[1]); ok {
                w := op.Code.Info().Width
                if v == 0 || (state.ZMask(op.In[0])|(^v))&w.mask() == w.mask() {
                    // §4.D.1: either the mask constant is itself zero, or
                    // every bit C leaves set is already known zero in a,
                    // so a & C is statically zero either way.
                    emitMovi(state, op, 0)
                    return true
                }
            }
            if state.AreCopies(op.In[0], op.In[1]) {
                emitMovOrNop(state, op, op.In[0])
                return true
            }

        case OpMul32, OpMul64:
            if v, ok := state.IsConst(op.In[1]); ok && v == 0 {
                emitMovi(state, op, 0)
                return true
            }
    }

    return false
}

// emitMovOrNop rewrites op into a degenerate mov from src, or a nop if op's
// destination is already known equal to src.
func emitMovOrNop(state *State, op *Op, src Temp) {
    if state.AreCopies(op.Out[0], src) {
        dst := op.Out[0]
        *op = Op{Code: OpNop}
        state.Reset(dst)
        return
    }
    dst := op.Out[0]
    *op = Op{Code: OpMov, Out: []Temp{dst}, In: []Temp{src}}
    state.JoinCopy(dst, src)
}

func emitMovi(state *State, op *Op, v uint64) {
    dst := op.Out[0]
    *op = Op{Code: OpMovi, Out: []Temp{dst}, Imm: []uint64{v}}
    state.SetConst(dst, v)
}

// foldAndPropagate is Phase 4: constant folding, copy/constant propagation,
// and conditional short-circuiting, dispatched by category.
func foldAndPropagate(ctx *Context, state *State, d *decodedOp, index int) error {
    op := &d.op
    info := op.Code.Info()

    switch info.Category {
        case CatMove:
            emitMovOrNop(state, op, op.In[0])

        case CatConst:
            state.SetConst(op.Out[0], op.Imm[0])

        case CatUnary:
            if v, ok := state.IsConst(op.In[0]); ok {
                emitMovi(state, op, foldUnary(op.Code, v, info.Width))
            }

        case CatExt:
            if v, ok := state.IsConst(op.In[0]); ok {
                emitMovi(state, op, foldUnary(op.Code, v, info.Width))
            }

        case CatArith, CatBitwise, CatShift:
            vx, okx := state.IsConst(op.In[0])
            vy, oky := state.IsConst(op.In[1])
            if okx && oky {
                emitMovi(state, op, foldBinary(op.Code, vx, vy, info.Width))
            }

        case CatDeposit:
            vb, okb := state.IsConst(op.In[0])
            vv, okv := state.IsConst(op.In[1])
            if okb && okv {
                emitMovi(state, op, foldDeposit(vb, vv, uint(op.Imm[0]), uint(op.Imm[1]), info.Width))
            }

        case CatSetcond:
            if v, ok := foldCond(state, op.In[0], op.In[1], op.Cond, info.Width); ok {
                emitMovi(state, op, boolToWord(v))
            }

        case CatBrcond:
            if v, ok := foldCond(state, op.In[0], op.In[1], op.Cond, info.Width); ok {
                foldBranch(state, op, v)
            }

        case CatMovcond:
            if v, ok := foldCond(state, op.In[0], op.In[1], op.Cond, info.Width); ok {
                src := op.In[3]
                if v {
                    src = op.In[2]
                }
                emitMovOrNop(state, op, src)
            }

        case CatAdd2:
            foldAdd2(state, d)

        case CatMulu2:
            foldMulu2(state, d)

        case CatBrcond2:
            if err := foldBrcond2(state, op); err != nil {
                return fatalf(index, op.Code, "%v", err)
            }

        case CatSetcond2:
            foldSetcond2(state, op)
    }

    return nil
}

// foldCond implements §4.D's short-circuit table for a single-word
// comparison: a fully-constant pair, operands already known equal, or an
// unsigned comparison against a zero right-hand side.
func foldCond(state *State, x, y Temp, c Cond, w Width) (bool, bool) {
    vx, okx := state.IsConst(x)
    vy, oky := state.IsConst(y)
    if okx && oky {
        return evalCond(c, vx, vy, w), true
    }

    if state.AreCopies(x, y) {
        return evalCond(c, 0, 0, w), true
    }

    if oky && vy == 0 {
        switch c {
            case CondLTU:
                return false, true
            case CondGEU:
                return true, true
        }
    }

    return false, false
}

// foldBranch rewrites a brcond that folded to a concrete value v: to an
// unconditional branch (which, via its BB_END metadata, invalidates the
// entire table at Phase 5) if taken, or a nop if not.
func foldBranch(state *State, op *Op, v bool) {
    label := op.Label
    if v {
        *op = Op{Code: OpBr, Label: label}
    } else {
        *op = Op{Code: OpNop}
    }
}

func compose64(lo, hi uint64) uint64 {
    return (lo & 0xffffffff) | (hi << 32)
}

// foldAdd2 folds add2_i32/sub2_i32 when all four input halves are
// constant, splitting the 64-bit result back into low/high movi pairs
// occupying the op's two reserved slots (§9).
func foldAdd2(state *State, d *decodedOp) {
    op := &d.op
    xl, okxl := state.IsConst(op.In[0])
    xh, okxh := state.IsConst(op.In[1])
    yl, okyl := state.IsConst(op.In[2])
    yh, okyh := state.IsConst(op.In[3])

    if !(okxl && okxh && okyl && okyh) {
        return
    }

    x := compose64(xl, xh)
    y := compose64(yl, yh)

    var r uint64
    if op.Code == OpAdd2I32 {
        r = x + y
    } else {
        r = x - y
    }

    rl := r & 0xffffffff
    rh := (r >> 32) & 0xffffffff

    rlT, rhT := op.Out[0], op.Out[1]
    state.SetConst(rlT, rl)
    state.SetConst(rhT, rh)

    d.split = []Op{
        {Code: OpMovi, Out: []Temp{rlT}, Imm: []uint64{rl}},
        {Code: OpMovi, Out: []Temp{rhT}, Imm: []uint64{rh}},
    }
}

// foldMulu2 folds mulu2_i32 when both 32-bit inputs are constant.
func foldMulu2(state *State, d *decodedOp) {
    op := &d.op
    x, okx := state.IsConst(op.In[0])
    y, oky := state.IsConst(op.In[1])

    if !(okx && oky) {
        return
    }

    r := (x & 0xffffffff) * (y & 0xffffffff)
    rl := r & 0xffffffff
    rh := (r >> 32) & 0xffffffff

    rlT, rhT := op.Out[0], op.Out[1]
    state.SetConst(rlT, rl)
    state.SetConst(rhT, rh)

    d.split = []Op{
        {Code: OpMovi, Out: []Temp{rlT}, Imm: []uint64{rl}},
        {Code: OpMovi, Out: []Temp{rhT}, Imm: []uint64{rh}},
    }
}

// foldBrcond2 folds a double-word conditional branch: a fully-constant
// quad, a zero right-hand side (the same LTU/GEU short-circuit as the
// single-word case), or — per §9's high-half collapse — a signed
// comparison against a zero right-hand side, which narrows to a
// single-word brcond over the high halves alone.
func foldBrcond2(state *State, op *Op) error {
    xl, okxl := state.IsConst(op.In[0])
    xh, okxh := state.IsConst(op.In[1])
    yl, okyl := state.IsConst(op.In[2])
    yh, okyh := state.IsConst(op.In[3])

    if okxl && okxh && okyl && okyh {
        v := evalCond(op.Cond, compose64(xl, xh), compose64(yl, yh), W64)
        foldBranch(state, op, v)
        return nil
    }

    yZero := okyl && okyh && yl == 0 && yh == 0
    if yZero {
        switch op.Cond {
            case CondLTU:
                foldBranch(state, op, false)
                return nil
            case CondGEU:
                foldBranch(state, op, true)
                return nil
            case CondLT, CondGE:
                label := op.Label
                cond := op.Cond
                xhT, yhT := op.In[1], op.In[3]
                *op = Op{Code: OpBrcond32, In: []Temp{xhT, yhT}, Cond: cond, Label: label}
                return nil
        }
    }

    return nil
}

// foldSetcond2 mirrors foldBrcond2 for setcond2_i32, whose fully-constant
// and zero-right-hand-side short-circuits produce a movi instead of a
// control-flow rewrite; its high-half collapse produces a single-word
// setcond.
func foldSetcond2(state *State, op *Op) {
    xl, okxl := state.IsConst(op.In[0])
    xh, okxh := state.IsConst(op.In[1])
    yl, okyl := state.IsConst(op.In[2])
    yh, okyh := state.IsConst(op.In[3])

    if okxl && okxh && okyl && okyh {
        v := evalCond(op.Cond, compose64(xl, xh), compose64(yl, yh), W64)
        emitMovi(state, op, boolToWord(v))
        return
    }

    yZero := okyl && okyh && yl == 0 && yh == 0
    if yZero {
        switch op.Cond {
            case CondLTU:
                emitMovi(state, op, 0)
                return
            case CondGEU:
                emitMovi(state, op, 1)
                return
            case CondLT, CondGE:
                dst := op.Out[0]
                cond := op.Cond
                xhT, yhT := op.In[1], op.In[3]
                *op = Op{Code: OpSetcond32, Out: []Temp{dst}, In: []Temp{xhT, yhT}, Cond: cond}
                return
        }
    }
}

// invalidate is Phase 5: every operation not already fully rewritten to
// constants, a copy, or a nop resets its declared output temps; a call
// additionally resets every global unless it is flagged as touching
// neither; and any operation whose FINAL opcode is BB_END-flagged (whether
// statically, or dynamically via a brcond folded to an unconditional
// branch) resets the entire table.
func invalidate(ctx *Context, state *State, d *decodedOp) {
    op := &d.op

    if !d.finalized() {
        for i, t := range op.Out {
            if i == 0 && d.narrowZMask != nil {
                state.ResetWithZMask(t, *d.narrowZMask)
                continue
            }
            state.Reset(t)
        }

        if op.Code == OpCall {
            info := op.Code.Info()
            if !(info.NoReadGlobals && info.NoWriteGlobals) {
                for g := 0; g < ctx.NGlobals; g++ {
                    state.Reset(Temp(g))
                }
            }
        }
    }

    if int(op.Code) < int(_OpCodeCount) && op.Code.Info().IsBasicBlockEnd {
        state.ResetAll()
    }
}
