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

    gofakeit "github.com/brianvoe/gofakeit/v6"
    "github.com/davecgh/go-spew/spew"
    "github.com/stretchr/testify/require"
)

// program is a small builder for the opcodes/args pair §6 describes,
// used to keep the scenario tests in driver_test.go close to the
// "ops; args" notation they're transcribed from.
type program struct {
    opcodes []OpCode
    args    []uint64
}

func (p *program) movi(t Temp, v uint64) *program {
    p.opcodes = append(p.opcodes, OpMovi)
    p.args = append(p.args, uint64(t), v)
    return p
}

func (p *program) mov(dst, src Temp) *program {
    p.opcodes = append(p.opcodes, OpMov)
    p.args = append(p.args, uint64(dst), uint64(src))
    return p
}

func (p *program) binary(code OpCode, dst, a, b Temp) *program {
    p.opcodes = append(p.opcodes, code)
    p.args = append(p.args, uint64(dst), uint64(a), uint64(b))
    return p
}

func (p *program) unary(code OpCode, dst, src Temp) *program {
    p.opcodes = append(p.opcodes, code)
    p.args = append(p.args, uint64(dst), uint64(src))
    return p
}

func (p *program) brcond(a, b Temp, c Cond, label int64) *program {
    p.opcodes = append(p.opcodes, OpBrcond32)
    p.args = append(p.args, uint64(a), uint64(b), uint64(c), uint64(label))
    return p
}

func (p *program) brcond2(al, ah, tl, th Temp, c Cond, label int64) *program {
    p.opcodes = append(p.opcodes, OpBrcond2I32)
    p.args = append(p.args, uint64(al), uint64(ah), uint64(tl), uint64(th), uint64(c), uint64(label))
    return p
}

func runOptimize(t *testing.T, nTemps int, p *program) (*Context, *program) {
    t.Helper()
    ctx := newTestContext(nTemps, 0)

    n, err := Optimize(ctx, p.opcodes, p.args)
    require.NoError(t, err)

    return ctx, &program{opcodes: p.opcodes, args: p.args[:n]}
}

func TestScenarioConstantFoldAdd(t *testing.T) {
    p := (&program{}).movi(1, 5).movi(2, 7).binary(OpAdd32, 3, 1, 2)
    _, out := runOptimize(t, 4, p)

    require.Equal(t, []OpCode{OpMovi, OpMovi, OpMovi}, out.opcodes)
    require.Equal(t, []uint64{1, 5, 2, 7, 3, 12}, out.args)
}

func TestScenarioCopyPropagationAndSelfXor(t *testing.T) {
    p := (&program{}).mov(1, 0).mov(2, 1).binary(OpXor32, 3, 2, 0)
    _, out := runOptimize(t, 4, p)

    require.Equal(t, []OpCode{OpMov, OpMov, OpMovi}, out.opcodes)
    require.Equal(t, []uint64{1, 0, 2, 0, 3, 0}, out.args, spew.Sdump(out))
}

func TestScenarioAddZeroBecomesMov(t *testing.T) {
    p := (&program{}).movi(1, 0).binary(OpAdd32, 2, 0, 1)
    _, out := runOptimize(t, 3, p)

    require.Equal(t, []OpCode{OpMovi, OpMov}, out.opcodes)
    require.Equal(t, []uint64{1, 0, 2, 0}, out.args)
}

func TestScenarioBrcondFoldsToUnconditionalBranch(t *testing.T) {
    p := (&program{}).movi(1, 10).brcond(1, 1, CondEQ, 42)
    _, out := runOptimize(t, 2, p)

    require.Equal(t, []OpCode{OpMovi, OpBr}, out.opcodes)
    require.Equal(t, []uint64{1, 10, 42}, out.args)
}

func TestScenarioShiftByConstantLeftOperandFolds(t *testing.T) {
    p := (&program{}).movi(1, 3).binary(OpShl32, 2, 1, 1)
    _, out := runOptimize(t, 3, p)

    require.Equal(t, []OpCode{OpMovi, OpMovi}, out.opcodes)
    require.Equal(t, []uint64{1, 3, 2, 24}, out.args)
}

// TestScenarioAndFoldsToZeroViaZMask exercises §3.1/§4.D.1: ext8u32 never
// sets any bit above its low byte, so and-ing the result against a mask
// confined to the high three bytes is statically zero even though t1 never
// becomes a CONST itself (t0 stays UNDEF throughout).
func TestScenarioAndFoldsToZeroViaZMask(t *testing.T) {
    p := (&program{}).unary(OpExt8u32, 1, 0).movi(2, 0xff00).binary(OpAnd32, 3, 1, 2)
    _, out := runOptimize(t, 4, p)

    require.Equal(t, []OpCode{OpExt8u32, OpMovi, OpMovi}, out.opcodes)
    require.Equal(t, []uint64{1, 0, 2, 0xff00, 3, 0}, out.args)
}

func TestScenarioBrcond2CollapsesToHighWordCompare(t *testing.T) {
    // al=0 (ordinary), ah=1 (ordinary), tl=2, th=3, constant-zero RHS.
    p := (&program{}).movi(2, 0).movi(3, 0).brcond2(0, 1, 2, 3, CondLT, 7)
    _, out := runOptimize(t, 4, p)

    require.Equal(t, []OpCode{OpMovi, OpMovi, OpBrcond32}, out.opcodes)
    require.Equal(t, []uint64{2, 0, 3, 0, 1, 3, uint64(CondLT), 7}, out.args)
}

func TestScenarioUnconditionalNoReturnsErrorOnMissingAdd2Slot(t *testing.T) {
    // add2_i32 without its reserved NOP slot is a front-end bug.
    p := &program{
        opcodes: []OpCode{OpAdd2I32, OpNop},
        args:    []uint64{0, 1, 2, 3, 4, 5},
    }
    p.opcodes[1] = OpMov // corrupt the reserved slot

    ctx := newTestContext(8, 0)
    _, err := Optimize(ctx, p.opcodes, []uint64{0, 1, 2, 3, 4, 5, 2, 3})
    require.Error(t, err)

    var fatal *FatalError
    require.ErrorAs(t, err, &fatal)
}

func TestZMaskKeepLowMasksAboveGivenBitCount(t *testing.T) {
    require.Equal(t, uint64(0xffffff00), zmaskKeepLow(0, 8))
    require.Equal(t, uint64(0xffffff80), zmaskKeepLow(0x80, 8), "known-zero bits below the cut stay known zero")
}

func TestNarrowOutputZMaskNarrowsOnExt8u(t *testing.T) {
    ctx := newTestContext(2, 0)
    s := NewState(ctx)

    d := &decodedOp{op: Op{Code: OpExt8u32, Out: []Temp{1}, In: []Temp{0}}}
    narrowOutputZMask(s, d)

    require.NotNil(t, d.narrowZMask)
    require.Equal(t, uint64(0xffffff00), *d.narrowZMask)
}

func TestNarrowOutputZMaskNarrowsOnAndWithConstant(t *testing.T) {
    ctx := newTestContext(3, 0)
    s := NewState(ctx)
    s.SetConst(1, 0x0f)

    d := &decodedOp{op: Op{Code: OpAnd32, Out: []Temp{2}, In: []Temp{0, 1}}}
    narrowOutputZMask(s, d)

    require.NotNil(t, d.narrowZMask)
    require.Equal(t, uint64(0xfffffff0), *d.narrowZMask)
}

func TestNarrowOutputZMaskSkipsNonNarrowingOps(t *testing.T) {
    ctx := newTestContext(2, 0)
    s := NewState(ctx)

    d := &decodedOp{op: Op{Code: OpAdd32, Out: []Temp{1}, In: []Temp{0, 0}}}
    narrowOutputZMask(s, d)

    require.Nil(t, d.narrowZMask)
}

func TestScenarioAdd2FoldsBothHalves(t *testing.T) {
    ctx := newTestContext(8, 0)
    opcodes := []OpCode{OpMovi, OpMovi, OpMovi, OpMovi, OpAdd2I32, OpNop}
    args := []uint64{
        0, 1, // movi t0, 1 (xl)
        1, 0, // movi t1, 0 (xh)
        2, 2, // movi t2, 2 (yl)
        3, 0, // movi t3, 0 (yh)
        4, 5, 0, 1, 2, 3, // add2_i32 t4, t5, t0, t1, t2, t3
    }

    n, err := Optimize(ctx, opcodes, args)
    require.NoError(t, err)

    require.Equal(t, []OpCode{OpMovi, OpMovi, OpMovi, OpMovi, OpMovi, OpMovi}, opcodes)
    require.Equal(t, []uint64{0, 1, 1, 0, 2, 2, 3, 0, 4, 3, 5, 0}, args[:n])
}

// TestOptimizeIsIdempotent checks the §8 law that re-running the pass on
// its own output changes nothing further, across randomly generated
// straight-line constant/arithmetic chains.
func TestOptimizeIsIdempotent(t *testing.T) {
    faker := gofakeit.New(1)
    codes := []OpCode{OpAdd32, OpSub32, OpAnd32, OpOr32, OpXor32, OpMul32}

    for iter := 0; iter < 50; iter++ {
        const nTemps = 6
        ctx := newTestContext(nTemps, 0)

        opcodes := make([]OpCode, 0, nTemps)
        args := make([]uint64, 0, nTemps*3)

        for i := 0; i < nTemps; i++ {
            if faker.Bool() {
                opcodes = append(opcodes, OpMovi)
                args = append(args, uint64(i), uint64(faker.Uint32()))
            } else {
                code := codes[faker.Number(0, len(codes)-1)]
                a := Temp(faker.Number(0, i))
                b := Temp(faker.Number(0, i))
                opcodes = append(opcodes, code)
                args = append(args, uint64(i), uint64(a), uint64(b))
            }
        }

        firstOpcodes := append([]OpCode(nil), opcodes...)
        firstArgs := append([]uint64(nil), args...)

        n1, err := Optimize(ctx, firstOpcodes, firstArgs)
        require.NoError(t, err)

        secondOpcodes := append([]OpCode(nil), firstOpcodes...)
        secondArgs := append([]uint64(nil), firstArgs[:n1]...)

        n2, err := Optimize(ctx, secondOpcodes, secondArgs)
        require.NoError(t, err)

        require.Equal(t, firstOpcodes, secondOpcodes, "iteration %d: opcodes changed on re-optimization", iter)
        require.Equal(t, firstArgs[:n1], secondArgs[:n2], "iteration %d: args changed on re-optimization", iter)
    }
}
