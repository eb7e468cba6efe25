// Copyright 2024 The tcgopt Authors
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

package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	gofakeit "github.com/brianvoe/gofakeit/v6"
	"gonum.org/v1/gonum/stat"

	"github.com/tcgopt/tcgopt/internal/tcgopt"
)

var (
	Runs    int
	OpsLow  int
	OpsHigh int
	Seed    int64
)

func init() {
	flag.IntVar(&Runs, "runs", 200, "number of synthetic translation units to generate")
	flag.IntVar(&OpsLow, "ops-low", 8, "minimum operations per generated unit")
	flag.IntVar(&OpsHigh, "ops-high", 64, "maximum operations per generated unit")
	flag.Int64Var(&Seed, "seed", 1, "PRNG seed, for reproducible runs")
}

// generator builds a random, structurally valid operation stream: each
// opcode is drawn from a small fixed palette of foldable/propagatable
// shapes (movi and the 32-bit binary ops below), with enough constant
// loads mixed in that a meaningful fraction of the stream collapses under
// optimization. No mov operations are generated; copies appear only where
// the optimizer itself rewrites an operation into one.
type generator struct {
	faker *gofakeit.Faker
	ctx   *tcgopt.Context
}

func newGenerator(seed int64, nTemps int) *generator {
	class := make([]tcgopt.TempClass, nTemps)
	width := make([]tcgopt.Width, nTemps)
	for i := range width {
		width[i] = tcgopt.W32
	}

	return &generator{
		faker: gofakeit.New(seed),
		ctx: &tcgopt.Context{
			NTemps:   nTemps,
			NGlobals: nTemps / 4,
			Class:    class,
			Width:    width,
		},
	}
}

var binaryOps = []tcgopt.OpCode{
	tcgopt.OpAdd32, tcgopt.OpSub32, tcgopt.OpMul32,
	tcgopt.OpAnd32, tcgopt.OpOr32, tcgopt.OpXor32,
}

// sample produces one random operation stream as a (opcodes, args) pair
// ready for tcgopt.Optimize; about half of its operations are movi, so a
// nontrivial share of the stream is expected to fold.
func (g *generator) sample(n int) ([]tcgopt.OpCode, []uint64) {
	opcodes := make([]tcgopt.OpCode, 0, n)
	args := make([]uint64, 0, n*3)
	nTemps := g.ctx.NTemps

	for i := 0; i < n; i++ {
		switch {
		case g.faker.Bool():
			// movi r, <const>
			opcodes = append(opcodes, tcgopt.OpMovi)
			args = append(args, uint64(g.faker.Uint32())%uint64(nTemps), uint64(g.faker.Uint32()))

		default:
			code := binaryOps[rand.Intn(len(binaryOps))]
			opcodes = append(opcodes, code)
			args = append(args,
				uint64(g.faker.Uint32())%uint64(nTemps),
				uint64(g.faker.Uint32())%uint64(nTemps),
				uint64(g.faker.Uint32())%uint64(nTemps),
			)
		}
	}

	return opcodes, args
}

func main() {
	flag.Parse()
	rand.Seed(Seed)
	gofakeit.Seed(Seed)

	var rates []float64

	for i := 0; i < Runs; i++ {
		n := OpsLow + rand.Intn(OpsHigh-OpsLow+1)
		g := newGenerator(Seed+int64(i), 32)
		opcodes, args := g.sample(n)

		before := countSurviving(opcodes)

		if _, err := tcgopt.Optimize(g.ctx, opcodes, args); err != nil {
			log.Fatalf("run %d: optimize: %v", i, err)
		}

		after := countSurviving(opcodes)
		rates = append(rates, 1-float64(after)/float64(before))
	}

	mean := stat.Mean(rates, nil)
	stddev := stat.StdDev(rates, nil)

	fmt.Printf("runs=%d elimination-rate mean=%.4f stddev=%.4f\n", Runs, mean, stddev)
}

func countSurviving(opcodes []tcgopt.OpCode) int {
	n := 0
	for _, c := range opcodes {
		if c != tcgopt.OpNop {
			n++
		}
	}
	return n
}
