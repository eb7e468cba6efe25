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

    `golang.org/x/exp/slices`
)

type tag uint8

const (
    tagUndef tag = iota
    tagConst
    tagCopy
)

// tempState is one row of the per-temp state table (component B). prev and
// next are arena indices into the same table, not pointers: per the design
// notes, true pointer cycles would obstruct ownership reasoning for no
// benefit over array indices.
type tempState struct {
    tag   tag
    val   uint64 // valid iff tag == tagConst
    zmask uint64 // bits known to be zero, masked to the temp's declared width; valid regardless of tag
    prev  Temp   // valid iff tag == tagCopy
    next  Temp   // valid iff tag == tagCopy
}

// State is the temp state table, allocated fresh per pass invocation and
// discarded at pass exit (§5).
type State struct {
    ctx   *Context
    temps []tempState
}

// NewState allocates a zero-initialized (all UNDEF) state table for ctx.
func NewState(ctx *Context) *State {
    s := &State{ctx: ctx, temps: make([]tempState, ctx.NTemps)}
    s.ResetAll()
    return s
}

// ResetAll resets every temp to UNDEF; invoked at pass entry, between basic
// blocks, and whenever a BB_END opcode is processed (invariant 5).
func (s *State) ResetAll() {
    for t := range s.temps {
        s.temps[t] = tempState{prev: Temp(t), next: Temp(t), zmask: 0}
    }
}

// detach removes t from its ring, repairing the mates' links. Detaching a
// size-2 ring leaves the surviving mate as a self-loop, which must then
// also collapse to UNDEF per invariant 4's singleton corollary.
func (s *State) detach(t Temp) {
    row := &s.temps[t]

    if row.tag != tagCopy {
        return
    }

    p, n := row.prev, row.next

    if p == t {
        // singleton ring; nothing else references it
        return
    }

    s.temps[p].next = n
    s.temps[n].prev = p

    if p == n {
        surv := &s.temps[p]
        surv.tag = tagUndef
        surv.prev, surv.next = p, p
        surv.zmask = 0
    }
}

// Reset detaches t from any ring it belongs to and sets it to UNDEF.
func (s *State) Reset(t Temp) {
    s.detach(t)
    s.temps[t] = tempState{prev: t, next: t, zmask: 0}
}

// SetConst records that t holds the literal value v, masked to t's
// declared width.
func (s *State) SetConst(t Temp, v uint64) {
    s.Reset(t)
    w := s.ctx.width(t)
    mv := v & w.mask()
    s.temps[t].tag = tagConst
    s.temps[t].val = mv
    s.temps[t].zmask = (^mv) & w.mask()
}

// JoinCopy records that dst now holds the same value as src. dst is reset
// first in either case; the join is then refused (the move must still be
// emitted by the caller, but no copy relation is recorded and dst stays
// UNDEF) when dst and src have different declared widths.
func (s *State) JoinCopy(dst, src Temp) bool {
    s.Reset(dst)

    if s.ctx.width(dst) != s.ctx.width(src) {
        return false
    }

    if s.temps[src].tag != tagCopy {
        s.temps[src].tag = tagCopy
        s.temps[src].prev = src
        s.temps[src].next = src
    }

    n := s.temps[src].next
    s.temps[src].next = dst
    s.temps[dst].prev = src
    s.temps[dst].next = n
    s.temps[n].prev = dst
    s.temps[dst].tag = tagCopy
    s.temps[dst].zmask = s.temps[src].zmask
    return true
}

// AreCopies reports whether a and b are known to hold the same value,
// either because they are literally the same temp or because both belong
// to the same copy-equivalence ring.
func (s *State) AreCopies(a, b Temp) bool {
    if a == b {
        return true
    }

    if s.temps[a].tag != tagCopy || s.temps[b].tag != tagCopy {
        return false
    }

    for cur := s.temps[a].next; cur != a; cur = s.temps[cur].next {
        if cur == b {
            return true
        }
    }

    return false
}

// IsConst reports whether t is known to hold the constant value v (also
// returned, masked to t's declared width).
func (s *State) IsConst(t Temp) (v uint64, ok bool) {
    row := &s.temps[t]
    return row.val, row.tag == tagConst
}

// ZMask returns the bits of t that are known to be zero, regardless of
// whether t is otherwise tracked as CONST, COPY, or UNDEF (§3.1 partial
// constant extension).
func (s *State) ZMask(t Temp) uint64 {
    return s.temps[t].zmask
}

// ResetWithZMask resets t to UNDEF like Reset, but installs zmask as t's
// known-zero-bits mask instead of the all-bits-unknown default. Used by
// ops that only ever clear bits (ext8u/16u/32u, and-with-constant) to
// keep propagating that knowledge past a result that does not fold all
// the way to a constant (§3.1).
func (s *State) ResetWithZMask(t Temp, zmask uint64) {
    s.Reset(t)
    s.temps[t].zmask = zmask
}

// Representative chooses the canonical member of t's equivalence class per
// component C's priority order: the temp itself if it is global; else the
// first global ring member; else, if t is not itself local, the first
// local ring member; else the lowest-numbered ring member, a deterministic
// tiebreak for the all-ordinary case the source leaves unspecified. Ring
// members are visited by following next pointers from t; since JoinCopy
// splices each new member directly after its source, this walk is not the
// order in which members joined.
func (s *State) Representative(t Temp) Temp {
    if s.ctx.IsGlobal(t) {
        return t
    }

    if s.temps[t].tag != tagCopy {
        return t
    }

    var firstGlobal, firstLocal Temp
    haveGlobal, haveLocal := false, false
    min := t

    for cur := t; ; {
        if s.ctx.IsGlobal(cur) && !haveGlobal {
            firstGlobal, haveGlobal = cur, true
        }
        if s.ctx.IsLocal(cur) && !haveLocal {
            firstLocal, haveLocal = cur, true
        }
        if cur < min {
            min = cur
        }

        cur = s.temps[cur].next
        if cur == t {
            break
        }
    }

    switch {
        case haveGlobal:
            return firstGlobal
        case !s.ctx.IsLocal(t) && haveLocal:
            return firstLocal
        default:
            return min
    }
}

// checkRingSymmetry is a debug-build invariant check (§7): a corrupted
// ring (asymmetric prev/next, or a COPY temp that cannot walk back to
// itself) is a fatal internal error, never a user-visible one, so it
// panics exactly like the teacher's own internal-consistency checks do
// (`pass_constprop.go`'s `panic(fmt.Sprintf(...))` on invariant violations)
// rather than returning an error for the caller to route around.
func (s *State) checkRingSymmetry() {
    for t := range s.temps {
        row := &s.temps[t]

        if row.tag != tagCopy {
            continue
        }

        if s.temps[row.next].prev != Temp(t) {
            panic(fmt.Sprintf("tcgopt: ring asymmetry at temp %d: next(%d).prev != %d", t, row.next, t))
        }
        if s.temps[row.prev].next != Temp(t) {
            panic(fmt.Sprintf("tcgopt: ring asymmetry at temp %d: prev(%d).next != %d", t, row.prev, t))
        }

        seen := make([]Temp, 0, 4)
        cur := Temp(t)

        for steps := 0; ; steps++ {
            if steps > len(s.temps) {
                panic(fmt.Sprintf("tcgopt: ring at temp %d does not close after %d steps", t, steps))
            }
            if s.temps[cur].tag != tagCopy {
                panic(fmt.Sprintf("tcgopt: ring at temp %d visits non-COPY temp %d", t, cur))
            }
            if slices.Contains(seen, cur) && cur != Temp(t) {
                panic(fmt.Sprintf("tcgopt: ring at temp %d revisits temp %d before closing", t, cur))
            }
            seen = append(seen, cur)
            cur = s.temps[cur].next
            if cur == Temp(t) {
                break
            }
        }
    }
}
