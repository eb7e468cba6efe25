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

// FatalError reports a front-end bug found in the operation stream:
// Optimize returns one when an add2/sub2/mulu2 operation lacks its
// reserved NOP slot (§7). It always identifies the offending opcode's
// slot index in the input stream. A malformed Context or a truncated
// argument stream is reported as a plain error instead, and internal
// invariant violations (a missing fold-table entry, a corrupted ring)
// panic rather than producing a FatalError.
type FatalError struct {
    OpIndex int
    Op      OpCode
    Reason  string
}

func (e *FatalError) Error() string {
    return fmt.Sprintf("tcgopt: fatal error at operation %d (%s): %s", e.OpIndex, e.Op, e.Reason)
}

func fatalf(index int, op OpCode, format string, args ...interface{}) error {
    return &FatalError{OpIndex: index, Op: op, Reason: fmt.Sprintf(format, args...)}
}
