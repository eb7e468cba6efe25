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

// Package tcgopt implements a single-pass, per-basic-block optimizer for a
// linear stream of three-address intermediate operations produced by a
// front-end translator. It propagates constants and copies, folds constant
// expressions, and applies local algebraic simplifications before the
// stream reaches a register allocator.
//
// The pass never looks across basic-block boundaries and performs no
// alias analysis: it is deliberately narrow in scope, trading global
// optimality for a bounded, single-scan cost model.
package tcgopt
