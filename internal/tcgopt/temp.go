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

// Temp is a non-negative index into the enclosing translation context's
// temp table.
type Temp uint32

func (t Temp) String() string {
    return fmt.Sprintf("t%d", uint32(t))
}

// TempClass classifies a Temp the way the front-end translator does; the
// optimizer consults it but never mutates it.
type TempClass uint8

const (
    ClassOrdinary TempClass = iota
    ClassLocal
    ClassGlobal
)

// Context is the read-only descriptor the caller provides: how many temps
// and globals exist, each temp's class and declared width, and an optional
// trace hook for per-rewrite diagnostics (§2.1 of the expanded spec).
type Context struct {
    NTemps   int
    NGlobals int
    Class    []TempClass
    Width    []Width

    // Trace, if non-nil, is called once per surviving or rewritten
    // operation with a human-readable description. It never affects
    // optimizer behavior.
    Trace func(format string, args ...interface{})
}

func (c *Context) trace(format string, args ...interface{}) {
    if c.Trace != nil {
        c.Trace(format, args...)
    }
}

// IsGlobal reports whether t represents architectural processor state.
func (c *Context) IsGlobal(t Temp) bool {
    return int(t) < c.NGlobals
}

// IsLocal reports whether t survives across basic blocks within the
// translation unit but no further. Globals are never local.
func (c *Context) IsLocal(t Temp) bool {
    if c.IsGlobal(t) {
        return false
    }
    return c.Class[t] == ClassLocal
}

func (c *Context) width(t Temp) Width {
    return c.Width[t]
}

func (c *Context) validate() error {
    if c.NGlobals < 0 || c.NGlobals > c.NTemps {
        return fmt.Errorf("tcgopt: invalid context: %d globals out of %d temps", c.NGlobals, c.NTemps)
    }
    if len(c.Class) != c.NTemps || len(c.Width) != c.NTemps {
        return fmt.Errorf("tcgopt: invalid context: class/width tables must have length %d", c.NTemps)
    }
    for i, w := range c.Width {
        if !w.valid() {
            return fmt.Errorf("tcgopt: temp %d has invalid width %d", i, w)
        }
    }
    return nil
}
