// Copyright 2025 Poiesic Systems
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

package search

import (
	"bytes"
	"fmt"
	"regexp"
	"regexp/syntax"

	"github.com/poiesic/trigrep/core"
	"github.com/poiesic/trigrep/index"
)

// Pattern is a parsed query. A plain literal verifies with a byte scan; a
// regular expression verifies with the compiled matcher. Either way the
// planner only sees the pattern's required literal, the fragment every
// match must contain.
type Pattern struct {
	raw      string
	literal  []byte
	re       *regexp.Regexp
	foldCase bool
}

// ParseLiteral builds a pattern that matches text exactly. foldCase must
// mirror the snapshot's FoldCase flag so the planner's trigrams line up
// with the indexed ones.
func ParseLiteral(text string, foldCase bool) (*Pattern, error) {
	if text == "" {
		return nil, ErrEmptyPattern
	}
	literal := []byte(text)
	if foldCase {
		literal = core.FoldASCII(literal)
	}
	return &Pattern{raw: text, literal: literal, foldCase: foldCase}, nil
}

// ParseRegexp builds a pattern from a regular expression. The planner uses
// whatever required literal can be extracted from the expression; an
// expression with no required literal falls back to a full scan.
func ParseRegexp(expr string, foldCase bool) (*Pattern, error) {
	if expr == "" {
		return nil, ErrEmptyPattern
	}
	parsed, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}

	compileExpr := expr
	if foldCase {
		compileExpr = "(?i:" + expr + ")"
	}
	re, err := regexp.Compile(compileExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}

	literal := requiredLiteral(parsed, foldCase)
	if foldCase {
		literal = core.FoldASCII(literal)
	}
	return &Pattern{raw: expr, literal: literal, re: re, foldCase: foldCase}, nil
}

// requiredLiteral extracts the longest literal fragment every match of the
// expression must contain. Returns nil when no fragment is guaranteed.
// Case-insensitive fragments only count when the index folds case too.
func requiredLiteral(re *syntax.Regexp, foldCase bool) []byte {
	switch re.Op {
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 && !foldCase {
			return nil
		}
		return []byte(string(re.Rune))
	case syntax.OpCapture, syntax.OpPlus:
		return requiredLiteral(re.Sub[0], foldCase)
	case syntax.OpConcat:
		var best []byte
		for _, sub := range re.Sub {
			if lit := requiredLiteral(sub, foldCase); len(lit) > len(best) {
				best = lit
			}
		}
		return best
	default:
		return nil
	}
}

// Trigrams returns the trigrams of the required literal, deduplicated.
// Empty when the literal is shorter than a trigram.
func (p *Pattern) Trigrams() []core.Trigram {
	return index.UniqueTrigrams(p.literal)
}

// IsRegexp reports whether the pattern verifies with a regular expression.
func (p *Pattern) IsRegexp() bool {
	return p.re != nil
}

// Len returns the pattern length in bytes, used as a ranking weight.
func (p *Pattern) Len() int {
	return len(p.raw)
}

func (p *Pattern) String() string {
	return p.raw
}

// FindAll returns the byte offsets of every occurrence of the pattern in
// content, non-overlapping, in increasing order.
func (p *Pattern) FindAll(content []byte) []int {
	if p.re != nil {
		pairs := p.re.FindAllIndex(content, -1)
		if len(pairs) == 0 {
			return nil
		}
		offsets := make([]int, len(pairs))
		for i, pair := range pairs {
			offsets[i] = pair[0]
		}
		return offsets
	}

	haystack := content
	if p.foldCase {
		haystack = core.FoldASCII(content)
	}
	var offsets []int
	for start := 0; ; {
		i := bytes.Index(haystack[start:], p.literal)
		if i < 0 {
			break
		}
		offsets = append(offsets, start+i)
		start += i + len(p.literal)
	}
	return offsets
}
