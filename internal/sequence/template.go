package sequence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/seedgrid/internal/catalogue"
)

// Template is the per-phase call-count plan a sequence follows.
type Template struct {
	Counts [4]int
}

// DefaultTemplate is the plan observed across the seed corpus.
var DefaultTemplate = Template{Counts: [4]int{2, 2, 2, 1}}

// ParseTemplate reads a plan such as "Init:2,Configure:2,Operate:2,Cleanup:1".
// Phases may be given in any order and omitted phases get a count of zero,
// except Cleanup which is always present. A plan must call Init at least once.
func ParseTemplate(s string) (Template, error) {
	t, err := parseCounts(s)
	if err != nil {
		return t, err
	}
	if t.Counts[catalogue.PhaseInit] == 0 {
		return t, fmt.Errorf("phase template: Init needs at least one call")
	}
	return t, nil
}

// parseCounts reads the textual form without judging the plan, so every
// template String produces decodes again.
func parseCounts(s string) (Template, error) {
	var t Template
	seen := make(map[catalogue.Phase]bool)
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return t, fmt.Errorf("empty phase template")
	}
	for _, part := range strings.Split(s, ",") {
		name, count, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return t, fmt.Errorf("phase template entry %q is not <Phase>:<count>", part)
		}
		phase, err := catalogue.ParsePhase(name)
		if err != nil {
			return t, fmt.Errorf("phase template: %w", err)
		}
		if seen[phase] {
			return t, fmt.Errorf("phase template: %s listed twice", phase)
		}
		seen[phase] = true
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return t, fmt.Errorf("phase template: invalid count %q for %s", count, phase)
		}
		t.Counts[phase] = n
	}
	return t, nil
}

// Count returns the planned number of calls in phase p.
func (t Template) Count(p catalogue.Phase) int { return t.Counts[p] }

func (t Template) String() string {
	parts := make([]string, 0, len(catalogue.Phases))
	for _, p := range catalogue.Phases {
		parts = append(parts, fmt.Sprintf("%s:%d", p, t.Counts[p]))
	}
	return strings.Join(parts, ",")
}

// MarshalText encodes the template in its textual form.
func (t Template) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a textual template. It accepts anything MarshalText
// emits, including plans ParseTemplate would refuse.
func (t *Template) UnmarshalText(b []byte) error {
	parsed, err := parseCounts(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Cursor walks a template one call at a time. It is the explicit phase
// state machine: the phase only ever advances, and Cleanup is always last.
type Cursor struct {
	tmpl  Template
	phase catalogue.Phase
	used  int
}

// NewCursor starts at the first call of Init.
func NewCursor(t Template) *Cursor {
	c := &Cursor{tmpl: t, phase: catalogue.PhaseInit}
	for c.phase < catalogue.PhaseCleanup && t.Counts[c.phase] == 0 {
		c.phase++
	}
	return c
}

// Phase returns the phase the next call belongs to.
func (c *Cursor) Phase() catalogue.Phase { return c.phase }

// Remaining returns how many calls are still planned in the current phase.
func (c *Cursor) Remaining() int { return c.tmpl.Counts[c.phase] - c.used }

// Advance records one emitted call and moves to the next phase once the
// current one is exhausted. It never leaves Cleanup.
func (c *Cursor) Advance() {
	c.used++
	for c.phase < catalogue.PhaseCleanup && c.used >= c.tmpl.Counts[c.phase] {
		c.phase++
		c.used = 0
	}
}

// Close jumps straight to Cleanup.
func (c *Cursor) Close() {
	c.phase = catalogue.PhaseCleanup
	c.used = 0
}
