package scorer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Mode selects how a sequence is scored.
type Mode int

const (
	ModeStatic Mode = iota
	ModeExecuted
)

// String returns the flag spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeExecuted:
		return "executed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "static" or "executed".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "":
		return ModeStatic, nil
	case "executed", "exec":
		return ModeExecuted, nil
	}
	return 0, fmt.Errorf("unknown scoring mode %q (want static or executed)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// QualityRecord is the score of one sequence. Only the tagged fields make
// up the //<Quality> header; the rest is bookkeeping for the curator.
type QualityRecord struct {
	Density        float64          `json:"density"`
	UniqueBranches map[string][]int `json:"unique_branches"`
	LibraryCalls   []string         `json:"library_calls"`
	CriticalCalls  []string         `json:"critical_calls"`
	Visited        int              `json:"visited"`

	Mode Mode `json:"-"`
	// Unmeasured is set when executed scoring could not produce coverage.
	Unmeasured bool `json:"-"`
	// Crash is the crash signature of an executed run, empty otherwise.
	Crash string `json:"-"`
}

func newRecord(mode Mode) *QualityRecord {
	return &QualityRecord{
		UniqueBranches: map[string][]int{},
		LibraryCalls:   []string{},
		CriticalCalls:  []string{},
		Mode:           mode,
	}
}

// NrUniqueBranch is the number of distinct branches reached.
func (q *QualityRecord) NrUniqueBranch() int {
	n := 0
	for _, ids := range q.UniqueBranches {
		n += len(ids)
	}
	return n
}

// Score is the density as a percentage, the integer of the //<score>
// header line.
func (q *QualityRecord) Score() int {
	return int(math.Round(q.Density * 100))
}

// JSON renders the header object. The output is byte-identical for equal
// records: map keys are sorted by encoding/json and every list is sorted
// when the record is built.
func (q *QualityRecord) JSON() ([]byte, error) {
	return json.Marshal(q)
}

func roundDensity(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*1e4) / 1e4
}
