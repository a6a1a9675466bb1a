package status

import "time"

// Entry is one finished test as shown in reports.
type Entry struct {
	Name     string        `json:"name"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// Summary tallies outcomes by status.
type Summary struct {
	Total    int            `json:"total"`
	Counts   map[Status]int `json:"counts"`
	Duration time.Duration  `json:"duration"`
}

// Summarize computes a Summary over entries.
func Summarize(entries []Entry) Summary {
	s := Summary{
		Total:  len(entries),
		Counts: make(map[Status]int, len(All)),
	}
	for _, e := range entries {
		s.Counts[e.Outcome.Status]++
		s.Duration += e.Duration
	}
	return s
}

// Count returns the number of entries with the given status.
func (s Summary) Count(st Status) int {
	return s.Counts[st]
}

// Failures returns the number of WRONG, GUI_WRONG and CRASHED entries.
func (s Summary) Failures() int {
	n := 0
	for st, c := range s.Counts {
		if st.Failed() {
			n += c
		}
	}
	return n
}

// Failed reports whether any entry failed.
func (s Summary) Failed() bool {
	return s.Failures() > 0
}
