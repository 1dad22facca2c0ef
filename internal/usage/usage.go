package usage

import "sync"

// gramsPerThousandTokens is the CO2 estimate applied to every 1k tokens.
const gramsPerThousandTokens = 0.2

// Usage is the token count reported by a single model call.
type Usage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Add returns the component-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		Input:  u.Input + o.Input,
		Output: u.Output + o.Output,
		Total:  u.Total + o.Total,
	}
}

// IsZero reports whether no tokens were counted.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// Sum adds any number of usages.
func Sum(us ...Usage) Usage {
	var total Usage
	for _, u := range us {
		total = total.Add(u)
	}
	return total
}

// CO2Grams estimates the emissions for a token total.
func CO2Grams(totalTokens int) float64 {
	return float64(totalTokens) / 1000 * gramsPerThousandTokens
}

// Entry is one line of the per-stage ledger.
type Entry struct {
	Stage string `json:"stage"`
	Usage Usage  `json:"usage"`
}

// Accumulator keeps the running session total.
type Accumulator struct {
	mu     sync.Mutex
	total  Usage
	ledger []Entry
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add records the usage of one stage.
func (a *Accumulator) Add(stage string, u Usage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = a.total.Add(u)
	a.ledger = append(a.ledger, Entry{Stage: stage, Usage: u})
}

// Total returns the running sum.
func (a *Accumulator) Total() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// CO2Grams returns the estimate for the running total.
func (a *Accumulator) CO2Grams() float64 {
	return CO2Grams(a.Total().Total)
}

// Breakdown returns the ledger grouped by stage, in first-seen order.
func (a *Accumulator) Breakdown() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	index := make(map[string]int)
	var out []Entry
	for _, e := range a.ledger {
		if i, ok := index[e.Stage]; ok {
			out[i].Usage = out[i].Usage.Add(e.Usage)
			continue
		}
		index[e.Stage] = len(out)
		out = append(out, e)
	}
	return out
}

// Ledger returns a copy of the raw entries.
func (a *Accumulator) Ledger() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.ledger))
	copy(out, a.ledger)
	return out
}

// Restore replaces the accumulator contents with a persisted ledger.
func (a *Accumulator) Restore(entries []Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ledger = make([]Entry, len(entries))
	copy(a.ledger, entries)
	a.total = Usage{}
	for _, e := range entries {
		a.total = a.total.Add(e.Usage)
	}
}

// Reset clears the session.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = Usage{}
	a.ledger = nil
}
