package creation

import "time"

// Ledger holds the confirmed facts for one character in commit order.
//
// While the owning character is Drafting, a key can be written exactly
// once: later commits for the same key are rejected and the first value
// stands. The Reviewing edit path is the only way to overwrite.
type Ledger struct {
	facts map[string]Fact
	order []string
}

// NewLedger creates an empty fact ledger.
func NewLedger() *Ledger {
	return &Ledger{facts: map[string]Fact{}}
}

// Commit records a fact if its key has never been written. It returns
// whether the fact was applied; a false return means the existing value
// won and the ledger is unchanged.
func (l *Ledger) Commit(input CommitFactInput, committedAt time.Time) bool {
	if _, exists := l.facts[input.Key]; exists {
		return false
	}
	l.facts[input.Key] = Fact{
		Key:         input.Key,
		Value:       input.Value,
		Confidence:  input.Confidence,
		Source:      input.Source,
		CommittedAt: committedAt,
	}
	l.order = append(l.order, input.Key)
	return true
}

// Override replaces the value for a key regardless of prior state.
// Reserved for the Reviewing edit path; last write wins.
func (l *Ledger) Override(key string, value Value, at time.Time) {
	fact, exists := l.facts[key]
	if !exists {
		fact = Fact{Key: key, Confidence: 1, Source: SourceManual}
		l.order = append(l.order, key)
	}
	fact.Value = value
	fact.Source = SourceManual
	fact.CommittedAt = at
	l.facts[key] = fact
}

// RemoveLast drops the most recently committed fact and returns its key.
// Returns false when the ledger is empty.
func (l *Ledger) RemoveLast() (string, bool) {
	if len(l.order) == 0 {
		return "", false
	}
	last := l.order[len(l.order)-1]
	l.order = l.order[:len(l.order)-1]
	delete(l.facts, last)
	return last, true
}

// Get returns the fact for a key.
func (l *Ledger) Get(key string) (Fact, bool) {
	fact, ok := l.facts[key]
	return fact, ok
}

// Has reports whether a key has been committed.
func (l *Ledger) Has(key string) bool {
	_, ok := l.facts[key]
	return ok
}

// Len returns the number of committed facts.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Facts returns the facts in commit order.
func (l *Ledger) Facts() []Fact {
	out := make([]Fact, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, l.facts[key])
	}
	return out
}
