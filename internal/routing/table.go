package routing

import (
	"sort"
	"sync"
)

type changeKind int

const (
	unchanged changeKind = iota
	inserted
	replaced
)

// change describes what an add did to the table
type change struct {
	kind changeKind
	old  Entry
	new  Entry
}

// Table indexes entries as destination -> source -> entries sorted by cost.
// All access goes through one RWMutex; readers get copies.
type Table struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]Entry
	size    int
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{buckets: make(map[string]map[string][]Entry)}
}

// add applies the merge policy to e and reports the change made.
// With skipMoreExpensive a known gateway pair is kept at its lowest cost;
// without it e is inserted unconditionally.
func (t *Table) add(e Entry, skipMoreExpensive bool) change {
	t.mu.Lock()
	defer t.mu.Unlock()

	sources, ok := t.buckets[e.DestinationCommunity]
	if !ok {
		sources = make(map[string][]Entry)
		t.buckets[e.DestinationCommunity] = sources
	}
	bucket := sources[e.SourceCommunity]

	if skipMoreExpensive {
		for i, existing := range bucket {
			if !existing.sameGateway(e) {
				continue
			}
			if existing.Cost <= e.Cost {
				return change{kind: unchanged}
			}
			e.ID = existing.ID
			sources[e.SourceCommunity] = reposition(bucket, i, e)
			return change{kind: replaced, old: existing, new: e}
		}
	}

	sources[e.SourceCommunity] = insertSorted(bucket, e)
	t.size++
	return change{kind: inserted, new: e}
}

// insertSorted places e after every entry with cost <= e.Cost
func insertSorted(bucket []Entry, e Entry) []Entry {
	i := 0
	for i < len(bucket) && bucket[i].Cost <= e.Cost {
		i++
	}
	bucket = append(bucket, Entry{})
	copy(bucket[i+1:], bucket[i:])
	bucket[i] = e
	return bucket
}

// reposition replaces bucket[i] with a cheaper e, moving it towards the front
// until the bucket is sorted again. Length is unchanged.
func reposition(bucket []Entry, i int, e Entry) []Entry {
	bucket[i] = e
	for i > 0 && bucket[i-1].Cost > bucket[i].Cost {
		bucket[i-1], bucket[i] = bucket[i], bucket[i-1]
		i--
	}
	return bucket
}

// best returns the cheapest entry of a bucket
func (t *Table) best(destination, source string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bucket := t.buckets[destination][source]
	if len(bucket) == 0 {
		return Entry{}, false
	}
	return bucket[0], true
}

// Bucket returns a copy of the entries for (destination, source)
func (t *Table) Bucket(destination, source string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bucket := t.buckets[destination][source]
	out := make([]Entry, len(bucket))
	copy(out, bucket)
	return out
}

// Entries returns a snapshot ordered by destination, source, then cost
func (t *Table) Entries() []Entry {
	return t.filter(func(Entry) bool { return true })
}

// withCost returns a snapshot of the entries costing exactly cost
func (t *Table) withCost(cost int) []Entry {
	return t.filter(func(e Entry) bool { return e.Cost == cost })
}

func (t *Table) filter(keep func(Entry) bool) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	destinations := sortedKeys(t.buckets)
	out := make([]Entry, 0, t.size)
	for _, dst := range destinations {
		sources := t.buckets[dst]
		for _, src := range sortedKeys(sources) {
			for _, e := range sources[src] {
				if keep(e) {
					out = append(out, e)
				}
			}
		}
	}
	return out
}

// Len returns the number of entries
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

func (t *Table) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buckets = make(map[string]map[string][]Entry)
	t.size = 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
