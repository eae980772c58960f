package budget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Bucket is one histogram entry.
type Bucket struct {
	Key   string
	Count int
}

// Histogram counts occurrences per key and remembers the order in which keys
// were first seen. The zero value is ready to use.
type Histogram struct {
	buckets []Bucket
	index   map[string]int
}

// Inc inserts key with count 1 if absent, otherwise increments it, and
// returns the new count.
func (h *Histogram) Inc(key string) int {
	return h.Add(key, 1)
}

// Add increases key by n, inserting it first if absent.
func (h *Histogram) Add(key string, n int) int {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[key]; ok {
		h.buckets[i].Count += n
		return h.buckets[i].Count
	}
	h.index[key] = len(h.buckets)
	h.buckets = append(h.buckets, Bucket{Key: key, Count: n})
	return n
}

// Get returns the count for key, or 0.
func (h Histogram) Get(key string) int {
	if i, ok := h.index[key]; ok {
		return h.buckets[i].Count
	}
	return 0
}

// Len returns the number of distinct keys.
func (h Histogram) Len() int {
	return len(h.buckets)
}

// Sum returns the total of all counts.
func (h Histogram) Sum() int {
	total := 0
	for _, b := range h.buckets {
		total += b.Count
	}
	return total
}

// Max returns the bucket with the highest count. Ties go to the key that was
// seen first. ok is false for an empty histogram.
func (h Histogram) Max() (b Bucket, ok bool) {
	for i, cur := range h.buckets {
		if i == 0 || cur.Count > b.Count {
			b = cur
		}
	}
	return b, len(h.buckets) > 0
}

// Buckets returns a copy of the buckets in first-seen order.
func (h Histogram) Buckets() []Bucket {
	out := make([]Bucket, len(h.buckets))
	copy(out, h.buckets)
	return out
}

// Sorted returns the buckets by descending count, first-seen order on ties.
func (h Histogram) Sorted() []Bucket {
	out := h.Buckets()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// Clone returns an independent copy.
func (h Histogram) Clone() Histogram {
	var c Histogram
	for _, b := range h.buckets {
		c.Add(b.Key, b.Count)
	}
	return c
}

// Map returns the histogram as a plain map.
func (h Histogram) Map() map[string]int {
	m := make(map[string]int, len(h.buckets))
	for _, b := range h.buckets {
		m[b.Key] = b.Count
	}
	return m
}

// MarshalJSON writes a plain JSON object with keys in first-seen order.
func (h Histogram) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range h.buckets {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(b.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", b.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a plain JSON object, keeping key order. null yields an
// empty histogram. Duplicate keys are summed.
func (h *Histogram) UnmarshalJSON(data []byte) error {
	*h = Histogram{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("histogram: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("histogram: expected key, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return fmt.Errorf("histogram: count for %q is not a number", key)
		}
		n, err := num.Int64()
		if err != nil || n < 0 {
			return fmt.Errorf("histogram: invalid count %q for %q", num, key)
		}
		h.Add(key, int(n))
	}

	_, err = dec.Token()
	return err
}
