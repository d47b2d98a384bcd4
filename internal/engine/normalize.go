package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Lookup returns the value at a dotted path such as "paging.next.after".
// Missing keys and non-object intermediates yield nil.
func Lookup(m map[string]any, path string) any {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

// String extracts a string. Numbers are formatted, nil yields "".
func String(m map[string]any, path string) string {
	switch v := Lookup(m, path).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Bool extracts a boolean, accepting "true"/"false" strings.
func Bool(m map[string]any, path string) bool {
	switch v := Lookup(m, path).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

// Float extracts a number, returning 0 when absent or malformed.
func Float(m map[string]any, path string) float64 {
	f, _ := Amount(Lookup(m, path))
	return f
}

// Int extracts an integer, truncating fractional values.
func Int(m map[string]any, path string) int {
	return int(Float(m, path))
}

// Object extracts a nested object.
func Object(m map[string]any, path string) map[string]any {
	obj, _ := Lookup(m, path).(map[string]any)
	return obj
}

// Objects extracts a list of objects, skipping entries of other shapes.
func Objects(m map[string]any, path string) []map[string]any {
	list, ok := Lookup(m, path).([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Strings extracts a list of strings, skipping non-string entries.
func Strings(m map[string]any, path string) []string {
	list, ok := Lookup(m, path).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Amount coerces a monetary value that may arrive as a number or a
// numeric string ("1,250.00" included).
func Amount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Date coerces a date string or epoch milliseconds. Anything unparseable
// yields nil.
func Date(v any) *time.Time {
	switch d := v.(type) {
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochMillis(ms)
		}
		return nil
	case json.Number:
		ms, err := d.Int64()
		if err != nil {
			return nil
		}
		return epochMillis(ms)
	case float64:
		return epochMillis(int64(d))
	case int64:
		return epochMillis(d)
	case int:
		return epochMillis(int64(d))
	case time.Time:
		if d.IsZero() {
			return nil
		}
		return &d
	default:
		return nil
	}
}

func epochMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// DateAt is Date applied to a dotted path.
func DateAt(m map[string]any, path string) *time.Time {
	return Date(Lookup(m, path))
}

// FlattenParticipants turns a participant list whose entries may be single
// people or comma-joined lists into a de-duplicated list of individuals.
//
// An entry containing commas is split only when at least one fragment looks
// like an individual: it contains "@" or exactly matches another entry that
// has no comma, case included. Otherwise the entry is kept whole
// ("Smith, Jones & Co"). Duplicates are dropped ignoring case, keeping the
// first spelling seen.
func FlattenParticipants(entries []string) []string {
	known := make(map[string]bool)
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e != "" && !strings.Contains(e, ",") {
			known[e] = true
		}
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(entries))
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, e := range entries {
		if !strings.Contains(e, ",") {
			add(e)
			continue
		}
		fragments := strings.Split(e, ",")
		individual := false
		for _, f := range fragments {
			f = strings.TrimSpace(f)
			if strings.Contains(f, "@") || known[f] {
				individual = true
				break
			}
		}
		if !individual {
			add(e)
			continue
		}
		for _, f := range fragments {
			add(f)
		}
	}
	return out
}
