// Package engine implements the conversational orchestration pipeline:
// two-tier cache lookup, parallel slot capture + situation detection,
// conditional reconcile, principle selection, and response generation.
package engine

import (
	"encoding/json"
	"strconv"
)

// SlotValue is a tagged union for extracted slot values. LLM extraction
// returns loosely typed JSON (string, number, or bool), and downstream
// logic only needs "is this slot present and truthy" plus a string form.
type SlotValue struct {
	kind slotKind
	str  string
	num  float64
	b    bool
}

type slotKind int

const (
	slotAbsent slotKind = iota
	slotString
	slotNumber
	slotBool
)

// StringValue creates a string slot value.
func StringValue(s string) SlotValue {
	return SlotValue{kind: slotString, str: s}
}

// NumberValue creates a numeric slot value.
func NumberValue(n float64) SlotValue {
	return SlotValue{kind: slotNumber, num: n}
}

// BoolValue creates a boolean slot value.
func BoolValue(b bool) SlotValue {
	return SlotValue{kind: slotBool, b: b}
}

// IsTruthy reports whether the slot is present with a non-empty value.
// Empty strings, zero numbers, and false are all falsy, matching the
// filtering applied before cache key generation.
func (v SlotValue) IsTruthy() bool {
	switch v.kind {
	case slotString:
		return v.str != ""
	case slotNumber:
		return v.num != 0
	case slotBool:
		return v.b
	default:
		return false
	}
}

// String returns the canonical string form of the value.
func (v SlotValue) String() string {
	switch v.kind {
	case slotString:
		return v.str
	case slotNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case slotBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// UnmarshalJSON accepts string, number, bool, or null.
// Other JSON shapes are treated as absent.
func (v *SlotValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = StringValue(val)
	case float64:
		*v = NumberValue(val)
	case bool:
		*v = BoolValue(val)
	default:
		*v = SlotValue{}
	}
	return nil
}

// MarshalJSON emits the underlying value.
func (v SlotValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case slotString:
		return json.Marshal(v.str)
	case slotNumber:
		return json.Marshal(v.num)
	case slotBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(nil)
	}
}

// Context is the accumulated slot map for a session.
type Context map[string]SlotValue

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	cloned := make(Context, len(c))
	for k, v := range c {
		cloned[k] = v
	}
	return cloned
}

// Merge overwrites existing keys with values from other (last write wins).
func (c Context) Merge(other Context) {
	for k, v := range other {
		c[k] = v
	}
}

// Strings flattens truthy slots to a plain string map, the form consumed
// by cache key generation and prompt building.
func (c Context) Strings() map[string]string {
	flat := make(map[string]string, len(c))
	for k, v := range c {
		if !v.IsTruthy() {
			continue
		}
		flat[k] = v.String()
	}
	return flat
}

// Richness counts slots holding a truthy value.
func (c Context) Richness() int {
	count := 0
	for _, v := range c {
		if v.IsTruthy() {
			count++
		}
	}
	return count
}

// Truthy reports whether a named slot is present and truthy.
func (c Context) Truthy(key string) bool {
	return c[key].IsTruthy()
}
