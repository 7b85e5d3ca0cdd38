package model

import (
	"encoding/json"
	"strconv"
)

type Kind int

const (
	KindUnsupported Kind = iota
	KindNumeric
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	default:
		return "unsupported"
	}
}

// Value is the state value as decided by the data source adapter.
// The zero Value is unsupported.
type Value struct {
	kind Kind
	num  float64
	text string
}

func Numeric(v float64) Value {
	return Value{kind: KindNumeric, num: v}
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

func Unsupported() Value {
	return Value{}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) AsFloat() (float64, bool) {
	return v.num, v.kind == KindNumeric
}

func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// ValueOf maps a decoded Go value onto the closed value set.
// Booleans are not numeric.
func ValueOf(raw any) Value {
	switch val := raw.(type) {
	case float64:
		return Numeric(val)
	case float32:
		return Numeric(float64(val))
	case int:
		return Numeric(float64(val))
	case int8:
		return Numeric(float64(val))
	case int16:
		return Numeric(float64(val))
	case int32:
		return Numeric(float64(val))
	case int64:
		return Numeric(float64(val))
	case uint:
		return Numeric(float64(val))
	case uint8:
		return Numeric(float64(val))
	case uint16:
		return Numeric(float64(val))
	case uint32:
		return Numeric(float64(val))
	case uint64:
		return Numeric(float64(val))
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return Text(string(val))
		}
		return Numeric(f)
	case string:
		return Text(val)
	case []byte:
		return Text(string(val))
	default:
		return Unsupported()
	}
}

func BoolValue(b bool) Value {
	if b {
		return Numeric(1)
	}
	return Numeric(0)
}
