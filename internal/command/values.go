package command

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/mapstructure"

	"icc.tech/procbus-agent/internal/core"
)

// DataValue is the typed presentation of one data set element on the
// control plane and in the publications section of the config file.
type DataValue struct {
	Type  string `json:"type" mapstructure:"type"`
	Value any    `json:"value" mapstructure:"value"`
}

// bitStringValue is the wire form of a bit_string value.
type bitStringValue struct {
	Padding uint8  `json:"padding" mapstructure:"padding"`
	Bits    string `json:"bits" mapstructure:"bits"` // hex
}

// ToData converts a presentation value into its codec form.
func (v DataValue) ToData() (core.Data, error) {
	switch v.Type {
	case "boolean":
		b, ok := v.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("boolean value is %T", v.Value)
		}
		return core.Boolean(b), nil
	case "integer":
		n, err := asInt64(v.Value)
		if err != nil {
			return nil, err
		}
		return core.Integer(n), nil
	case "unsigned":
		n, err := asInt64(v.Value)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("unsigned value %d is negative", n)
		}
		return core.Unsigned(n), nil
	case "float32":
		f, err := asFloat64(v.Value)
		if err != nil {
			return nil, err
		}
		return core.Float32(f), nil
	case "float64":
		f, err := asFloat64(v.Value)
		if err != nil {
			return nil, err
		}
		return core.Float64(f), nil
	case "bit_string":
		var bs bitStringValue
		if err := mapstructure.Decode(v.Value, &bs); err != nil {
			return nil, fmt.Errorf("bit_string value: %w", err)
		}
		bits, err := hex.DecodeString(bs.Bits)
		if err != nil {
			return nil, fmt.Errorf("bit_string bits: %w", err)
		}
		return core.BitString{Padding: bs.Padding, Bits: bits}, nil
	case "octet_string":
		s, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("octet_string value is %T", v.Value)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("octet_string value: %w", err)
		}
		return core.OctetString(b), nil
	case "visible_string":
		s, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("visible_string value is %T", v.Value)
		}
		return core.VisibleString(s), nil
	case "mms_string":
		s, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("mms_string value is %T", v.Value)
		}
		return core.MmsString(s), nil
	case "utc_time":
		s, ok := v.Value.(string)
		if !ok {
			return nil, fmt.Errorf("utc_time value is %T", v.Value)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("utc_time value: %w", err)
		}
		return core.UTCTime(core.TimestampFromTime(t)), nil
	case "array", "structure":
		items, err := nestedValues(v.Value)
		if err != nil {
			return nil, fmt.Errorf("%s value: %w", v.Type, err)
		}
		if v.Type == "array" {
			return core.Array(items), nil
		}
		return core.Structure(items), nil
	default:
		return nil, fmt.Errorf("unknown data type %q", v.Type)
	}
}

func nestedValues(raw any) ([]core.Data, error) {
	var vals []DataValue
	if err := mapstructure.Decode(raw, &vals); err != nil {
		return nil, err
	}
	items := make([]core.Data, len(vals))
	for i, dv := range vals {
		d, err := dv.ToData()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = d
	}
	return items, nil
}

// FromData converts a codec value into its presentation form, used
// when forwarding decoded frames to subscribers.
func FromData(d core.Data) DataValue {
	switch v := d.(type) {
	case core.Boolean:
		return DataValue{Type: "boolean", Value: bool(v)}
	case core.Integer:
		return DataValue{Type: "integer", Value: int64(v)}
	case core.Unsigned:
		return DataValue{Type: "unsigned", Value: uint64(v)}
	case core.Float32:
		return DataValue{Type: "float32", Value: float32(v)}
	case core.Float64:
		return DataValue{Type: "float64", Value: float64(v)}
	case core.BitString:
		return DataValue{Type: "bit_string", Value: bitStringValue{
			Padding: v.Padding,
			Bits:    hex.EncodeToString(v.Bits),
		}}
	case core.OctetString:
		return DataValue{Type: "octet_string", Value: hex.EncodeToString(v)}
	case core.VisibleString:
		return DataValue{Type: "visible_string", Value: string(v)}
	case core.MmsString:
		return DataValue{Type: "mms_string", Value: string(v)}
	case core.UTCTime:
		return DataValue{Type: "utc_time",
			Value: core.Timestamp(v).Time().Format(time.RFC3339Nano)}
	case core.Array:
		return DataValue{Type: "array", Value: fromDataSeq(v)}
	case core.Structure:
		return DataValue{Type: "structure", Value: fromDataSeq(v)}
	default:
		return DataValue{Type: "unknown"}
	}
}

func fromDataSeq(items []core.Data) []DataValue {
	out := make([]DataValue, len(items))
	for i, d := range items {
		out[i] = FromData(d)
	}
	return out
}

// DecodeValues converts a list of presentation values, either from a
// JSON command or from the config file's publications section.
func DecodeValues(vals []DataValue) ([]core.Data, error) {
	items := make([]core.Data, len(vals))
	for i, dv := range vals {
		d, err := dv.ToData()
		if err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		items[i] = d
	}
	return items, nil
}

// DecodeValueMaps is DecodeValues over untyped maps, the shape viper
// hands back for the config file's data lists.
func DecodeValueMaps(raw []map[string]any) ([]core.Data, error) {
	vals := make([]DataValue, len(raw))
	for i, m := range raw {
		if err := mapstructure.Decode(m, &vals[i]); err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
	}
	return DecodeValues(vals)
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("numeric value is %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("numeric value is %T", v)
	}
}
