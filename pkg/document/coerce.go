package document

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// coerce converts raw into the Go representation used for tag.
func coerce(tag TypeTag, raw interface{}) (interface{}, error) {
	if v, ok := raw.(Value); ok {
		if !v.IsValid() {
			return nil, fmt.Errorf("invalid value")
		}
		if v.tag == tag && tag != TypeDouble {
			return v.Interface(), nil
		}
		raw = v.data
	}
	if raw == nil {
		return nil, fmt.Errorf("nil is not representable")
	}

	switch tag {
	case TypeString:
		if t, ok := raw.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return cast.ToStringE(raw)

	case TypeInteger:
		i, err := toInt64(raw, 32)
		if err != nil {
			return nil, err
		}
		return int32(i), nil

	case TypeLong:
		return toInt64(raw, 64)

	case TypeDouble:
		return toFloat64(raw)

	case TypeBoolean:
		switch raw.(type) {
		case time.Time, []byte:
			return nil, fmt.Errorf("%T is not a boolean", raw)
		}
		return toBool(raw)

	case TypeDate:
		switch d := raw.(type) {
		case time.Time:
			return d.UTC(), nil
		case string:
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, strings.TrimSpace(d)); err == nil {
					return t.UTC(), nil
				}
			}
			t, err := cast.ToTimeE(d)
			if err != nil {
				return nil, err
			}
			return t.UTC(), nil
		}
		return nil, fmt.Errorf("%T is not a date", raw)

	case TypeBytes:
		switch b := raw.(type) {
		case []byte:
			return cloneBytes(b), nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("%T is not bytes", raw)
	}

	return nil, fmt.Errorf("unknown type tag %q", tag)
}

// toInt64 converts integral inputs, rejecting fractions and values outside bitSize.
func toInt64(raw interface{}, bitSize int) (int64, error) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if bitSize == 32 {
		lo, hi = math.MinInt32, math.MaxInt32
	}
	inRange := func(i int64) (int64, error) {
		if i < lo || i > hi {
			return 0, fmt.Errorf("%d overflows int%d", i, bitSize)
		}
		return i, nil
	}

	switch n := raw.(type) {
	case int:
		return inRange(int64(n))
	case int8:
		return inRange(int64(n))
	case int16:
		return inRange(int64(n))
	case int32:
		return inRange(int64(n))
	case int64:
		return inRange(n)
	case uint, uint8, uint16, uint32, uint64:
		u := cast.ToUint64(n)
		if u > uint64(hi) {
			return 0, fmt.Errorf("%d overflows int%d", u, bitSize)
		}
		return int64(u), nil
	case float32:
		return floatToInt(float64(n), lo, hi, bitSize)
	case float64:
		return floatToInt(n, lo, hi, bitSize)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return inRange(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n.String())
		}
		return floatToInt(f, lo, hi, bitSize)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, bitSize)
		if err != nil {
			return 0, fmt.Errorf("%q is not an int%d", n, bitSize)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%T is not an integer", raw)
}

func floatToInt(f float64, lo, hi int64, bitSize int) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not integral", f)
	}
	if f < float64(lo) || f >= float64(hi)+1 {
		return 0, fmt.Errorf("%v overflows int%d", f, bitSize)
	}
	return int64(f), nil
}

// toFloat64 converts numeric inputs. NaN and infinities are rejected: they have no
// JSON form and compare false against every bound.
func toFloat64(raw interface{}) (float64, error) {
	var (
		f   float64
		err error
	)
	switch n := raw.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, err = cast.ToFloat64E(n)
	case json.Number:
		f, err = n.Float64()
	case string:
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
	default:
		return 0, fmt.Errorf("%T is not a number", raw)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}

// toBool accepts booleans, the numbers 0 and 1, and strconv.ParseBool strings.
func toBool(raw interface{}) (bool, error) {
	switch n := raw.(type) {
	case bool, string:
		return cast.ToBoolE(n)
	case json.Number:
		raw = n.String()
	}
	f, err := toFloat64(raw)
	if err != nil {
		return false, fmt.Errorf("%T is not a boolean", raw)
	}
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%v is not a boolean, want 0 or 1", f)
}
