package cypher

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Property is a single key/value entry of a property map.
type Property struct {
	Key   string
	Value any
}

// Prop builds a Property.
func Prop(key string, value any) Property {
	return Property{Key: key, Value: value}
}

// Properties is a property map that keeps insertion order, so rendered
// patterns list keys exactly as the caller supplied them.
type Properties []Property

// PropsFromMap converts a Go map into Properties sorted by key.
func PropsFromMap(m map[string]any) Properties {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make(Properties, 0, len(keys))
	for _, k := range keys {
		props = append(props, Property{Key: k, Value: m[k]})
	}
	return props
}

// Get returns the value of the first entry with the given key.
func (p Properties) Get(key string) (any, bool) {
	for _, prop := range p {
		if prop.Key == key {
			return prop.Value, true
		}
	}
	return nil, false
}

// Map returns the properties as a plain map (later keys win).
func (p Properties) Map() map[string]any {
	m := make(map[string]any, len(p))
	for _, prop := range p {
		m[prop.Key] = prop.Value
	}
	return m
}

// Str is a string value that is always rendered quoted, even when it looks
// like a number ("0042" stays '0042').
type Str string

// Param references a named statement parameter and renders as $name.
type Param string

var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// IsNumeric reports whether s looks like a number. Surrounding whitespace is
// ignored.
func IsNumeric(s string) bool {
	return numericPattern.MatchString(strings.TrimSpace(s))
}

// FormatValue renders a Go value as a Cypher literal.
//
// Numbers, bools and nil render bare. Strings that look numeric render as
// bare numbers; every other string is single-quoted with backslash and
// single quote escaped. Use Str to keep a numeric-looking string quoted and
// Param to reference a statement parameter.
func FormatValue(v any) string {
	if v == nil {
		return "null"
	}

	switch val := v.(type) {
	case Str:
		return Quote(string(val))
	case Param:
		return "$" + string(val)
	case string:
		if IsNumeric(val) {
			return formatNumeric(val)
		}
		return Quote(val)

	case int:
		return strconv.FormatInt(int64(val), 10)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)

	case float32:
		return formatFloat(float64(val), 32)
	case float64:
		return formatFloat(val, 64)

	case bool:
		if val {
			return "true"
		}
		return "false"

	case time.Time:
		return Quote(val.Format(time.RFC3339Nano))

	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, comma) + "]"

	case []string:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, comma) + "]"

	case []int:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = strconv.Itoa(item)
		}
		return "[" + strings.Join(parts, comma) + "]"

	case fmt.Stringer:
		return FormatValue(val.String())
	}

	return FormatValue(fmt.Sprint(v))
}

// Quote single-quotes s, escaping backslashes and single quotes.
func Quote(s string) string {
	return "'" + quoteEscaper.Replace(s) + "'"
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// formatNumeric normalises a numeric-looking string. Integers are rendered
// in canonical form ("007" -> 7); anything else keeps float notation.
// Integers too large for int64 are quoted so no digits are lost.
func formatNumeric(s string) string {
	t := strings.TrimSpace(s)
	if integerPattern.MatchString(t) {
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return Quote(s)
		}
		return strconv.FormatInt(i, 10)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return formatFloat(f, 64)
	}
	// Out of range for float64; the text is still a valid literal.
	return strings.TrimPrefix(t, "+")
}

var integerPattern = regexp.MustCompile(`^[+-]?\d+$`)

// Beyond this magnitude plain notation would read back as an integer
// literal that may not fit in int64.
const exponentThreshold = 1e15

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "0.0/0.0"
	case math.IsInf(f, 1):
		return "1.0/0.0"
	case math.IsInf(f, -1):
		return "-1.0/0.0"
	}
	if math.Abs(f) >= exponentThreshold {
		return strings.Replace(strconv.FormatFloat(f, 'e', -1, bits), "e+", "e", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
