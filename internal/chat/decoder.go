package chat

import (
	"fmt"
	"sort"
	"strconv"
)

// DecoderOption is a single decoder setting passed to the chat binary.
type DecoderOption struct {
	Key   string
	Value any
}

// DecoderConfig is an ordered list of decoder options.
// Options are emitted as flags in slice order.
type DecoderConfig []DecoderOption

// DecoderConfigFromMap builds a DecoderConfig from a map.
// Keys named in order come first, in that order; the rest follow sorted.
func DecoderConfigFromMap(m map[string]any, order ...string) DecoderConfig {
	cfg := make(DecoderConfig, 0, len(m))
	placed := make(map[string]bool, len(m))
	for _, k := range order {
		v, ok := m[k]
		if !ok || placed[k] {
			continue
		}
		placed[k] = true
		cfg = append(cfg, DecoderOption{Key: k, Value: v})
	}

	rest := make([]string, 0, len(m)-len(cfg))
	for k := range m {
		if !placed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)

	for _, k := range rest {
		cfg = append(cfg, DecoderOption{Key: k, Value: m[k]})
	}

	return cfg
}

// Set replaces the value of an existing key or appends a new option.
func (c DecoderConfig) Set(key string, value any) DecoderConfig {
	for i := range c {
		if c[i].Key == key {
			c[i].Value = value
			return c
		}
	}

	return append(c, DecoderOption{Key: key, Value: value})
}

// Flags translates the config into "--key value" token pairs.
// Option names are not validated; a bad option surfaces as a start failure.
func (c DecoderConfig) Flags() []string {
	args := make([]string, 0, len(c)*2)
	for _, opt := range c {
		args = append(args, "--"+opt.Key, formatValue(opt.Value))
	}

	return args
}

// formatValue renders a decoder value the way the chat binary expects it.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
