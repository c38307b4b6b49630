package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Extractor pulls one logical field out of a decoded record.
type Extractor[T any] func(rec map[string]any) (T, bool)

// First returns the value of the first extractor that finds one.
func First[T any](rec map[string]any, ex ...Extractor[T]) (T, bool) {
	for _, e := range ex {
		if v, ok := e(rec); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Or returns the first extractor's value, or def when none match.
func Or[T any](rec map[string]any, def T, ex ...Extractor[T]) T {
	if v, ok := First(rec, ex...); ok {
		return v
	}
	return def
}

// String reads a non-empty string under key. A list of strings is joined
// with "; ".
func String(key string) Extractor[string] {
	return func(rec map[string]any) (string, bool) {
		s := AsString(rec[key])
		return s, s != ""
	}
}

// Number reads a score under key. See AsNumber for the accepted shapes.
func Number(key string) Extractor[float64] {
	return func(rec map[string]any) (float64, bool) {
		return AsNumber(rec[key])
	}
}

// List reads a non-empty list of strings under key.
func List(key string) Extractor[[]string] {
	return func(rec map[string]any) ([]string, bool) {
		l := AsList(rec[key])
		return l, len(l) > 0
	}
}

// StringKeys tries each key spelling in order.
func StringKeys(keys ...string) Extractor[string] {
	return anyKey(keys, String)
}

// NumberKeys tries each key spelling in order.
func NumberKeys(keys ...string) Extractor[float64] {
	return anyKey(keys, Number)
}

// ListKeys tries each key spelling in order.
func ListKeys(keys ...string) Extractor[[]string] {
	return anyKey(keys, List)
}

func anyKey[T any](keys []string, build func(string) Extractor[T]) Extractor[T] {
	ex := make([]Extractor[T], len(keys))
	for i, k := range keys {
		ex[i] = build(k)
	}
	return func(rec map[string]any) (T, bool) {
		return First(rec, ex...)
	}
}

// AsString flattens a scalar or list of scalars into trimmed text.
func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		return strings.Join(AsList(t), "; ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

var leadingNumberRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)

// AsNumber accepts a JSON number, a numeric string ("8", "8.5", "8/10",
// "8.5 out of 10"), or an object carrying one under "score" or "value".
func AsNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		m := leadingNumberRe.FindStringSubmatch(t)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(m[1], 64)
		return f, err == nil
	case map[string]any:
		for _, k := range []string{"score", "Score", "value", "Value"} {
			if f, ok := AsNumber(t[k]); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// AsList accepts a list, a {"items": [...]} wrapper, or a single string.
// Object items are reduced to their first descriptive string field.
func AsList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s := itemText(it); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		for _, k := range []string{"items", "Items"} {
			if inner, ok := t[k]; ok {
				return AsList(inner)
			}
		}
	}
	return nil
}

func itemText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, json.Number, bool:
		return AsString(t)
	case map[string]any:
		for _, k := range []string{"name", "title", "description", "text", "item"} {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// Criterion reads a scored criterion that is either {score, justification}
// or a bare number. ok is false when no score can be read.
func Criterion(rec map[string]any, name string) (score float64, justification string, ok bool) {
	v, present := rec[name]
	if !present {
		return 0, "", false
	}
	if m, isObj := v.(map[string]any); isObj {
		score, ok = AsNumber(m["score"])
		justification = Or(m, "", StringKeys("justification", "rationale", "reason", "explanation"))
		return score, justification, ok
	}
	score, ok = AsNumber(v)
	return score, "", ok
}
