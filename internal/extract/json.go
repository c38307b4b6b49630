// Package extract turns loosely formatted model replies into typed values.
// Every function here is forgiving: a reply that cannot be read yields a
// zero value and false, never an error.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// Value recovers the first JSON object or array from text. It tries the
// whole text, then a fenced ```json block, then the outermost bracket span.
func Value(text string) (any, bool) {
	for _, c := range candidates(text) {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return v, true
		}
	}
	return nil, false
}

// ObjectFrom recovers a JSON object from text.
func ObjectFrom(text string) (map[string]any, bool) {
	for _, c := range candidates(text) {
		var m map[string]any
		if err := json.Unmarshal([]byte(c), &m); err == nil && m != nil {
			return m, true
		}
	}
	return nil, false
}

// Objects recovers a list of records from text. The reply may be a bare
// array, an object wrapping the array under one of wrapperKeys, or a single
// record carrying at least one of recordKeys.
func Objects(text string, wrapperKeys, recordKeys []string) []map[string]any {
	v, ok := Value(text)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case []any:
		return objectsIn(t)
	case map[string]any:
		for _, k := range wrapperKeys {
			switch inner := t[k].(type) {
			case []any:
				return objectsIn(inner)
			case map[string]any:
				return []map[string]any{inner}
			}
		}
		for _, k := range recordKeys {
			if _, ok := t[k]; ok {
				return []map[string]any{t}
			}
		}
	}
	return nil
}

func objectsIn(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func candidates(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	out := []string{text}
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}

	obj := span(text, '{', '}')
	arr := span(text, '[', ']')
	// Prefer whichever structure opens first.
	if obj != "" && arr != "" && strings.IndexByte(text, '[') < strings.IndexByte(text, '{') {
		obj, arr = arr, obj
	}
	for _, s := range []string{obj, arr} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func span(text string, open, closing byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
