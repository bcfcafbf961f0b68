package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

const (
	// NoDataText is returned for an empty or absent reply body.
	NoDataText = "無回應資料"

	unparsedPrefix = "無法解析回應格式: "
	unparsedLimit  = 200
)

// Matcher recognises one reply shape and extracts its text.
type Matcher struct {
	Name    string
	Extract func(body any) (string, bool)
}

// Matchers are tried in order by Normalize; the first match wins.
var Matchers = []Matcher{
	{Name: "result", Extract: matchResult},
	{Name: "content", Extract: matchContent},
	{Name: "field", Extract: matchNamedField},
	{Name: "string", Extract: matchPlainString},
}

var textFields = []string{"response", "message", "text", "output"}

// ExtractText returns the human-readable text embedded in a decoded reply body.
// It never panics; unrecognised shapes produce a truncated, marked dump.
func ExtractText(body any) string {
	text, _ := Normalize(body)
	return text
}

// Normalize is ExtractText that also reports the name of the matcher used.
// The name is empty when the body was empty or no matcher applied.
func Normalize(body any) (text, matcher string) {
	if isEmptyBody(body) {
		return NoDataText, ""
	}
	for _, m := range Matchers {
		if text, ok := m.Extract(body); ok {
			return text, m.Name
		}
	}
	return unparsedText(body), ""
}

func matchResult(body any) (string, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", false
	}
	result, ok := obj["result"]
	if !ok {
		return "", false
	}
	switch r := result.(type) {
	case string:
		return r, true
	case map[string]any:
		return firstContentText(r["content"], false)
	}
	return "", false
}

func matchContent(body any) (string, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", false
	}
	return firstContentText(obj["content"], true)
}

func matchNamedField(body any) (string, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", false
	}
	for _, field := range textFields {
		if v, ok := obj[field]; ok {
			return stringify(v), true
		}
	}
	return "", false
}

func matchPlainString(body any) (string, bool) {
	s, ok := body.(string)
	return s, ok
}

// firstContentText reads content[0].text, or content[0] itself when
// allowString is set and the element is a plain string.
func firstContentText(content any, allowString bool) (string, bool) {
	items, ok := content.([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	switch item := items[0].(type) {
	case map[string]any:
		if text, ok := item["text"]; ok {
			return stringify(text), true
		}
	case string:
		if allowString {
			return item, true
		}
	}
	return "", false
}

func isEmptyBody(body any) bool {
	switch b := body.(type) {
	case nil:
		return true
	case map[string]any:
		return len(b) == 0
	case []any:
		return len(b) == 0
	case string:
		return b == ""
	case bool:
		return !b
	case json.Number:
		f, err := b.Float64()
		return err == nil && f == 0
	case float64:
		return b == 0
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func unparsedText(body any) string {
	return unparsedPrefix + TruncateRunes(stringify(body), unparsedLimit) + "..."
}

// TruncateRunes shortens s to at most n runes without splitting a character.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
