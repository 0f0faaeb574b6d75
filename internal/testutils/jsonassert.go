package testutils

import (
	"encoding/json"
	"fmt"
	"slices"
	"testing"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// Presence matches any actual value, as long as the key exists.
const Presence = "<<PRESENCE>>"

// MustJSON marshals v or panics.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

type JSONAssertOptions struct {
	IgnoreExtraKeys          bool     `default:"true"`
	NilToEmptyArray          bool     `default:"true"`
	AllowPresencePlaceholder bool     `default:"true"`
	IgnoredFields            []string `default:""`
	IgnoreArrayOrder         bool     `default:"false"`
}

// Option is a functional option for configuring JSONAsserter
type Option func(*JSONAssertOptions)

// JSONAsserter compares JSON documents structurally and reports an ASCII diff.
type JSONAsserter struct {
	t       testing.TB
	options JSONAssertOptions
}

// NewJSONAsserter creates a new JSONAsserter with default options
func NewJSONAsserter(t testing.TB) *JSONAsserter {
	opts := JSONAssertOptions{}
	defaults.SetDefaults(&opts)
	return &JSONAsserter{t: t, options: opts}
}

// WithOptions applies functional options to the JSONAsserter
func (ja *JSONAsserter) WithOptions(opts ...Option) *JSONAsserter {
	for _, opt := range opts {
		opt(&ja.options)
	}
	return ja
}

func (ja *JSONAsserter) GetOptions() JSONAssertOptions {
	return ja.options
}

// Assert compares actualJSON against expectedJSON
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) {
	ja.t.Helper()
	if diff := ja.diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON assertion failed:\n%s", diff)
	}
}

// AssertValue marshals v and compares it against expectedJSON.
func (ja *JSONAsserter) AssertValue(v any, expectedJSON string) {
	ja.t.Helper()
	ja.Assert(MustJSON(v), expectedJSON)
}

func (ja *JSONAsserter) diff(actualJSON, expectedJSON string) string {
	var expected, actual any
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff only compares objects at the root.
	_, expArr := expected.([]any)
	_, actArr := actual.([]any)
	if expArr || actArr {
		expected = map[string]any{"array": expected}
		actual = map[string]any{"array": actual}
	}

	walkPair(expected, actual, func(exp, act map[string]any) {
		for k, ev := range exp {
			av, ok := act[k]
			switch {
			case ja.options.AllowPresencePlaceholder && ev == Presence && ok:
				exp[k] = av
			case ja.options.NilToEmptyArray && isNilOrEmpty(ev) && isNilOrEmpty(av) && ok:
				exp[k], act[k] = []any{}, []any{}
			}
		}
		for _, f := range ja.options.IgnoredFields {
			delete(exp, f)
			delete(act, f)
		}
	})

	// Ignored fields are gone before sorting so they cannot influence the order.
	if ja.options.IgnoreArrayOrder {
		sortArrays(expected)
		sortArrays(actual)
	}
	if ja.options.IgnoreExtraKeys {
		walkPair(expected, actual, func(exp, act map[string]any) {
			for k := range act {
				if _, ok := exp[k]; !ok {
					delete(act, k)
				}
			}
		})
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, _ := f.Format(diff)
	return out
}

// walkPair visits every pair of objects found at the same path in both trees.
func walkPair(expected, actual any, visit func(exp, act map[string]any)) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return
		}
		visit(exp, act)
		for k := range exp {
			walkPair(exp[k], act[k], visit)
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return
		}
		for i := 0; i < len(exp) && i < len(act); i++ {
			walkPair(exp[i], act[i], visit)
		}
	}
}

func isNilOrEmpty(v any) bool {
	if v == nil {
		return true
	}
	arr, ok := v.([]any)
	return ok && len(arr) == 0
}

// sortArrays orders every array by the JSON text of its elements.
func sortArrays(data any) {
	switch v := data.(type) {
	case map[string]any:
		for _, child := range v {
			sortArrays(child)
		}
	case []any:
		for _, elem := range v {
			sortArrays(elem)
		}
		slices.SortFunc(v, func(a, b any) int {
			aj, bj := MustJSON(a), MustJSON(b)
			switch {
			case aj < bj:
				return -1
			case aj > bj:
				return 1
			}
			return 0
		})
	}
}

// WithIgnoreExtraKeys sets whether to ignore extra keys in actual JSON
func WithIgnoreExtraKeys(ignore bool) Option {
	return func(opts *JSONAssertOptions) { opts.IgnoreExtraKeys = ignore }
}

// WithNilToEmptyArray sets whether null and [] compare equal
func WithNilToEmptyArray(normalize bool) Option {
	return func(opts *JSONAssertOptions) { opts.NilToEmptyArray = normalize }
}

func WithAllowPresencePlaceholder(allow bool) Option {
	return func(opts *JSONAssertOptions) { opts.AllowPresencePlaceholder = allow }
}

// WithIgnoredFields drops the named keys at every depth before comparing.
func WithIgnoredFields(fields ...string) Option {
	return func(opts *JSONAssertOptions) { opts.IgnoredFields = fields }
}

func WithIgnoreArrayOrder(ignore bool) Option {
	return func(opts *JSONAssertOptions) { opts.IgnoreArrayOrder = ignore }
}
