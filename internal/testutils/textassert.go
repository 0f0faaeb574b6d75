package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the subset of testing.T used by TextAsserter.
type TestingT interface {
	Errorf(format string, args ...interface{})
}

type TextAssertOptions struct {
	IgnoreTrailingWhitespace bool `default:"false"`
	IgnoreEmptyLines         bool `default:"false"`
	TrimSpace                bool `default:"false"`
	EnableColors             bool `default:"false"`
}

// TextOption is a functional option for configuring TextAsserter
type TextOption func(*TextAssertOptions)

// TextAsserter compares rendered command output and reports a unified diff.
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

func NewTextAsserter(t TestingT) *TextAsserter {
	opts := TextAssertOptions{}
	defaults.SetDefaults(&opts)
	return &TextAsserter{t: t, options: opts}
}

func (ta *TextAsserter) WithOptions(opts ...TextOption) *TextAsserter {
	for _, opt := range opts {
		opt(&ta.options)
	}
	return ta
}

func (ta *TextAsserter) GetOptions() TextAssertOptions {
	return ta.options
}

// Assert compares actual text against expected text
func (ta *TextAsserter) Assert(actual, expected string) {
	if diff := ta.diff(actual, expected); diff != "" {
		ta.t.Errorf("Text assertion failed:\n%s", diff)
	}
}

func (ta *TextAsserter) diff(actual, expected string) string {
	a, e := ta.normalize(actual), ta.normalize(expected)
	if a == e {
		return ""
	}

	edits := myers.ComputeEdits("", e, a)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", e, edits))
	if ta.options.EnableColors {
		unified = colorize(unified)
	}
	return unified
}

func colorize(diff string) string {
	paint := func(attr color.Attribute, s string) string {
		c := color.New(attr)
		c.EnableColor()
		return c.Sprint(s)
	}
	// Whitespace is made visible on changed lines.
	visible := strings.NewReplacer(" ", "·", "\t", "→")

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			lines[i] = paint(color.FgYellow, line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = paint(color.FgCyan, line)
		case strings.HasPrefix(line, "-"):
			lines[i] = paint(color.FgRed, visible.Replace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = paint(color.FgGreen, visible.Replace(line))
		}
	}
	return strings.Join(lines, "\n")
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if ta.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		if ta.options.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func WithIgnoreTrailingWhitespace(ignore bool) TextOption {
	return func(opts *TextAssertOptions) { opts.IgnoreTrailingWhitespace = ignore }
}

func WithIgnoreEmptyLines(ignore bool) TextOption {
	return func(opts *TextAssertOptions) { opts.IgnoreEmptyLines = ignore }
}

// WithTrimSpace trims the whole text before line processing.
func WithTrimSpace(trim bool) TextOption {
	return func(opts *TextAssertOptions) { opts.TrimSpace = trim }
}

func WithEnableColors(enable bool) TextOption {
	return func(opts *TextAssertOptions) { opts.EnableColors = enable }
}
