package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Output is what a single strategy produced.
type Output struct {
	Text     string
	Headings []string
}

// Strategy is one way of turning a stored file into text.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, path string) (Output, error)
}

type strategyFunc struct {
	name string
	fn   func(ctx context.Context, path string) (Output, error)
}

func (s strategyFunc) Name() string { return s.name }

func (s strategyFunc) Attempt(ctx context.Context, path string) (Output, error) {
	return s.fn(ctx, path)
}

// NewStrategy wraps fn as a named Strategy.
func NewStrategy(name string, fn func(ctx context.Context, path string) (Output, error)) Strategy {
	return strategyFunc{name: name, fn: fn}
}

// textStrategy adapts a function that only produces text.
func textStrategy(name string, fn func(ctx context.Context, path string) (string, error)) Strategy {
	return NewStrategy(name, func(ctx context.Context, path string) (Output, error) {
		text, err := fn(ctx, path)
		return Output{Text: text}, err
	})
}

// Result is the outcome of extracting one file.
type Result struct {
	Text       string
	Strategy   string
	Language   string
	Sufficient bool
	Headings   []string
}

// Cascade is an ordered list of strategies for one format. The first
// strategy whose text reaches MinLength wins.
type Cascade struct {
	Format     string
	Strategies []Strategy
	MinLength  int
}

// Run tries each strategy in order. Insufficient text is treated like an
// error and the cascade moves on; if nothing is sufficient, the first
// non-empty output is returned with Sufficient unset.
func (c Cascade) Run(ctx context.Context, path string, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	var fallback *Result
	for _, s := range c.Strategies {
		if ctx.Err() != nil {
			logger.Warn("extraction cancelled", "format", c.Format, "strategy", s.Name())
			break
		}
		out, err := attempt(ctx, s, path)
		if err != nil {
			logger.Info("extraction strategy failed",
				"format", c.Format, "strategy", s.Name(), "error", err)
			continue
		}
		n := textLength(out.Text)
		if n >= c.MinLength {
			logger.Info("extraction strategy accepted",
				"format", c.Format, "strategy", s.Name(), "chars", n)
			return Result{Text: out.Text, Strategy: s.Name(), Sufficient: true, Headings: out.Headings}
		}
		logger.Info("extraction strategy insufficient",
			"format", c.Format, "strategy", s.Name(), "chars", n, "min", c.MinLength)
		if n > 0 && fallback == nil {
			fallback = &Result{Text: out.Text, Strategy: s.Name(), Headings: out.Headings}
		}
	}
	if fallback != nil {
		logger.Info("extraction using short output",
			"format", c.Format, "strategy", fallback.Strategy)
		return *fallback
	}
	return Result{}
}

// attempt runs one strategy, turning a panic in a parser into an error.
func attempt(ctx context.Context, s Strategy, path string) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, path)
}

func textLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
