// Package calculator evaluates simple arithmetic found in a user message.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"zeta/pkg/tools"
)

const Name = "calculator"

var (
	errInvalid      = errors.New("Hesaplama hatası")
	errDivideByZero = errors.New("Sıfıra bölme hatası")
)

var (
	disallowed = regexp.MustCompile(`[^0-9+\-*/.() ]`)
	spaces     = regexp.MustCompile(`\s+`)
	hasOperand = regexp.MustCompile(`\d\s*[+\-*/]\s*[\d(]|\)\s*[+\-*/]`)
	divByZero  = regexp.MustCompile(`/\s*0+(?:\.0+)?\s*(?:$|[)+\-*/])`)
)

// Result is the data payload of a successful calculation.
type Result struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Formatted  string  `json:"formatted"`
}

// Tool implements tools.Tool for arithmetic.
type Tool struct{}

// New returns the calculator capability.
func New() Tool {
	return Tool{}
}

func (Tool) Name() string { return Name }

func (Tool) Description() string {
	return "Matematik işlemleri yapar"
}

func (Tool) Execute(_ context.Context, params tools.Params) (tools.Result, error) {
	raw := params.String("expression")
	if raw == "" {
		return tools.Fail("İfade boş"), nil
	}

	clean := Normalize(raw)
	if clean == "" || !hasOperand.MatchString(clean) {
		return tools.Fail("Sadece basit işlemler destekleniyor (toplama, çıkarma, çarpma, bölme)"), nil
	}

	value, err := Evaluate(clean)
	if err != nil {
		return tools.Fail("%s", err.Error()), nil
	}

	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	return tools.OK(Result{
		Expression: clean,
		Result:     value,
		Formatted:  fmt.Sprintf("%s = %s", clean, formatted),
	}), nil
}

// Normalize maps x and ÷ to operators, removes everything that is not arithmetic,
// and collapses whitespace.
func Normalize(input string) string {
	replaced := strings.NewReplacer("x", "*", "X", "*", "×", "*", "÷", "/").Replace(input)
	stripped := disallowed.ReplaceAllString(replaced, "")
	return strings.TrimSpace(spaces.ReplaceAllString(stripped, " "))
}

// Evaluate computes a normalized arithmetic expression.
func Evaluate(expression string) (float64, error) {
	if divByZero.MatchString(expression) {
		return 0, errDivideByZero
	}

	program, err := expr.Compile(expression, expr.AsFloat64())
	if err != nil {
		return 0, errInvalid
	}

	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, errInvalid
	}

	value, ok := out.(float64)
	if !ok {
		return 0, errInvalid
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errDivideByZero
	}
	return value, nil
}
