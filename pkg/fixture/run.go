package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lemonberrylabs/tagexpr/pkg/tagexpr"
)

// Result is the outcome of one fixture case.
type Result struct {
	Kind   Kind
	Name   string
	Passed bool
	Got    string
	Want   string
}

// Report collects the results of running one fixture file.
type Report struct {
	Path    string
	Kind    Kind
	Results []Result
}

// Passed returns the number of passing cases.
func (r *Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}

// Failures returns the failing cases in file order.
func (r *Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Passed() == len(r.Results)
}

// Run detects the kind of the fixture at path and checks every case
// against the tagexpr package. A non-nil error means the file itself
// could not be loaded; case failures are reported in the Report.
func Run(path string) (*Report, error) {
	kind, err := Detect(path)
	if err != nil {
		return nil, err
	}

	report := &Report{Path: path, Kind: kind}
	switch kind {
	case KindParsing:
		cases, err := LoadParsing(path)
		if err != nil {
			return nil, err
		}
		for _, c := range cases {
			report.Results = append(report.Results, RunParsing(c))
		}
	case KindEvaluations:
		cases, err := LoadEvaluations(path)
		if err != nil {
			return nil, err
		}
		for _, c := range cases {
			report.Results = append(report.Results, RunEvaluation(c)...)
		}
	case KindErrors:
		cases, err := LoadErrors(path)
		if err != nil {
			return nil, err
		}
		for _, c := range cases {
			report.Results = append(report.Results, RunError(c))
		}
	}
	return report, nil
}

// RunParsing checks the canonical form of c.Expression, and that the
// canonical form parses back to itself.
func RunParsing(c ParsingCase) Result {
	res := Result{
		Kind: KindParsing,
		Name: fmt.Sprintf("parses \"%s\" into \"%s\"", c.Expression, c.Formatted),
		Want: c.Formatted,
	}
	expr, err := tagexpr.Parse(c.Expression)
	if err != nil {
		res.Got = err.Error()
		return res
	}
	res.Got = expr.String()
	if res.Got != c.Formatted {
		return res
	}

	again, err := tagexpr.Parse(res.Got)
	if err != nil {
		res.Got = "reparse: " + err.Error()
		return res
	}
	if s := again.String(); s != c.Formatted {
		res.Got = "reparse: " + s
		return res
	}
	res.Passed = true
	return res
}

// RunEvaluation checks c.Expression against each of its tag sets.
func RunEvaluation(c EvaluationCase) []Result {
	expr, perr := tagexpr.Parse(c.Expression)
	results := make([]Result, 0, len(c.Tests))
	for _, test := range c.Tests {
		res := Result{
			Kind: KindEvaluations,
			Name: fmt.Sprintf("\"%s\" evaluates [%s] to %t", c.Expression, strings.Join(test.Variables, ", "), test.Result),
			Want: strconv.FormatBool(test.Result),
		}
		if perr != nil {
			res.Got = perr.Error()
		} else {
			got := tagexpr.Evaluate(expr, test.Variables)
			res.Got = strconv.FormatBool(got)
			res.Passed = got == test.Result
		}
		results = append(results, res)
	}
	return results
}

// RunError checks that c.Expression fails to parse with exactly c.Error.
func RunError(c ErrorCase) Result {
	res := Result{
		Kind: KindErrors,
		Name: fmt.Sprintf("fails to parse \"%s\"", c.Expression),
		Want: c.Error,
	}
	expr, err := tagexpr.Parse(c.Expression)
	if err == nil {
		res.Got = "parsed as " + expr.String()
		return res
	}
	res.Got = err.Error()
	res.Passed = res.Got == c.Error
	return res
}
