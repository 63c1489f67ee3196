package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharedFixtures = "../tagexpr/testdata"

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetect(t *testing.T) {
	tests := []struct {
		file string
		want Kind
	}{
		{"parsing.yml", KindParsing},
		{"evaluations.yml", KindEvaluations},
		{"errors.yml", KindErrors},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			kind, err := Detect(filepath.Join(sharedFixtures, tt.file))
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestDetectInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "empty fixture"},
		{"mapping", "expression: a\n", "must be a sequence"},
		{"no cases", "[]\n", "no cases"},
		{"scalars", "- a\n- b\n", "must be mappings"},
		{"unknown keys", "- expression: a\n  output: b\n", "cannot tell fixture kind"},
		{"bad yaml", "- expression: [\n", "invalid YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(writeFixture(t, tt.content))
			require.Error(t, err)
			var lerr *LoadError
			require.ErrorAs(t, err, &lerr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetectMissingFile(t *testing.T) {
	_, err := Detect(filepath.Join(t.TempDir(), "missing.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWrongKind(t *testing.T) {
	_, err := LoadErrors(filepath.Join(sharedFixtures, "parsing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a parsing fixture, want errors")
}

func TestLoadEvaluations(t *testing.T) {
	path := writeFixture(t, `
- expression: 'not x'
  tests:
    - variables: ['x']
      result: false
    - variables: []
      result: true
`)
	cases, err := LoadEvaluations(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "not x", cases[0].Expression)
	require.Len(t, cases[0].Tests, 2)
	assert.Equal(t, []string{"x"}, cases[0].Tests[0].Variables)
	assert.False(t, cases[0].Tests[0].Result)
	assert.True(t, cases[0].Tests[1].Result)
}

func TestRunSharedFixtures(t *testing.T) {
	for _, file := range []string{"parsing.yml", "evaluations.yml", "errors.yml"} {
		t.Run(file, func(t *testing.T) {
			report, err := Run(filepath.Join(sharedFixtures, file))
			require.NoError(t, err)
			require.NotEmpty(t, report.Results)
			for _, res := range report.Failures() {
				t.Errorf("%s: got %q, want %q", res.Name, res.Got, res.Want)
			}
			assert.True(t, report.OK())
		})
	}
}

func TestRunReportsFailures(t *testing.T) {
	path := writeFixture(t, `
- expression: 'a and b'
  formatted: '( a and b )'
- expression: 'a or b'
  formatted: 'a or b'
- expression: 'a b'
  formatted: 'a b'
`)
	report, err := Run(path)
	require.NoError(t, err)
	assert.Equal(t, KindParsing, report.Kind)
	assert.Equal(t, 1, report.Passed())
	assert.False(t, report.OK())

	failures := report.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "( a or b )", failures[0].Got)
	assert.Contains(t, failures[1].Got, "Expected operator")
}

func TestRunError(t *testing.T) {
	res := RunError(ErrorCase{Expression: "a", Error: "anything"})
	assert.False(t, res.Passed)
	assert.Equal(t, "parsed as a", res.Got)

	res = RunError(ErrorCase{
		Expression: "(a",
		Error:      `Tag expression "(a" could not be parsed because of syntax error: Unmatched (.`,
	})
	assert.True(t, res.Passed)
}

func TestRunEvaluationParseFailure(t *testing.T) {
	results := RunEvaluation(EvaluationCase{
		Expression: "a and",
		Tests:      []EvaluationTest{{Variables: []string{"a"}, Result: true}},
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Got, "Expected operand")
}
