// Package fixture loads and runs tag expression conformance fixtures.
//
// Fixtures are YAML sequences in one of three shapes:
//
//	parsing:     - {expression: 'a and b', formatted: '( a and b )'}
//	evaluations: - {expression: 'not x', tests: [{variables: [x], result: false}]}
//	errors:      - {expression: 'a b', error: 'Tag expression "a b" could not ...'}
package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxFixtureSize is the largest fixture file accepted, in bytes.
const MaxFixtureSize = 4 * 1024 * 1024

// Kind identifies the shape of a fixture file.
type Kind int

const (
	KindUnknown Kind = iota
	KindParsing
	KindEvaluations
	KindErrors
)

func (k Kind) String() string {
	switch k {
	case KindParsing:
		return "parsing"
	case KindEvaluations:
		return "evaluations"
	case KindErrors:
		return "errors"
	default:
		return "unknown"
	}
}

// ParsingCase expects Expression to format as Formatted.
type ParsingCase struct {
	Expression string `yaml:"expression"`
	Formatted  string `yaml:"formatted"`
}

// EvaluationCase checks one expression against several tag sets.
type EvaluationCase struct {
	Expression string           `yaml:"expression"`
	Tests      []EvaluationTest `yaml:"tests"`
}

// EvaluationTest is a tag set and the expected result.
type EvaluationTest struct {
	Variables []string `yaml:"variables"`
	Result    bool     `yaml:"result"`
}

// ErrorCase expects Expression to fail with exactly Error.
type ErrorCase struct {
	Expression string `yaml:"expression"`
	Error      string `yaml:"error"`
}

// LoadError describes a fixture file that could not be read or decoded.
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("fixture %s: %s", e.Path, e.Message)
}

// LoadParsing reads a parsing fixture.
func LoadParsing(path string) ([]ParsingCase, error) {
	var cases []ParsingCase
	if err := load(path, KindParsing, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// LoadEvaluations reads an evaluations fixture.
func LoadEvaluations(path string) ([]EvaluationCase, error) {
	var cases []EvaluationCase
	if err := load(path, KindEvaluations, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// LoadErrors reads an errors fixture.
func LoadErrors(path string) ([]ErrorCase, error) {
	var cases []ErrorCase
	if err := load(path, KindErrors, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// Detect reports the kind of the fixture at path from the keys of its
// first entry.
func Detect(path string) (Kind, error) {
	root, err := readRoot(path)
	if err != nil {
		return KindUnknown, err
	}
	return detect(path, root)
}

func load(path string, want Kind, v any) error {
	root, err := readRoot(path)
	if err != nil {
		return err
	}
	kind, err := detect(path, root)
	if err != nil {
		return err
	}
	if kind != want {
		return &LoadError{Path: path, Message: fmt.Sprintf("is a %s fixture, want %s", kind, want)}
	}
	if err := root.Decode(v); err != nil {
		return &LoadError{Path: path, Message: fmt.Sprintf("invalid %s fixture: %v", want, err)}
	}
	return nil
}

// readRoot returns the top-level sequence of the fixture file.
func readRoot(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFixtureSize {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("size %d exceeds maximum %d bytes", len(data), MaxFixtureSize)}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &LoadError{Path: path, Message: "empty fixture"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, &LoadError{Path: path, Message: "fixture must be a sequence"}
	}
	return root, nil
}

func detect(path string, root *yaml.Node) (Kind, error) {
	if len(root.Content) == 0 {
		return KindUnknown, &LoadError{Path: path, Message: "fixture has no cases"}
	}
	first := root.Content[0]
	if first.Kind != yaml.MappingNode {
		return KindUnknown, &LoadError{Path: path, Message: "fixture cases must be mappings"}
	}
	for i := 0; i+1 < len(first.Content); i += 2 {
		switch first.Content[i].Value {
		case "formatted":
			return KindParsing, nil
		case "tests":
			return KindEvaluations, nil
		case "error":
			return KindErrors, nil
		}
	}
	return KindUnknown, &LoadError{Path: path, Message: "cannot tell fixture kind: first case has no formatted, tests or error key"}
}
