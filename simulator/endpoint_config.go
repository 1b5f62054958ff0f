package simulator

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
)

// TestRef names a registered test and the parameters to create it with. In YAML it may also be
// written as a bare test name.
type TestRef struct {
	Test   string `yaml:"test" validate:"required"`
	Params Params `yaml:"params"`
}

func (r *TestRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Test = node.Value
		return nil
	}
	type plain TestRef
	return node.Decode((*plain)(r))
}

type TestsConfig struct {
	Default *TestRef           `yaml:"default"`
	Forms   map[string]TestRef `yaml:"forms" validate:"dive"`
}

// EndpointConfig describes one simulator endpoint.
type EndpointConfig struct {
	Name    string      `yaml:"name" validate:"required"`
	Actor   rfd.Actor   `yaml:"actor" validate:"required,oneof=form-manager form-receiver form-processor form-archiver"`
	Path    string      `yaml:"path" validate:"required,startswith=/"`
	Capture []string    `yaml:"capture"`
	Tests   TestsConfig `yaml:"tests"`
}

// TestNames returns every test name the endpoint refers to.
func (e EndpointConfig) TestNames() []string {
	var ret []string
	if e.Tests.Default != nil {
		ret = append(ret, e.Tests.Default.Test)
	}
	for _, ref := range e.Tests.Forms {
		ret = append(ret, ref.Test)
	}
	return ret
}

// CheckTests verifies that every referenced test is registered.
func (e EndpointConfig) CheckTests() error {
	for _, name := range e.TestNames() {
		if !Registered(name) {
			return fmt.Errorf("endpoint %q: %w %q", e.Name, ErrUnknownTest, name)
		}
	}
	return nil
}
