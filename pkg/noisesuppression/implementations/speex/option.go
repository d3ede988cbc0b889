package speex

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Option is a setting that is either disabled or enabled with a value.
// The zero value is disabled.
type Option[T any] struct {
	value   T
	enabled bool
}

func Disabled[T any]() Option[T] {
	return Option[T]{}
}

func Enabled[T any](value T) Option[T] {
	return Option[T]{
		value:   value,
		enabled: true,
	}
}

func (o Option[T]) Get() (T, bool) {
	return o.value, o.enabled
}

func (o Option[T]) IsEnabled() bool {
	return o.enabled
}

func (o Option[T]) String() string {
	if !o.enabled {
		return "disabled"
	}
	return fmt.Sprintf("enabled(%v)", o.value)
}

var _ yaml.Marshaler = Option[int]{}
var _ yaml.Unmarshaler = (*Option[int])(nil)

func (o Option[T]) MarshalYAML() (any, error) {
	if !o.enabled {
		return "disabled", nil
	}
	return o.value, nil
}

func (o *Option[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch strings.ToLower(node.Value) {
		case "disabled", "off", "false", "no", "null", "~", "":
			*o = Disabled[T]()
			return nil
		}
	}

	var value T
	if err := node.Decode(&value); err != nil {
		return fmt.Errorf("unable to decode the value at line %d: %w", node.Line, err)
	}
	*o = Enabled(value)
	return nil
}
