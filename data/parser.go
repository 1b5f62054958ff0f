package data

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSONOrYAML works like json.Unmarshal, but YAML input is first converted to JSON so that
// scenario types only need json tags.
func ParseJSONOrYAML(data []byte, target interface{}) error {
	if json.Valid(data) {
		return json.Unmarshal(data, target)
	}
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	normalized, err := toJSONCompatible(raw)
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

// toJSONCompatible rewrites the generic maps yaml.v3 may produce for non-string keys.
func toJSONCompatible(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			converted, err := toJSONCompatible(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			converted, err := toJSONCompatible(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			s, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("YAML data contained a map key of type %T; only string keys are allowed", key)
			}
			converted, err := toJSONCompatible(item)
			if err != nil {
				return nil, err
			}
			out[s] = converted
		}
		return out, nil
	default:
		return value, nil
	}
}
