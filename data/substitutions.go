package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// substitutionSet maps a variable name to its value. A value is substituted as typed JSON when the
// placeholder is the whole of a quoted string ("${name}"), and as plain text anywhere else.
type substitutionSet map[string]interface{}

func expandSubstitutions(originalData []byte) ([]SourceInfo, error) {
	var substs struct {
		Constants  substitutionSet   `json:"constants"`
		Parameters []json.RawMessage `json:"parameters"`
	}
	if err := ParseJSONOrYAML(originalData, &substs); err != nil {
		return nil, err
	}
	if len(substs.Constants) == 0 && len(substs.Parameters) == 0 {
		return []SourceInfo{
			{Data: originalData},
		}, nil
	}
	parameterSets, err := makeParameterPermutations(substs.Parameters)
	if err != nil {
		return nil, err
	}
	if len(parameterSets) == 0 {
		transformed, err := replaceVariables(originalData, substs.Constants)
		if err != nil {
			return nil, err
		}
		return []SourceInfo{{Data: transformed}}, nil
	}
	ret := make([]SourceInfo, 0, len(parameterSets))
	for _, paramsSet := range parameterSets {
		transformed := originalData
		// constants may refer to parameters and vice versa
		for _, set := range []substitutionSet{substs.Constants, paramsSet, substs.Constants} {
			if transformed, err = replaceVariables(transformed, set); err != nil {
				return nil, err
			}
		}
		ret = append(ret, SourceInfo{Data: transformed, Params: paramsSet})
	}
	return ret, nil
}

// makeParameterPermutations accepts either a list of parameter sets, or a list of lists whose
// cross product is taken.
func makeParameterPermutations(paramsData []json.RawMessage) ([]substitutionSet, error) {
	if len(paramsData) == 0 {
		return nil, nil
	}
	allData, _ := json.Marshal(paramsData)
	switch firstNonSpace(paramsData[0]) {
	case '{':
		var list []substitutionSet
		if err := json.Unmarshal(allData, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '[':
	default:
		return nil, errors.New("unable to parse parameters - must be an array of objects or an array of arrays")
	}
	var lists [][]substitutionSet
	if err := json.Unmarshal(allData, &lists); err != nil {
		return nil, err
	}
	for _, l := range lists {
		if len(l) == 0 {
			return nil, errors.New("parameter lists must not be empty")
		}
	}
	indices := make([]int, len(lists))
	var result []substitutionSet
	for {
		mergedSet := make(substitutionSet)
		for i := 0; i < len(lists); i++ {
			for k, v := range lists[i][indices[i]] {
				mergedSet[k] = v
			}
		}
		result = append(result, mergedSet)
		incrementPos := 0
		for incrementPos < len(lists) {
			indices[incrementPos]++
			if indices[incrementPos] < len(lists[incrementPos]) {
				break
			}
			indices[incrementPos] = 0
			incrementPos++
		}
		if incrementPos == len(lists) {
			return result, nil
		}
	}
}

func firstNonSpace(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func replaceVariables(originalData []byte, substs substitutionSet) ([]byte, error) {
	str := string(originalData)
	for name, value := range substs {
		typed, err := jsonString(value)
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", name, err)
		}
		placeholder := "${" + name + "}"
		str = strings.ReplaceAll(str, `"`+placeholder+`"`, typed)
		interpolated := typed
		if s, ok := value.(string); ok {
			interpolated = s
		}
		str = strings.ReplaceAll(str, placeholder, interpolated)
	}
	return []byte(str), nil
}

// jsonString encodes a value without escaping the XML markup that scenario data is full of.
func jsonString(value interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
