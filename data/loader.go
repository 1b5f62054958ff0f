// Package data provides the embedded scenario files used by the client-side conformance suites.
package data

import (
	"embed"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cast"
)

//go:embed data-files
var dataFilesRoot embed.FS

const dataBasePath = "data-files"

// SourceInfo represents JSON or YAML data that was read from a file, after expanding constants and
// parameters. A file without parameters yields one SourceInfo; a parameterized file yields one per
// parameter set, each with its own version of Data.
type SourceInfo struct {
	FilePath string
	BaseName string
	Params   map[string]interface{}
	Data     []byte
}

func (s SourceInfo) ParseInto(target interface{}) error {
	if err := ParseJSONOrYAML(s.Data, target); err != nil {
		return fmt.Errorf("error parsing %q %s: %w", s.BaseName, s.ParamsString(), err)
	}
	return nil
}

// ParamsString describes the parameter set in a stable order, e.g. "(accepted=true,age=42)".
func (s SourceInfo) ParamsString() string {
	if len(s.Params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ps := ""
	for _, k := range keys {
		if ps != "" {
			ps += ","
		}
		ps += k + "=" + cast.ToString(s.Params[k])
	}
	return "(" + ps + ")"
}

// LoadDataFile reads a data file and performs any constant/parameter substitutions. The path is
// relative to data/data-files.
func LoadDataFile(path string) ([]SourceInfo, error) {
	ret := make([]SourceInfo, 0, 10)
	data, err := dataFilesRoot.ReadFile(dataBasePath + "/" + path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	baseName := filepath.Base(path)
	sources, err := expandSubstitutions(data)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", path, err)
	}
	for _, source := range sources {
		source.FilePath = path
		source.BaseName = baseName
		ret = append(ret, source)
	}
	return ret, nil
}

// LoadAllDataFiles reads every data file in a directory relative to data/data-files.
func LoadAllDataFiles(path string) ([]SourceInfo, error) {
	files, err := dataFilesRoot.ReadDir(dataBasePath + "/" + path)
	if err != nil {
		return nil, err
	}
	var ret []SourceInfo
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		sources, err := LoadDataFile(path + "/" + file.Name())
		if err != nil {
			return nil, err
		}
		ret = append(ret, sources...)
	}
	return ret, nil
}
