package data

import (
	"github.com/rfd-conformance/rfd-test-harness/data/testmodel"
)

func loadAll[T any](dir string) ([]T, error) {
	sources, err := LoadAllDataFiles(dir)
	if err != nil {
		return nil, err
	}
	ret := make([]T, 0, len(sources))
	for _, source := range sources {
		var item T
		if err := source.ParseInto(&item); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, nil
}

func PrepopScenarios() ([]testmodel.PrepopScenario, error) {
	return loadAll[testmodel.PrepopScenario]("retrieve-form")
}

func SubmitScenarios() ([]testmodel.ContentScenario, error) {
	return loadAll[testmodel.ContentScenario]("submit-form")
}

func ArchiveScenarios() ([]testmodel.ContentScenario, error) {
	return loadAll[testmodel.ContentScenario]("archive-form")
}
