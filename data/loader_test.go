package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/data/testmodel"
)

func TestFileEmbedding(t *testing.T) {
	files, err := dataFilesRoot.ReadDir(dataBasePath + "/retrieve-form")
	assert.NoError(t, err)
	assert.NotEqual(t, 0, len(files))
}

func TestPrepopScenarios(t *testing.T) {
	scenarios, err := PrepopScenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 7)

	byName := make(map[string]testmodel.PrepopScenario)
	for _, s := range scenarios {
		byName[s.Name] = s
	}
	assert.True(t, byName["age 42"].Accepted)
	assert.Equal(t, `<patient xmlns="urn:example:patient"><age>42</age></patient>`, byName["age 42"].PrepopData)
	assert.False(t, byName["age 86"].Accepted)
	assert.False(t, byName["age forty"].Accepted)
}

func TestContentScenarios(t *testing.T) {
	submit, err := SubmitScenarios()
	require.NoError(t, err)
	require.Len(t, submit, 3)
	assert.Equal(t, "form ID only", submit[0].Name)
	assert.Equal(t, `<form xmlns="urn:example:form"><formID>f1</formID></form>`, submit[0].ContentFor("f1"))

	archive, err := ArchiveScenarios()
	require.NoError(t, err)
	assert.Len(t, archive, 2)
}

func TestParamsString(t *testing.T) {
	s := SourceInfo{Params: map[string]interface{}{"b": 2, "a": "x"}}
	assert.Equal(t, "(a=x,b=2)", s.ParamsString())
	assert.Equal(t, "", SourceInfo{}.ParamsString())
}
