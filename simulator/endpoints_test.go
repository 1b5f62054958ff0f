package simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

func TestRegistryMountsUnderApplication(t *testing.T) {
	sub := &recordingSubmitter{}
	registry := NewRegistry("rfd", "http://localhost:8090/", Dependencies{}, sub)
	assert.Equal(t, "/rfd/FormManager", registry.MountPath("FormManager"))

	config := formManagerConfig()
	config.Capture = []string{"workflowData/formID"}
	info, err := registry.Add(config)
	require.NoError(t, err)
	assert.Equal(t, "/rfd/FormManager", info.Path)
	assert.Equal(t, "http://localhost:8090/rfd/FormManager", info.URL)
	assert.Equal(t, TestStaticURL, info.Tests["url-form"])
	assert.Equal(t, []string{"ITI-34 RetrieveForm", "ITI-37 RetrieveClarifications"}, info.Operations)

	httphelpers.WithServer(registry, func(server *httptest.Server) {
		registry.SetBaseURL(server.URL)
		endpoints := registry.Endpoints()
		require.Len(t, endpoints, 1)
		url := endpoints[0].URL
		assert.Equal(t, server.URL+"/rfd/FormManager", url)

		var resp rfd.RetrieveFormResponse
		_, err := soap.NewClient(nil, nil).Call(context.Background(), url, rfd.ActionRetrieveForm,
			retrieveForm("url-form"), &resp)
		require.NoError(t, err)

		resp2, err := http.Get(server.URL + "/rfd/Elsewhere")
		require.NoError(t, err)
		resp2.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	})

	rec := sub.last(t)
	assert.Equal(t, "FormManager", rec.Endpoint)
	assert.Equal(t, string(rfd.ActorFormManager), rec.Actor)
	assert.Equal(t, wslog.Inbound, rec.Direction)
	assert.Equal(t, string(rfd.TransactionRetrieveForm), rec.Transaction)
	assert.Equal(t, rfd.ActionRetrieveForm, rec.Action)
	assert.Equal(t, "url-form", rec.FormID)
	assert.Equal(t, TestStaticURL, rec.TestName)
	assert.Equal(t, http.StatusOK, rec.StatusCode)
	assert.Nil(t, rec.Fault)
	v, _ := rec.Value("RetrieveFormRequest/workflowData/formID")
	assert.Equal(t, "url-form", v)
	v, _ = rec.Value("form/url")
	assert.Equal(t, "http://forms.example.org/f1", v)
}

func TestRegistryRecordsFaults(t *testing.T) {
	sub := &recordingSubmitter{}
	registry := NewRegistry("", "", Dependencies{}, sub)
	_, err := registry.Add(formManagerConfig())
	require.NoError(t, err)

	httphelpers.WithServer(registry, func(server *httptest.Server) {
		_, err := soap.NewClient(nil, nil).Call(context.Background(), server.URL+"/FormManager",
			rfd.ActionRetrieveForm, retrieveForm("bad-url"), nil)
		requireFault(t, err, soap.CodeReceiver, rfd.StatusBadConfiguration)
	})

	rec := sub.last(t)
	require.NotNil(t, rec.Fault)
	assert.Equal(t, string(soap.CodeReceiver), rec.Fault.Code)
	assert.Equal(t, rfd.StatusBadConfiguration, rec.Fault.Status)
	assert.Equal(t, http.StatusInternalServerError, rec.StatusCode)
	assert.Equal(t, wslog.OutcomeFault, rec.Outcome())
}

func TestRegistryAddAndRemove(t *testing.T) {
	registry := NewRegistry("rfd", "", Dependencies{}, nil)
	_, err := registry.Add(formManagerConfig())
	require.NoError(t, err)

	_, err = registry.Add(formManagerConfig())
	assert.Error(t, err)

	other := formManagerConfig()
	other.Name = "Other"
	_, err = registry.Add(other)
	assert.Error(t, err, "path already in use")

	bad := formManagerConfig()
	bad.Name, bad.Path = "Bad", "/Bad"
	bad.Tests.Default = &TestRef{Test: "no-such-test"}
	_, err = registry.Add(bad)
	assert.ErrorIs(t, err, ErrUnknownTest)

	assert.True(t, registry.Remove("FormManager"))
	assert.False(t, registry.Remove("FormManager"))
	assert.Empty(t, registry.Endpoints())

	_, err = registry.Add(other)
	assert.NoError(t, err)
}

func TestEndpointConfigFromYAML(t *testing.T) {
	var config EndpointConfig
	require.NoError(t, yaml.Unmarshal([]byte(`
name: FormManager
actor: form-manager
path: /FormManager
capture: [formID]
tests:
  default: static-url
  forms:
    age-form: {test: prepop-age, params: {url: "http://forms.example.org/f2"}}
`), &config))
	assert.Equal(t, rfd.ActorFormManager, config.Actor)
	require.NotNil(t, config.Tests.Default)
	assert.Equal(t, TestStaticURL, config.Tests.Default.Test)
	ref := config.Tests.Forms["age-form"]
	assert.Equal(t, TestPrepopAge, ref.Test)
	assert.Equal(t, "http://forms.example.org/f2", ref.Params.String("url", ""))
	assert.NoError(t, config.CheckTests())
	assert.ElementsMatch(t, []string{TestStaticURL, TestPrepopAge}, config.TestNames())
}

func TestWSDLListsActorOperations(t *testing.T) {
	doc, err := WSDL(rfd.ActorFormArchiver, "http://h/rfd/Archiver?a=1&b=2")
	require.NoError(t, err)
	s := string(doc)
	assert.Contains(t, s, `name="FormArchiver"`)
	assert.Contains(t, s, `wsaw:Action="urn:ihe:iti:2007:ArchiveForm"`)
	assert.Contains(t, s, `wsaw:Action="urn:ihe:iti:2007:ArchiveFormResponse"`)
	assert.Contains(t, s, `location="http://h/rfd/Archiver?a=1&amp;b=2"`)
	assert.NotContains(t, s, "RetrieveForm")
}
