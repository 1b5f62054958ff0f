package rfd

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionActions(t *testing.T) {
	for _, tx := range AllTransactions() {
		t.Run(string(tx), func(t *testing.T) {
			got, ok := TransactionForAction(tx.Action())
			assert.True(t, ok)
			assert.Equal(t, tx, got)
			assert.Equal(t, tx.Action()+"Response", tx.ResponseAction())

			_, ok = TransactionForAction(tx.ResponseAction())
			assert.False(t, ok)

			got, ok = TransactionForPayload(tx.Operation() + "Request")
			assert.True(t, ok)
			assert.Equal(t, tx, got)
		})
	}
	assert.Equal(t, "urn:ihe:iti:2007:RetrieveFormResponse", TransactionRetrieveForm.ResponseAction())
	assert.Equal(t, "ITI-36 ArchiveForm", TransactionArchiveForm.String())

	_, ok := TransactionForAction("urn:other")
	assert.False(t, ok)
}

func TestActors(t *testing.T) {
	assert.True(t, ActorFormProcessor.Supports(TransactionRetrieveForm))
	assert.True(t, ActorFormProcessor.Supports(TransactionSubmitForm))
	assert.False(t, ActorFormProcessor.Supports(TransactionArchiveForm))
	assert.False(t, ActorFormReceiver.Supports(TransactionRetrieveForm))
	assert.Equal(t, []Transaction{TransactionArchiveForm}, ActorFormArchiver.Transactions())
	assert.Equal(t, "FormManager", ActorFormManager.ServiceName())

	a, err := ParseActor("form-receiver")
	require.NoError(t, err)
	assert.Equal(t, ActorFormReceiver, a)
	_, err = ParseActor("form-filler")
	assert.Error(t, err)
}

func TestFormValidate(t *testing.T) {
	assert.NoError(t, Form{URL: "http://x"}.Validate())
	assert.NoError(t, Form{InstanceID: "1"}.Validate())
	assert.NoError(t, Form{Structured: NewRawXML("<html/>")}.Validate())
	assert.Error(t, Form{}.Validate())
	assert.Error(t, Form{Structured: NewRawXML("  ")}.Validate())
	assert.Error(t, Form{URL: "http://x", InstanceID: "1"}.Validate())
}

func TestRetrieveFormRequestXML(t *testing.T) {
	doc := `<RetrieveFormRequest xmlns="urn:ihe:iti:rfd:2007">
  <prepopData><patient><age>42</age></patient></prepopData>
  <workflowData>
    <formID>age-form</formID>
    <encodedResponse>false</encodedResponse>
    <archiveURL>http://archive</archiveURL>
    <context/>
    <instanceID/>
  </workflowData>
</RetrieveFormRequest>`
	var req RetrieveFormRequest
	require.NoError(t, xml.Unmarshal([]byte(doc), &req))
	assert.Equal(t, "age-form", req.WorkflowData.FormID)
	assert.Equal(t, "http://archive", req.WorkflowData.ArchiveURL)
	assert.False(t, req.WorkflowData.EncodedResponse)
	assert.Contains(t, req.PrepopData.String(), "<age>42</age>")
}

func TestRetrieveFormResponseOmitsUnsetChoices(t *testing.T) {
	data, err := xml.Marshal(RetrieveFormResponse{Form: Form{URL: "http://f"}, ContentType: "text/html"})
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, ">http://f</URL>")
	assert.NotContains(t, s, "Structured")
	assert.NotContains(t, s, "instanceID")
	assert.NotContains(t, s, "responseCode")
}

func TestSubmitFormRequestKeepsContent(t *testing.T) {
	data, err := xml.Marshal(SubmitFormRequest{Content: "<formID>f1</formID><answer>yes</answer>"})
	require.NoError(t, err)

	var req SubmitFormRequest
	require.NoError(t, xml.Unmarshal(data, &req))
	assert.Equal(t, "<formID>f1</formID><answer>yes</answer>", req.Content)
}
