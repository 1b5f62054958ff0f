// Package rfd contains the wire types and constants of the IHE Retrieve Form for Data-capture
// profile: actions, actor names, and the request/response payloads of ITI-34 through ITI-37.
package rfd

import "fmt"

const Namespace = "urn:ihe:iti:rfd:2007"

// Transaction is an IHE transaction number such as "ITI-34".
type Transaction string

const (
	TransactionRetrieveForm           Transaction = "ITI-34"
	TransactionSubmitForm             Transaction = "ITI-35"
	TransactionArchiveForm            Transaction = "ITI-36"
	TransactionRetrieveClarifications Transaction = "ITI-37"
)

const (
	ActionRetrieveForm           = "urn:ihe:iti:2007:RetrieveForm"
	ActionSubmitForm             = "urn:ihe:iti:2007:SubmitForm"
	ActionArchiveForm            = "urn:ihe:iti:2007:ArchiveForm"
	ActionRetrieveClarifications = "urn:ihe:iti:2007:RetrieveClarifications"

	responseSuffix = "Response"
)

// Fault subcodes used by the simulators.
const (
	StatusUnknownFormID           = "UnknownFormID"
	StatusActionNotSupported      = "ActionNotSupported"
	StatusOperationNotImplemented = "OperationNotImplemented"
	StatusInvalidRequest          = "InvalidRequest"
	StatusInvalidPrepopData       = "InvalidPrepopData"
	StatusBadConfiguration        = "BadConfiguration"
	StatusArchiveFailed           = "ArchiveFailed"
)

var allTransactions = []Transaction{
	TransactionRetrieveForm,
	TransactionSubmitForm,
	TransactionArchiveForm,
	TransactionRetrieveClarifications,
}

var actionsByTransaction = map[Transaction]string{
	TransactionRetrieveForm:           ActionRetrieveForm,
	TransactionSubmitForm:             ActionSubmitForm,
	TransactionArchiveForm:            ActionArchiveForm,
	TransactionRetrieveClarifications: ActionRetrieveClarifications,
}

var operationNames = map[Transaction]string{
	TransactionRetrieveForm:           "RetrieveForm",
	TransactionSubmitForm:             "SubmitForm",
	TransactionArchiveForm:            "ArchiveForm",
	TransactionRetrieveClarifications: "RetrieveClarifications",
}

// AllTransactions returns the four RFD transactions in numeric order.
func AllTransactions() []Transaction {
	return append([]Transaction(nil), allTransactions...)
}

func (t Transaction) Action() string { return actionsByTransaction[t] }

func (t Transaction) ResponseAction() string {
	if a := actionsByTransaction[t]; a != "" {
		return a + responseSuffix
	}
	return ""
}

// Operation is the WSDL operation name, e.g. "RetrieveForm".
func (t Transaction) Operation() string { return operationNames[t] }

func (t Transaction) String() string {
	if op := operationNames[t]; op != "" {
		return fmt.Sprintf("%s %s", string(t), op)
	}
	return string(t)
}

// TransactionForAction maps a request action URI to its transaction. Response actions are not
// recognized.
func TransactionForAction(action string) (Transaction, bool) {
	for t, a := range actionsByTransaction {
		if a == action {
			return t, true
		}
	}
	return "", false
}

// TransactionForPayload maps the local name of a request payload element, such as
// "RetrieveFormRequest", to its transaction. It is used when a request carries no action.
func TransactionForPayload(localName string) (Transaction, bool) {
	for t, op := range operationNames {
		if op+"Request" == localName {
			return t, true
		}
	}
	return "", false
}
