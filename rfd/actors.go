package rfd

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Actor names an RFD actor played by a simulator endpoint or by a system under test. The same
// names are used as capability strings in the SUT description.
type Actor string

const (
	ActorFormManager   Actor = "form-manager"
	ActorFormReceiver  Actor = "form-receiver"
	ActorFormProcessor Actor = "form-processor"
	ActorFormArchiver  Actor = "form-archiver"
)

// CapabilityClarifications marks a Form Manager that implements the optional ITI-37 transaction.
const CapabilityClarifications = "clarifications"

var actorTransactions = map[Actor][]Transaction{
	ActorFormManager:   {TransactionRetrieveForm, TransactionRetrieveClarifications},
	ActorFormReceiver:  {TransactionSubmitForm},
	ActorFormProcessor: {TransactionRetrieveForm, TransactionSubmitForm, TransactionRetrieveClarifications},
	ActorFormArchiver:  {TransactionArchiveForm},
}

var actorServiceNames = map[Actor]string{
	ActorFormManager:   "FormManager",
	ActorFormReceiver:  "FormReceiver",
	ActorFormProcessor: "FormProcessor",
	ActorFormArchiver:  "FormArchiver",
}

func AllActors() []Actor {
	return []Actor{ActorFormManager, ActorFormReceiver, ActorFormProcessor, ActorFormArchiver}
}

func ParseActor(s string) (Actor, error) {
	a := Actor(s)
	if _, ok := actorTransactions[a]; !ok {
		return "", fmt.Errorf("unknown actor %q", s)
	}
	return a, nil
}

// Transactions returns the transactions the actor answers, in numeric order.
func (a Actor) Transactions() []Transaction {
	return append([]Transaction(nil), actorTransactions[a]...)
}

func (a Actor) Supports(t Transaction) bool {
	return slices.Contains(actorTransactions[a], t)
}

// ServiceName is the WSDL service name for the actor, e.g. "FormManager".
func (a Actor) ServiceName() string { return actorServiceNames[a] }
