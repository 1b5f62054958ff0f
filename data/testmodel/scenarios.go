// Package testmodel defines the scenario types read from the embedded data files.
package testmodel

import "strings"

// FormIDPlaceholder is replaced with the form ID under test when a scenario is used.
const FormIDPlaceholder = "${formID}"

type PrepopScenario struct {
	Name       string `json:"name"`
	PrepopData string `json:"prepopData"`
	Accepted   bool   `json:"accepted"`
}

// ContentScenario is a form body for SubmitForm or ArchiveForm.
type ContentScenario struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s ContentScenario) ContentFor(formID string) string {
	return strings.ReplaceAll(s.Content, FormIDPlaceholder, formID)
}
