package domain

import "encoding/json"

type ChangeType string

const (
	ChangeTypeAllow ChangeType = "AllowProductProcurement"
	ChangeTypeDeny  ChangeType = "DenyProductProcurement"
)

func (t ChangeType) String() string {
	return string(t)
}

const ChangeSetEntityType = "Experience@1.0"

// A ChangeSet asks the catalog to allow or deny a batch of products in one
// experience.
type ChangeSet struct {
	ChangeType         ChangeType
	ExperienceID       string
	ProductIDs         []string
	ClientRequestToken string
}

type (
	changeSetDetails struct {
		Products []changeSetProducts `json:"Products"`
	}

	changeSetProducts struct {
		Ids []string `json:"Ids"`
	}
)

// Details returns the change details document.
func (cs ChangeSet) Details() (string, error) {
	b, err := json.Marshal(changeSetDetails{
		Products: []changeSetProducts{{Ids: cs.ProductIDs}},
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type ChangeSetStatus string

const (
	ChangeSetPreparing ChangeSetStatus = "PREPARING"
	ChangeSetApplying  ChangeSetStatus = "APPLYING"
	ChangeSetSucceeded ChangeSetStatus = "SUCCEEDED"
	ChangeSetCancelled ChangeSetStatus = "CANCELLED"
	ChangeSetFailed    ChangeSetStatus = "FAILED"
)

// A ChangeSetState is the observed state of a submitted change set.
type ChangeSetState struct {
	ID                 string
	Status             ChangeSetStatus
	FailureCode        string
	FailureDescription string
}
