package service

import (
	"bytes"
	"encoding/json"

	"github.com/clinicore/clinicore-backend/internal/medrecord/repository"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
)

// AnamnesisContent is the content shape of an anamnesis record
type AnamnesisContent struct {
	ChiefComplaint string   `json:"chief_complaint" validate:"required"`
	History        string   `json:"history,omitempty"`
	Allergies      []string `json:"allergies,omitempty"`
	Medications    []string `json:"medications,omitempty"`
	FamilyHistory  string   `json:"family_history,omitempty"`
}

// EvolutionContent is the content shape of an evolution (SOAP) record
type EvolutionContent struct {
	Subjective string `json:"subjective,omitempty"`
	Objective  string `json:"objective,omitempty"`
	Assessment string `json:"assessment" validate:"required"`
	Plan       string `json:"plan,omitempty"`
}

// PrescriptionItem is one prescribed medication
type PrescriptionItem struct {
	Drug      string `json:"drug" validate:"required"`
	Dosage    string `json:"dosage" validate:"required"`
	Frequency string `json:"frequency" validate:"required"`
	Duration  string `json:"duration,omitempty"`
}

// PrescriptionContent is the content shape of a prescription record
type PrescriptionContent struct {
	Items        []PrescriptionItem `json:"items" validate:"required,min=1,dive"`
	Instructions string             `json:"instructions,omitempty"`
}

// ExamRequestItem is one requested exam
type ExamRequestItem struct {
	Name     string `json:"name" validate:"required"`
	TussCode string `json:"tuss_code,omitempty"`
}

// ExamRequestContent is the content shape of an exam request record
type ExamRequestContent struct {
	Exams              []ExamRequestItem `json:"exams" validate:"required,min=1,dive"`
	ClinicalIndication string            `json:"clinical_indication,omitempty"`
}

// CertificateContent is the content shape of a medical certificate
type CertificateContent struct {
	Text    string `json:"text" validate:"required"`
	DaysOff int    `json:"days_off,omitempty" validate:"omitempty,min=0,max=365"`
}

// ReferralContent is the content shape of a referral record
type ReferralContent struct {
	Specialty string `json:"specialty" validate:"required"`
	Reason    string `json:"reason,omitempty"`
	Urgency   string `json:"urgency,omitempty" validate:"omitempty,oneof=routine priority urgent"`
}

// validateContent parses the raw content into the typed shape of its kind and
// validates it. Unknown kinds and unknown content fields are rejected.
func validateContent(kind string, raw json.RawMessage) error {
	var target interface{}
	switch kind {
	case repository.KindAnamnesis:
		target = &AnamnesisContent{}
	case repository.KindEvolution:
		target = &EvolutionContent{}
	case repository.KindPrescription:
		target = &PrescriptionContent{}
	case repository.KindExamRequest:
		target = &ExamRequestContent{}
	case repository.KindCertificate:
		target = &CertificateContent{}
	case repository.KindReferral:
		target = &ReferralContent{}
	default:
		return errors.Validation(map[string]string{"kind": "must be a valid record kind"})
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return errors.Validation(map[string]string{"content": "does not match the shape for kind " + kind})
	}

	return httputil.Validate(target)
}
