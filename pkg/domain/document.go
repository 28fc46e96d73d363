package domain

import (
	"fmt"
	"time"
)

type DocumentID string

type DocumentKind string

const (
	KindConceptPlan    DocumentKind = "conceptplan"
	KindProjectPlan    DocumentKind = "projectplan"
	KindProgressReport DocumentKind = "progressreport"
	KindStudentReport  DocumentKind = "studentreport"
	KindProjectClosure DocumentKind = "projectclosure"
)

// IsReport reports whether documents of this kind belong to an annual
// reporting cycle rather than being one-per-project.
func (k DocumentKind) IsReport() bool {
	return k == KindProgressReport || k == KindStudentReport
}

func ParseDocumentKind(s string) (DocumentKind, error) {
	switch k := DocumentKind(s); k {
	case KindConceptPlan, KindProjectPlan, KindProgressReport, KindStudentReport, KindProjectClosure:
		return k, nil
	}
	return "", fmt.Errorf("%w: document kind %q", ErrInvalidKind, s)
}

type DocumentStatus string

const (
	DocNew        DocumentStatus = "new"
	DocInReview   DocumentStatus = "inreview"
	DocInApproval DocumentStatus = "inapproval"
	DocRevising   DocumentStatus = "revising"
	DocApproved   DocumentStatus = "approved"
)

// Stage identifies one of the three sequential approval gates.
type Stage int

const (
	StageLead        Stage = 1
	StageArea        Stage = 2
	StageDirectorate Stage = 3
)

func (s Stage) Valid() bool { return s >= StageLead && s <= StageDirectorate }

func (s Stage) String() string {
	switch s {
	case StageLead:
		return "lead"
	case StageArea:
		return "area"
	case StageDirectorate:
		return "directorate"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type Document struct {
	ID                  DocumentID      `json:"id"`
	ProjectID           ProjectID       `json:"project_id"`
	Kind                DocumentKind    `json:"kind"`
	Status              DocumentStatus  `json:"status"`
	LeadApproved        bool            `json:"lead_approved"`
	AreaApproved        bool            `json:"area_approved"`
	DirectorateApproved bool            `json:"directorate_approved"`
	AnnualReportID      *AnnualReportID `json:"annual_report_id,omitempty"`
	CreatedBy           UserID          `json:"created_by"`
	ModifiedBy          UserID          `json:"modified_by"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Gate returns the value of the approval gate for stage.
func (d Document) Gate(stage Stage) bool {
	switch stage {
	case StageLead:
		return d.LeadApproved
	case StageArea:
		return d.AreaApproved
	case StageDirectorate:
		return d.DirectorateApproved
	}
	return false
}

// GateState is the part of a document the approval pipeline mutates.
type GateState struct {
	Status              DocumentStatus `json:"status"`
	LeadApproved        bool           `json:"lead_approved"`
	AreaApproved        bool           `json:"area_approved"`
	DirectorateApproved bool           `json:"directorate_approved"`
}

func (d Document) GateState() GateState {
	return GateState{
		Status:              d.Status,
		LeadApproved:        d.LeadApproved,
		AreaApproved:        d.AreaApproved,
		DirectorateApproved: d.DirectorateApproved,
	}
}

// EmptyRichText is the placeholder stored in every rich-text section of a
// freshly spawned report.
const EmptyRichText = "<p></p>"

// ReportDetail is the kind-specific payload of a progress or student report.
type ReportDetail struct {
	DocumentID     DocumentID        `json:"document_id"`
	ProjectID      ProjectID         `json:"project_id"`
	Kind           DocumentKind      `json:"kind"`
	AnnualReportID AnnualReportID    `json:"annual_report_id"`
	Year           int               `json:"year"`
	Sections       map[string]string `json:"sections"`
}

var progressReportSections = []string{"context", "aims", "progress", "implications", "future"}
var studentReportSections = []string{"progress_report"}

// NewReportDetail builds the detail record for a new report document with
// every section set to EmptyRichText.
func NewReportDetail(doc Document, report AnnualReport) ReportDetail {
	names := progressReportSections
	if doc.Kind == KindStudentReport {
		names = studentReportSections
	}
	sections := make(map[string]string, len(names))
	for _, n := range names {
		sections[n] = EmptyRichText
	}
	return ReportDetail{
		DocumentID:     doc.ID,
		ProjectID:      doc.ProjectID,
		Kind:           doc.Kind,
		AnnualReportID: report.ID,
		Year:           report.Year,
		Sections:       sections,
	}
}

type EventType string

const (
	EventCreated             EventType = "CREATED"
	EventAdvanced            EventType = "ADVANCED"
	EventRecalled            EventType = "RECALLED"
	EventSentBack            EventType = "SENT_BACK"
	EventInvolvementSet      EventType = "INVOLVEMENT_SET"
	EventEndorsementProvided EventType = "ENDORSEMENT_PROVIDED"
)

// DocumentEvent is one entry of a document's governance trail.
type DocumentEvent struct {
	ID           string         `json:"id"`
	DocumentID   DocumentID     `json:"document_id"`
	Type         EventType      `json:"type"`
	Stage        Stage          `json:"stage,omitempty"`
	ActorID      UserID         `json:"actor_id"`
	StatusBefore DocumentStatus `json:"status_before,omitempty"`
	StatusAfter  DocumentStatus `json:"status_after"`
	StateHash    string         `json:"state_hash"`
	Payload      map[string]any `json:"payload,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
