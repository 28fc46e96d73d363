package workflow

import (
	"context"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

// ProjectFilter selects projects. Empty fields do not constrain.
type ProjectFilter struct {
	IDs             []domain.ProjectID
	BusinessAreaIDs []domain.BusinessAreaID
	Kinds           []domain.ProjectKind
	Statuses        []domain.ProjectStatus
	ExcludeStatuses []domain.ProjectStatus
}

// DocumentFilter selects documents. Empty fields do not constrain.
type DocumentFilter struct {
	ProjectIDs []domain.ProjectID
	Kinds      []domain.DocumentKind
}

// Reader is the read side of the document store. Single-record lookups
// return domain.ErrNotFound when the record does not exist. List results
// are ordered by id.
type Reader interface {
	Document(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	Documents(ctx context.Context, f DocumentFilter) ([]domain.Document, error)
	Project(ctx context.Context, id domain.ProjectID) (domain.Project, error)
	Projects(ctx context.Context, f ProjectFilter) ([]domain.Project, error)
	Endorsement(ctx context.Context, documentID domain.DocumentID) (domain.Endorsement, error)
	ReportDetail(ctx context.Context, documentID domain.DocumentID) (domain.ReportDetail, error)
	AnnualReport(ctx context.Context, id domain.AnnualReportID) (domain.AnnualReport, error)
	// ReportedProjects returns the projects holding a document of kind
	// linked to an annual report of the given year.
	ReportedProjects(ctx context.Context, kind domain.DocumentKind, year int) (map[domain.ProjectID]bool, error)

	User(ctx context.Context, id domain.UserID) (domain.User, error)
	BusinessArea(ctx context.Context, id domain.BusinessAreaID) (domain.BusinessArea, error)
	BusinessAreasLedBy(ctx context.Context, userID domain.UserID) ([]domain.BusinessArea, error)
	Members(ctx context.Context, projectID domain.ProjectID) ([]domain.ProjectMember, error)
	MembershipsOf(ctx context.Context, userID domain.UserID) ([]domain.ProjectMember, error)

	Events(ctx context.Context, documentID domain.DocumentID) ([]domain.DocumentEvent, error)
}

// Tx is a write transaction. Reads through a Tx observe its own writes and
// lock what they return until the transaction ends.
type Tx interface {
	Reader

	CreateDocument(ctx context.Context, d domain.Document) error
	SaveDocument(ctx context.Context, d domain.Document) error
	SetProjectStatus(ctx context.Context, id domain.ProjectID, status domain.ProjectStatus) error
	CreateEndorsement(ctx context.Context, e domain.Endorsement) error
	SaveEndorsement(ctx context.Context, e domain.Endorsement) error
	CreateReportDetail(ctx context.Context, d domain.ReportDetail) error
	AddEvent(ctx context.Context, ev domain.DocumentEvent) error
}

// Store runs units of work. Update commits when fn returns nil and rolls
// back otherwise, so a failed operation leaves no trace.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}
