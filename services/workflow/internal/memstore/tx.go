package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/hashicorp/go-memdb"
)

// tx serves both workflow.Reader and workflow.Tx. Records are copied in and
// out so callers never alias what the tree holds.
type tx struct {
	txn   *memdb.Txn
	store *Store
}

func (t *tx) first(table string, args ...any) (any, error) {
	raw, err := t.txn.First(table, PK, args...)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%s %v: %w", table, args, domain.ErrNotFound)
	}
	return raw, nil
}

func (t *tx) Document(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	raw, err := t.first(DocumentTable, string(id))
	if err != nil {
		return domain.Document{}, err
	}
	return *raw.(*domain.Document), nil
}

func (t *tx) Documents(ctx context.Context, f workflow.DocumentFilter) ([]domain.Document, error) {
	projects := setOf(f.ProjectIDs)
	kinds := setOf(f.Kinds)
	it, err := t.txn.Get(DocumentTable, PK)
	if err != nil {
		return nil, err
	}
	var out []domain.Document
	for raw := it.Next(); raw != nil; raw = it.Next() {
		d := raw.(*domain.Document)
		if projects != nil && !projects[d.ProjectID] {
			continue
		}
		if kinds != nil && !kinds[d.Kind] {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (t *tx) Project(ctx context.Context, id domain.ProjectID) (domain.Project, error) {
	raw, err := t.first(ProjectTable, string(id))
	if err != nil {
		return domain.Project{}, err
	}
	return *raw.(*domain.Project), nil
}

func (t *tx) Projects(ctx context.Context, f workflow.ProjectFilter) ([]domain.Project, error) {
	ids := setOf(f.IDs)
	areas := setOf(f.BusinessAreaIDs)
	kinds := setOf(f.Kinds)
	statuses := setOf(f.Statuses)
	excluded := setOf(f.ExcludeStatuses)
	it, err := t.txn.Get(ProjectTable, PK)
	if err != nil {
		return nil, err
	}
	var out []domain.Project
	for raw := it.Next(); raw != nil; raw = it.Next() {
		p := raw.(*domain.Project)
		switch {
		case ids != nil && !ids[p.ID],
			areas != nil && !areas[p.BusinessAreaID],
			kinds != nil && !kinds[p.Kind],
			statuses != nil && !statuses[p.Status],
			excluded[p.Status]:
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (t *tx) Endorsement(ctx context.Context, documentID domain.DocumentID) (domain.Endorsement, error) {
	raw, err := t.first(EndorsementTable, string(documentID))
	if err != nil {
		return domain.Endorsement{}, err
	}
	return *raw.(*domain.Endorsement), nil
}

func (t *tx) ReportDetail(ctx context.Context, documentID domain.DocumentID) (domain.ReportDetail, error) {
	raw, err := t.first(ReportDetailTable, string(documentID))
	if err != nil {
		return domain.ReportDetail{}, err
	}
	return *cloneDetail(*raw.(*domain.ReportDetail)), nil
}

func (t *tx) AnnualReport(ctx context.Context, id domain.AnnualReportID) (domain.AnnualReport, error) {
	raw, err := t.first(AnnualReportTable, string(id))
	if err != nil {
		return domain.AnnualReport{}, err
	}
	return *raw.(*domain.AnnualReport), nil
}

func (t *tx) ReportedProjects(ctx context.Context, kind domain.DocumentKind, year int) (map[domain.ProjectID]bool, error) {
	years := map[domain.AnnualReportID]int{}
	it, err := t.txn.Get(AnnualReportTable, PK)
	if err != nil {
		return nil, err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		r := raw.(*domain.AnnualReport)
		years[r.ID] = r.Year
	}

	out := map[domain.ProjectID]bool{}
	it, err = t.txn.Get(DocumentTable, PK)
	if err != nil {
		return nil, err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		d := raw.(*domain.Document)
		if d.Kind != kind || d.AnnualReportID == nil {
			continue
		}
		if y, ok := years[*d.AnnualReportID]; ok && y == year {
			out[d.ProjectID] = true
		}
	}
	return out, nil
}

func (t *tx) User(ctx context.Context, id domain.UserID) (domain.User, error) {
	raw, err := t.first(UserTable, string(id))
	if err != nil {
		return domain.User{}, err
	}
	return *raw.(*domain.User), nil
}

func (t *tx) BusinessArea(ctx context.Context, id domain.BusinessAreaID) (domain.BusinessArea, error) {
	raw, err := t.first(AreaTable, string(id))
	if err != nil {
		return domain.BusinessArea{}, err
	}
	return *raw.(*domain.BusinessArea), nil
}

func (t *tx) BusinessAreasLedBy(ctx context.Context, userID domain.UserID) ([]domain.BusinessArea, error) {
	it, err := t.txn.Get(AreaTable, byLeader, string(userID))
	if err != nil {
		return nil, err
	}
	var out []domain.BusinessArea
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*domain.BusinessArea))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) Members(ctx context.Context, projectID domain.ProjectID) ([]domain.ProjectMember, error) {
	return t.members(byProject, string(projectID))
}

func (t *tx) MembershipsOf(ctx context.Context, userID domain.UserID) ([]domain.ProjectMember, error) {
	return t.members(byUser, string(userID))
}

func (t *tx) members(index, arg string) ([]domain.ProjectMember, error) {
	it, err := t.txn.Get(MemberTable, index, arg)
	if err != nil {
		return nil, err
	}
	var out []domain.ProjectMember
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*domain.ProjectMember))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (t *tx) Events(ctx context.Context, documentID domain.DocumentID) ([]domain.DocumentEvent, error) {
	it, err := t.txn.Get(EventTable, byDocument, string(documentID))
	if err != nil {
		return nil, err
	}
	var recs []*eventRecord
	for raw := it.Next(); raw != nil; raw = it.Next() {
		recs = append(recs, raw.(*eventRecord))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
	out := make([]domain.DocumentEvent, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.DocumentEvent)
	}
	return out, nil
}

func (t *tx) CreateDocument(ctx context.Context, d domain.Document) error {
	existing, err := t.txn.First(DocumentTable, PK, string(d.ID))
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("document %s: %w", d.ID, domain.ErrConflict)
	}
	if _, err := t.Project(ctx, d.ProjectID); err != nil {
		return err
	}
	return t.txn.Insert(DocumentTable, &d)
}

func (t *tx) SaveDocument(ctx context.Context, d domain.Document) error {
	if _, err := t.Document(ctx, d.ID); err != nil {
		return err
	}
	return t.txn.Insert(DocumentTable, &d)
}

func (t *tx) SetProjectStatus(ctx context.Context, id domain.ProjectID, status domain.ProjectStatus) error {
	p, err := t.Project(ctx, id)
	if err != nil {
		return err
	}
	p.Status = status
	return t.txn.Insert(ProjectTable, &p)
}

func (t *tx) CreateEndorsement(ctx context.Context, e domain.Endorsement) error {
	existing, err := t.txn.First(EndorsementTable, PK, string(e.DocumentID))
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("endorsement %s: %w", e.DocumentID, domain.ErrConflict)
	}
	return t.txn.Insert(EndorsementTable, &e)
}

func (t *tx) SaveEndorsement(ctx context.Context, e domain.Endorsement) error {
	if _, err := t.Endorsement(ctx, e.DocumentID); err != nil {
		return err
	}
	return t.txn.Insert(EndorsementTable, &e)
}

func (t *tx) CreateReportDetail(ctx context.Context, d domain.ReportDetail) error {
	existing, err := t.txn.First(ReportDetailTable, PK, string(d.DocumentID))
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("report detail %s: %w", d.DocumentID, domain.ErrConflict)
	}
	return t.txn.Insert(ReportDetailTable, cloneDetail(d))
}

func (t *tx) AddEvent(ctx context.Context, ev domain.DocumentEvent) error {
	return t.txn.Insert(EventTable, &eventRecord{Seq: t.store.seq.Add(1), DocumentEvent: ev})
}

func cloneDetail(d domain.ReportDetail) *domain.ReportDetail {
	sections := make(map[string]string, len(d.Sections))
	for k, v := range d.Sections {
		sections[k] = v
	}
	d.Sections = sections
	return &d
}

func setOf[T comparable](xs []T) map[T]bool {
	if len(xs) == 0 {
		return nil
	}
	m := make(map[T]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
