package store

import (
	"context"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	q    querier
	lock bool
}

func (t *pgTx) forUpdate() string {
	if t.lock {
		return " FOR UPDATE"
	}
	return ""
}

const selectDocument = `
SELECT id,project_id,kind,status,lead_approved,area_approved,directorate_approved,
       annual_report_id,created_by,modified_by,created_at,updated_at
FROM documents`

func scanDocument(row pgx.Row) (domain.Document, error) {
	var d domain.Document
	var reportID *string
	err := row.Scan(&d.ID, &d.ProjectID, &d.Kind, &d.Status, &d.LeadApproved, &d.AreaApproved, &d.DirectorateApproved,
		&reportID, &d.CreatedBy, &d.ModifiedBy, &d.CreatedAt, &d.UpdatedAt)
	if reportID != nil {
		id := domain.AnnualReportID(*reportID)
		d.AnnualReportID = &id
	}
	return d, err
}

func (t *pgTx) Document(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	d, err := scanDocument(t.q.QueryRow(ctx, selectDocument+` WHERE id=$1`+t.forUpdate(), string(id)))
	return d, notFound(err, "document "+string(id))
}

func (t *pgTx) Documents(ctx context.Context, f workflow.DocumentFilter) ([]domain.Document, error) {
	rows, err := t.q.Query(ctx, selectDocument+`
WHERE ($1::text[] IS NULL OR project_id = ANY($1))
  AND ($2::text[] IS NULL OR kind = ANY($2))
ORDER BY id`, strs(f.ProjectIDs), strs(f.Kinds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const selectProject = `SELECT id,title,kind,status,business_area_id FROM projects`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Title, &p.Kind, &p.Status, &p.BusinessAreaID)
	return p, err
}

func (t *pgTx) Project(ctx context.Context, id domain.ProjectID) (domain.Project, error) {
	p, err := scanProject(t.q.QueryRow(ctx, selectProject+` WHERE id=$1`+t.forUpdate(), string(id)))
	return p, notFound(err, "project "+string(id))
}

func (t *pgTx) Projects(ctx context.Context, f workflow.ProjectFilter) ([]domain.Project, error) {
	rows, err := t.q.Query(ctx, selectProject+`
WHERE ($1::text[] IS NULL OR id = ANY($1))
  AND ($2::text[] IS NULL OR business_area_id = ANY($2))
  AND ($3::text[] IS NULL OR kind = ANY($3))
  AND ($4::text[] IS NULL OR status = ANY($4))
  AND ($5::text[] IS NULL OR NOT (status = ANY($5)))
ORDER BY id`, strs(f.IDs), strs(f.BusinessAreaIDs), strs(f.Kinds), strs(f.Statuses), strs(f.ExcludeStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) Endorsement(ctx context.Context, documentID domain.DocumentID) (domain.Endorsement, error) {
	var e domain.Endorsement
	err := t.q.QueryRow(ctx, `
SELECT document_id,involves_animals,involves_plants,
       biometrician_required,biometrician_provided,
       animal_ethics_required,animal_ethics_provided,
       herbarium_required,herbarium_provided
FROM endorsements WHERE document_id=$1`+t.forUpdate(), string(documentID)).Scan(
		&e.DocumentID, &e.InvolvesAnimals, &e.InvolvesPlants,
		&e.Biometrician.Required, &e.Biometrician.Provided,
		&e.AnimalEthics.Required, &e.AnimalEthics.Provided,
		&e.Herbarium.Required, &e.Herbarium.Provided)
	return e, notFound(err, "endorsement "+string(documentID))
}

func (t *pgTx) ReportDetail(ctx context.Context, documentID domain.DocumentID) (domain.ReportDetail, error) {
	var d domain.ReportDetail
	err := t.q.QueryRow(ctx, `
SELECT document_id,project_id,kind,annual_report_id,year,sections
FROM report_details WHERE document_id=$1`, string(documentID)).Scan(
		&d.DocumentID, &d.ProjectID, &d.Kind, &d.AnnualReportID, &d.Year, &d.Sections)
	return d, notFound(err, "report detail "+string(documentID))
}

func (t *pgTx) AnnualReport(ctx context.Context, id domain.AnnualReportID) (domain.AnnualReport, error) {
	var r domain.AnnualReport
	err := t.q.QueryRow(ctx, `SELECT id,year FROM annual_reports WHERE id=$1`, string(id)).Scan(&r.ID, &r.Year)
	return r, notFound(err, "annual report "+string(id))
}

func (t *pgTx) ReportedProjects(ctx context.Context, kind domain.DocumentKind, year int) (map[domain.ProjectID]bool, error) {
	rows, err := t.q.Query(ctx, `
SELECT DISTINCT d.project_id
FROM documents d
JOIN annual_reports r ON r.id=d.annual_report_id
WHERE d.kind=$1 AND r.year=$2`, string(kind), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.ProjectID]bool{}
	for rows.Next() {
		var id domain.ProjectID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

const selectUser = `
SELECT id,display_name,business_area_id,is_biometrician,is_herbarium_curator,is_aec,is_superuser,COALESCE(token_hash,'')
FROM users`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.DisplayName, &u.BusinessAreaID, &u.IsBiometrician, &u.IsHerbariumCurator, &u.IsAEC, &u.IsSuperuser, &u.TokenHash)
	return u, err
}

func (t *pgTx) User(ctx context.Context, id domain.UserID) (domain.User, error) {
	u, err := scanUser(t.q.QueryRow(ctx, selectUser+` WHERE id=$1`, string(id)))
	return u, notFound(err, "user "+string(id))
}

func (t *pgTx) BusinessArea(ctx context.Context, id domain.BusinessAreaID) (domain.BusinessArea, error) {
	var a domain.BusinessArea
	err := t.q.QueryRow(ctx, `SELECT id,name,leader_id FROM business_areas WHERE id=$1`, string(id)).Scan(&a.ID, &a.Name, &a.LeaderID)
	return a, notFound(err, "business area "+string(id))
}

func (t *pgTx) BusinessAreasLedBy(ctx context.Context, userID domain.UserID) ([]domain.BusinessArea, error) {
	rows, err := t.q.Query(ctx, `SELECT id,name,leader_id FROM business_areas WHERE leader_id=$1 ORDER BY id`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.BusinessArea
	for rows.Next() {
		var a domain.BusinessArea
		if err := rows.Scan(&a.ID, &a.Name, &a.LeaderID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) Members(ctx context.Context, projectID domain.ProjectID) ([]domain.ProjectMember, error) {
	return t.members(ctx, `project_id=$1`, string(projectID))
}

func (t *pgTx) MembershipsOf(ctx context.Context, userID domain.UserID) ([]domain.ProjectMember, error) {
	return t.members(ctx, `user_id=$1`, string(userID))
}

func (t *pgTx) members(ctx context.Context, where, arg string) ([]domain.ProjectMember, error) {
	rows, err := t.q.Query(ctx, `
SELECT project_id,user_id,role,is_leader
FROM project_members
WHERE `+where+`
ORDER BY project_id,user_id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.IsLeader); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *pgTx) Events(ctx context.Context, documentID domain.DocumentID) ([]domain.DocumentEvent, error) {
	rows, err := t.q.Query(ctx, `
SELECT event_id,document_id,type,stage,actor_id,status_before,status_after,state_hash,payload,occurred_at
FROM document_events
WHERE document_id=$1
ORDER BY seq`, string(documentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DocumentEvent
	for rows.Next() {
		var ev domain.DocumentEvent
		var stage int
		if err := rows.Scan(&ev.ID, &ev.DocumentID, &ev.Type, &stage, &ev.ActorID, &ev.StatusBefore, &ev.StatusAfter, &ev.StateHash, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.Stage = domain.Stage(stage)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateDocument(ctx context.Context, d domain.Document) error {
	var reportID *string
	if d.AnnualReportID != nil {
		s := string(*d.AnnualReportID)
		reportID = &s
	}
	_, err := t.q.Exec(ctx, `
INSERT INTO documents(id,project_id,kind,status,lead_approved,area_approved,directorate_approved,
                      annual_report_id,created_by,modified_by,created_at,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, string(d.ID), string(d.ProjectID), string(d.Kind), string(d.Status), d.LeadApproved, d.AreaApproved, d.DirectorateApproved,
		reportID, string(d.CreatedBy), string(d.ModifiedBy), d.CreatedAt, d.UpdatedAt)
	return conflict(err, "document "+string(d.ID))
}

func (t *pgTx) SaveDocument(ctx context.Context, d domain.Document) error {
	tag, err := t.q.Exec(ctx, `
UPDATE documents
SET status=$2,lead_approved=$3,area_approved=$4,directorate_approved=$5,modified_by=$6,updated_at=$7
WHERE id=$1
`, string(d.ID), string(d.Status), d.LeadApproved, d.AreaApproved, d.DirectorateApproved, string(d.ModifiedBy), d.UpdatedAt)
	return affected(tag, err, "document "+string(d.ID))
}

func (t *pgTx) SetProjectStatus(ctx context.Context, id domain.ProjectID, status domain.ProjectStatus) error {
	tag, err := t.q.Exec(ctx, `UPDATE projects SET status=$2 WHERE id=$1`, string(id), string(status))
	return affected(tag, err, "project "+string(id))
}

func (t *pgTx) CreateEndorsement(ctx context.Context, e domain.Endorsement) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO endorsements(document_id,involves_animals,involves_plants,
  biometrician_required,biometrician_provided,animal_ethics_required,animal_ethics_provided,
  herbarium_required,herbarium_provided)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, string(e.DocumentID), e.InvolvesAnimals, e.InvolvesPlants,
		e.Biometrician.Required, e.Biometrician.Provided, e.AnimalEthics.Required, e.AnimalEthics.Provided,
		e.Herbarium.Required, e.Herbarium.Provided)
	return conflict(err, "endorsement "+string(e.DocumentID))
}

func (t *pgTx) SaveEndorsement(ctx context.Context, e domain.Endorsement) error {
	tag, err := t.q.Exec(ctx, `
UPDATE endorsements
SET involves_animals=$2,involves_plants=$3,
    biometrician_required=$4,biometrician_provided=$5,
    animal_ethics_required=$6,animal_ethics_provided=$7,
    herbarium_required=$8,herbarium_provided=$9
WHERE document_id=$1
`, string(e.DocumentID), e.InvolvesAnimals, e.InvolvesPlants,
		e.Biometrician.Required, e.Biometrician.Provided, e.AnimalEthics.Required, e.AnimalEthics.Provided,
		e.Herbarium.Required, e.Herbarium.Provided)
	return affected(tag, err, "endorsement "+string(e.DocumentID))
}

func (t *pgTx) CreateReportDetail(ctx context.Context, d domain.ReportDetail) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO report_details(document_id,project_id,kind,annual_report_id,year,sections)
VALUES($1,$2,$3,$4,$5,$6)
`, string(d.DocumentID), string(d.ProjectID), string(d.Kind), string(d.AnnualReportID), d.Year, d.Sections)
	return conflict(err, "report detail "+string(d.DocumentID))
}

func (t *pgTx) AddEvent(ctx context.Context, ev domain.DocumentEvent) error {
	_, err := t.q.Exec(ctx, `
INSERT INTO document_events(event_id,document_id,type,stage,actor_id,status_before,status_after,state_hash,payload,occurred_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, ev.ID, string(ev.DocumentID), string(ev.Type), int(ev.Stage), string(ev.ActorID), string(ev.StatusBefore), string(ev.StatusAfter),
		ev.StateHash, ev.Payload, ev.OccurredAt)
	return err
}

func affected(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

// strs converts named string ids for array parameters; nil stays nil so the
// filter clause is skipped.
func strs[T ~string](xs []T) []string {
	if len(xs) == 0 {
		return nil
	}
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}
