package workflow

import (
	"context"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"

	"github.com/hashicorp/go-multierror"
)

type SpawnFailure struct {
	ProjectID domain.ProjectID `json:"project_id"`
	Reason    string           `json:"reason"`
}

// SpawnResult reports a reporting-cycle batch. Projects that stopped being
// eligible between the scan and their own transaction are listed in Skipped.
type SpawnResult struct {
	AnnualReportID domain.AnnualReportID `json:"annual_report_id"`
	Year           int                   `json:"year"`
	Created        []domain.DocumentID   `json:"created"`
	Failed         []SpawnFailure        `json:"failed"`
	Skipped        []domain.ProjectID    `json:"skipped"`
}

// Err folds the per-project failures into one error, or nil.
func (r SpawnResult) Err() error {
	var result *multierror.Error
	for _, f := range r.Failed {
		result = multierror.Append(result, fmt.Errorf("project %s: %s", f.ProjectID, f.Reason))
	}
	return result.ErrorOrNil()
}

// reportKindFor is the report a project files each cycle, if any.
func reportKindFor(p domain.Project) (domain.DocumentKind, bool) {
	if !p.Status.IsActive() {
		return "", false
	}
	switch p.Kind {
	case domain.ProjectScience, domain.ProjectCoreFunction:
		return domain.KindProgressReport, true
	case domain.ProjectStudent:
		return domain.KindStudentReport, true
	}
	return "", false
}

func hasApprovedPlan(ctx context.Context, r Reader, projectID domain.ProjectID) (bool, error) {
	plans, err := r.Documents(ctx, DocumentFilter{ProjectIDs: []domain.ProjectID{projectID}, Kinds: []domain.DocumentKind{domain.KindProjectPlan}})
	if err != nil {
		return false, err
	}
	for _, d := range plans {
		if d.Status == domain.DocApproved {
			return true, nil
		}
	}
	return false, nil
}

// eligible decides whether p gets a report for year. reported may be nil,
// in which case the store is asked directly.
func eligible(ctx context.Context, r Reader, p domain.Project, year int, reported map[domain.DocumentKind]map[domain.ProjectID]bool) (domain.DocumentKind, bool, error) {
	kind, ok := reportKindFor(p)
	if !ok {
		return "", false, nil
	}
	seen, ok := reported[kind]
	if !ok {
		var err error
		seen, err = r.ReportedProjects(ctx, kind, year)
		if err != nil {
			return "", false, err
		}
	}
	if seen[p.ID] {
		return "", false, nil
	}
	if kind == domain.KindProgressReport {
		ok, err := hasApprovedPlan(ctx, r, p.ID)
		if err != nil || !ok {
			return "", false, err
		}
	}
	return kind, true, nil
}

// SpawnReportingCycle opens the reporting cycle of an annual report: every
// eligible project gets a new progress or student report. Each project is
// its own transaction; a failure is recorded and the batch moves on, so
// earlier projects stay committed. Cancelling ctx stops the batch between
// projects and returns what was done so far together with ctx.Err().
func (s *Service) SpawnReportingCycle(ctx context.Context, reportID domain.AnnualReportID, userID domain.UserID) (SpawnResult, error) {
	var (
		report     domain.AnnualReport
		candidates []domain.Project
		actorID    domain.UserID
	)
	err := s.store.View(ctx, func(r Reader) error {
		actor, err := s.resolveActor(ctx, r, userID)
		if err != nil {
			return err
		}
		if !actor.Can(domain.CapDirectorate) {
			return fmt.Errorf("%w: opening a reporting cycle needs the directorate", domain.ErrForbidden)
		}
		actorID = actor.ID()
		report, err = r.AnnualReport(ctx, reportID)
		if err != nil {
			return err
		}

		projects, err := r.Projects(ctx, ProjectFilter{
			Statuses: domain.ActiveStatuses,
			Kinds:    []domain.ProjectKind{domain.ProjectScience, domain.ProjectCoreFunction, domain.ProjectStudent},
		})
		if err != nil {
			return err
		}
		reported := map[domain.DocumentKind]map[domain.ProjectID]bool{}
		for _, k := range []domain.DocumentKind{domain.KindProgressReport, domain.KindStudentReport} {
			if reported[k], err = r.ReportedProjects(ctx, k, report.Year); err != nil {
				return err
			}
		}
		for _, p := range projects {
			_, ok, err := eligible(ctx, r, p, report.Year, reported)
			if err != nil {
				return err
			}
			if ok {
				candidates = append(candidates, p)
			}
		}
		return nil
	})
	if err != nil {
		return SpawnResult{}, err
	}

	res := SpawnResult{
		AnnualReportID: report.ID,
		Year:           report.Year,
		Created:        []domain.DocumentID{},
		Failed:         []SpawnFailure{},
		Skipped:        []domain.ProjectID{},
	}
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			s.log.Warn().Err(err).Str("annual_report_id", string(report.ID)).Int("created", len(res.Created)).Msg("reporting cycle interrupted")
			return res, err
		}
		docID, created, err := s.spawnOne(ctx, p.ID, report, actorID)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, SpawnFailure{ProjectID: p.ID, Reason: err.Error()})
			s.log.Warn().Err(err).Str("project_id", string(p.ID)).Int("year", report.Year).Msg("report spawn failed")
		case !created:
			res.Skipped = append(res.Skipped, p.ID)
		default:
			res.Created = append(res.Created, docID)
		}
	}

	s.log.Info().
		Str("annual_report_id", string(report.ID)).
		Int("year", report.Year).
		Int("created", len(res.Created)).
		Int("failed", len(res.Failed)).
		Int("skipped", len(res.Skipped)).
		Msg("reporting cycle spawned")
	return res, nil
}

func (s *Service) spawnOne(ctx context.Context, projectID domain.ProjectID, report domain.AnnualReport, actorID domain.UserID) (domain.DocumentID, bool, error) {
	var id domain.DocumentID
	var created bool
	err := s.store.Update(ctx, func(tx Tx) error {
		p, err := tx.Project(ctx, projectID)
		if err != nil {
			return err
		}
		kind, ok, err := eligible(ctx, tx, p, report.Year, nil)
		if err != nil || !ok {
			return err
		}

		now := s.now()
		reportID := report.ID
		doc := domain.Document{
			ID:             domain.DocumentID(s.newID("doc_")),
			ProjectID:      p.ID,
			Kind:           kind,
			Status:         domain.DocNew,
			AnnualReportID: &reportID,
			CreatedBy:      actorID,
			ModifiedBy:     actorID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}
		if err := tx.CreateReportDetail(ctx, domain.NewReportDetail(doc, report)); err != nil {
			return err
		}
		ev, err := s.newEvent(doc, domain.EventCreated, 0, actorID, "", doc.GateState(), map[string]any{
			"annual_report_id": string(report.ID),
			"year":             report.Year,
		})
		if err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, ev); err != nil {
			return err
		}
		if err := tx.SetProjectStatus(ctx, p.ID, domain.ProjectUpdating); err != nil {
			return err
		}
		id, created = doc.ID, true
		return nil
	})
	return id, created, err
}
