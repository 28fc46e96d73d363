package workflow

import (
	"context"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

// CreateDocument opens a new governance document for a project. The
// document always starts in status new with every gate cleared. Concept
// plans, project plans and closures are one per project; progress and
// student reports are one per project per annual report year. A project
// plan gets its endorsement record in the same transaction.
func (s *Service) CreateDocument(ctx context.Context, projectID domain.ProjectID, kind domain.DocumentKind, reportID *domain.AnnualReportID, userID domain.UserID) (domain.Document, error) {
	if _, err := domain.ParseDocumentKind(string(kind)); err != nil {
		return domain.Document{}, err
	}
	if kind.IsReport() && reportID == nil {
		return domain.Document{}, fmt.Errorf("%w: %s needs an annual report", domain.ErrInvalidKind, kind)
	}
	if !kind.IsReport() && reportID != nil {
		return domain.Document{}, fmt.Errorf("%w: %s is not tied to an annual report", domain.ErrInvalidKind, kind)
	}

	var out domain.Document
	err := s.store.Update(ctx, func(tx Tx) error {
		project, err := tx.Project(ctx, projectID)
		if err != nil {
			return err
		}
		actor, err := s.resolveActor(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.authorizeTeam(ctx, tx, actor, project); err != nil {
			return err
		}

		var report domain.AnnualReport
		if reportID != nil {
			report, err = tx.AnnualReport(ctx, *reportID)
			if err != nil {
				return err
			}
			reported, err := tx.ReportedProjects(ctx, kind, report.Year)
			if err != nil {
				return err
			}
			if reported[project.ID] {
				return fmt.Errorf("%w: project %s already has a %s for %d", domain.ErrConflict, project.ID, kind, report.Year)
			}
		} else {
			existing, err := tx.Documents(ctx, DocumentFilter{ProjectIDs: []domain.ProjectID{project.ID}, Kinds: []domain.DocumentKind{kind}})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("%w: project %s already has a %s", domain.ErrConflict, project.ID, kind)
			}
		}

		now := s.now()
		doc := domain.Document{
			ID:             domain.DocumentID(s.newID("doc_")),
			ProjectID:      project.ID,
			Kind:           kind,
			Status:         domain.DocNew,
			AnnualReportID: reportID,
			CreatedBy:      actor.ID(),
			ModifiedBy:     actor.ID(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}
		switch {
		case kind == domain.KindProjectPlan:
			if err := tx.CreateEndorsement(ctx, newEndorsement(doc.ID, s.policy.BiometricianRequired)); err != nil {
				return err
			}
		case kind.IsReport():
			if err := tx.CreateReportDetail(ctx, domain.NewReportDetail(doc, report)); err != nil {
				return err
			}
		}
		ev, err := s.newEvent(doc, domain.EventCreated, 0, actor.ID(), "", doc.GateState(), nil)
		if err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, ev); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	s.log.Info().
		Str("op", "create").
		Str("document_id", string(out.ID)).
		Str("project_id", string(projectID)).
		Str("kind", string(kind)).
		Str("actor_id", string(userID)).
		Msg("document created")
	return out, nil
}
