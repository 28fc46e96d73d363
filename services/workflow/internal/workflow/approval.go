package workflow

import (
	"context"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

func (s *Service) Advance(ctx context.Context, id domain.DocumentID, stage domain.Stage, userID domain.UserID) (domain.Document, error) {
	return s.transition(ctx, OpAdvance, id, stage, userID)
}

func (s *Service) Recall(ctx context.Context, id domain.DocumentID, stage domain.Stage, userID domain.UserID) (domain.Document, error) {
	return s.transition(ctx, OpRecall, id, stage, userID)
}

func (s *Service) SendBack(ctx context.Context, id domain.DocumentID, stage domain.Stage, userID domain.UserID) (domain.Document, error) {
	return s.transition(ctx, OpSendBack, id, stage, userID)
}

// Apply runs op by name.
func (s *Service) Apply(ctx context.Context, op Op, id domain.DocumentID, stage domain.Stage, userID domain.UserID) (domain.Document, error) {
	if _, err := ParseOp(string(op)); err != nil {
		return domain.Document{}, err
	}
	return s.transition(ctx, op, id, stage, userID)
}

// transition is one read-modify-write of a document's gates. The project
// status change it may cause is written in the same transaction.
func (s *Service) transition(ctx context.Context, op Op, id domain.DocumentID, stage domain.Stage, userID domain.UserID) (domain.Document, error) {
	if !stage.Valid() {
		return domain.Document{}, invalidStage(stage)
	}

	var out domain.Document
	var projectStatus domain.ProjectStatus
	err := s.store.Update(ctx, func(tx Tx) error {
		doc, err := tx.Document(ctx, id)
		if err != nil {
			return err
		}
		project, err := tx.Project(ctx, doc.ProjectID)
		if err != nil {
			return err
		}
		actor, err := s.resolveActor(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.authorizeStage(ctx, tx, actor, project, stage); err != nil {
			return err
		}

		next, err := Transition(doc.GateState(), op, stage, s.policy.EnforceStageOrder)
		if err != nil {
			return err
		}
		if op == OpAdvance && stage == domain.StageDirectorate {
			if err := s.checkEndorsements(ctx, tx, doc); err != nil {
				return err
			}
		}

		before := doc.Status
		doc = applyGates(doc, next)
		doc.ModifiedBy = actor.ID()
		doc.UpdatedAt = s.now()
		if err := tx.SaveDocument(ctx, doc); err != nil {
			return err
		}

		var payload map[string]any
		if status, ok := projectStatusAfter(doc.Kind, op, stage); ok {
			if err := tx.SetProjectStatus(ctx, project.ID, status); err != nil {
				return err
			}
			projectStatus = status
			payload = map[string]any{
				"project_id":            string(project.ID),
				"project_status_before": string(project.Status),
				"project_status_after":  string(status),
			}
		}

		ev, err := s.newEvent(doc, eventFor(op), stage, actor.ID(), before, next, payload)
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

	e := s.log.Info().
		Str("op", string(op)).
		Str("document_id", string(out.ID)).
		Int("stage", int(stage)).
		Str("actor_id", string(userID)).
		Str("status", string(out.Status))
	if projectStatus != "" {
		e = e.Str("project_status", string(projectStatus))
	}
	e.Msg("document transition")
	return out, nil
}

// checkEndorsements enforces the final-approval endorsement policy.
func (s *Service) checkEndorsements(ctx context.Context, r Reader, doc domain.Document) error {
	if !s.policy.RequireEndorsementsBeforeFinalApproval || doc.Kind != domain.KindProjectPlan {
		return nil
	}
	e, err := r.Endorsement(ctx, doc.ID)
	if err != nil {
		return err
	}
	if pending := e.PendingKinds(); len(pending) > 0 {
		return fmt.Errorf("%w: endorsements outstanding: %v", domain.ErrGuardViolation, pending)
	}
	return nil
}

func eventFor(op Op) domain.EventType {
	switch op {
	case OpRecall:
		return domain.EventRecalled
	case OpSendBack:
		return domain.EventSentBack
	}
	return domain.EventAdvanced
}
