package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/canonhash"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the document governance workflow. It is safe for concurrent
// use; all state lives in the Store.
type Service struct {
	store  Store
	policy Policy
	log    zerolog.Logger
	now    func() time.Time
	newID  func(prefix string) string
}

func New(st Store, policy Policy, log zerolog.Logger) *Service {
	return &Service{
		store:  st,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func(prefix string) string { return prefix + uuid.NewString() },
	}
}

func (s *Service) Policy() Policy { return s.policy }

// Actor resolves userID to its capability set.
func (s *Service) Actor(ctx context.Context, userID domain.UserID) (domain.Actor, error) {
	var actor domain.Actor
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		actor, err = s.resolveActor(ctx, r, userID)
		return err
	})
	return actor, err
}

func (s *Service) resolveActor(ctx context.Context, r Reader, userID domain.UserID) (domain.Actor, error) {
	u, err := r.User(ctx, userID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("user %s: %w", userID, err)
	}
	inDirectorate := false
	if u.BusinessAreaID != "" {
		area, err := r.BusinessArea(ctx, u.BusinessAreaID)
		switch {
		case err == nil:
			inDirectorate = area.Name == s.policy.DirectorateArea
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Actor{}, err
		}
	}
	led, err := r.BusinessAreasLedBy(ctx, u.ID)
	if err != nil {
		return domain.Actor{}, err
	}
	ids := make([]domain.BusinessAreaID, 0, len(led))
	for _, a := range led {
		ids = append(ids, a.ID)
	}
	return domain.NewActor(u, inDirectorate, ids), nil
}

func isProjectLeader(ctx context.Context, r Reader, projectID domain.ProjectID, userID domain.UserID) (bool, error) {
	members, err := r.Members(ctx, projectID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.UserID == userID && m.IsLeader {
			return true, nil
		}
	}
	return false, nil
}

func isProjectMember(ctx context.Context, r Reader, projectID domain.ProjectID, userID domain.UserID) (bool, error) {
	members, err := r.Members(ctx, projectID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// authorizeStage checks that actor holds the seat for stage on project:
// the project leader for stage 1, the business area leader for stage 2 and
// a directorate member for stage 3.
func (s *Service) authorizeStage(ctx context.Context, r Reader, actor domain.Actor, project domain.Project, stage domain.Stage) error {
	if !s.policy.AuthorizeStages || actor.Can(domain.CapSuperuser) {
		return nil
	}
	switch stage {
	case domain.StageLead:
		ok, err := isProjectLeader(ctx, r, project.ID, actor.ID())
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		return fmt.Errorf("%w: stage 1 belongs to the project leader", domain.ErrForbidden)
	case domain.StageArea:
		if actor.Leads(project.BusinessAreaID) {
			return nil
		}
		return fmt.Errorf("%w: stage 2 belongs to the business area leader", domain.ErrForbidden)
	case domain.StageDirectorate:
		if actor.Can(domain.CapDirectorate) {
			return nil
		}
		return fmt.Errorf("%w: stage 3 belongs to the directorate", domain.ErrForbidden)
	}
	return invalidStage(stage)
}

// authorizeTeam lets project members, the area leader, the directorate and
// superusers act on a project's documents outside the gate sequence.
func (s *Service) authorizeTeam(ctx context.Context, r Reader, actor domain.Actor, project domain.Project) error {
	if !s.policy.AuthorizeStages || actor.Can(domain.CapSuperuser) || actor.Has(domain.CapDirectorate) || actor.Leads(project.BusinessAreaID) {
		return nil
	}
	ok, err := isProjectMember(ctx, r, project.ID, actor.ID())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a member of project %s", domain.ErrForbidden, project.ID)
	}
	return nil
}

func (s *Service) newEvent(doc domain.Document, typ domain.EventType, stage domain.Stage, actor domain.UserID, before domain.DocumentStatus, state any, payload map[string]any) (domain.DocumentEvent, error) {
	hash, _, err := canonhash.SumObject(state)
	if err != nil {
		return domain.DocumentEvent{}, err
	}
	return domain.DocumentEvent{
		ID:           s.newID("evt_"),
		DocumentID:   doc.ID,
		Type:         typ,
		Stage:        stage,
		ActorID:      actor,
		StatusBefore: before,
		StatusAfter:  doc.Status,
		StateHash:    hash,
		Payload:      payload,
		OccurredAt:   s.now(),
	}, nil
}

// Document reads one document.
func (s *Service) Document(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	var doc domain.Document
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		doc, err = r.Document(ctx, id)
		return err
	})
	return doc, err
}

// Events returns the governance trail of a document, oldest first.
func (s *Service) Events(ctx context.Context, id domain.DocumentID) ([]domain.DocumentEvent, error) {
	var out []domain.DocumentEvent
	err := s.store.View(ctx, func(r Reader) error {
		if _, err := r.Document(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = r.Events(ctx, id)
		return err
	})
	return out, err
}
