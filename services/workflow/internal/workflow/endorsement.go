package workflow

import (
	"context"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/canonhash"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

// Endorsement reads the endorsement of a project plan. Other document
// kinds have none and report domain.ErrNotFound.
func (s *Service) Endorsement(ctx context.Context, id domain.DocumentID) (domain.Endorsement, error) {
	var out domain.Endorsement
	err := s.store.View(ctx, func(r Reader) error {
		doc, err := r.Document(ctx, id)
		if err != nil {
			return err
		}
		out, err = endorsementOf(ctx, r, doc)
		return err
	})
	return out, err
}

func endorsementOf(ctx context.Context, r Reader, doc domain.Document) (domain.Endorsement, error) {
	if doc.Kind != domain.KindProjectPlan {
		return domain.Endorsement{}, fmt.Errorf("%w: %s documents carry no endorsement", domain.ErrNotFound, doc.Kind)
	}
	return r.Endorsement(ctx, doc.ID)
}

// requirements recomputes the required flags from the involvement flags.
// A pair that stops being required loses its provided flag too.
func requirements(e domain.Endorsement, biometricianRequired bool) domain.Endorsement {
	set := func(p *domain.EndorsementPair, required bool) {
		p.Required = required
		if !required {
			p.Provided = false
		}
	}
	set(&e.Biometrician, biometricianRequired)
	set(&e.AnimalEthics, e.InvolvesAnimals)
	set(&e.Herbarium, e.InvolvesPlants)
	return e
}

func newEndorsement(doc domain.DocumentID, biometricianRequired bool) domain.Endorsement {
	return requirements(domain.Endorsement{DocumentID: doc}, biometricianRequired)
}

// SetInvolvement updates the involvement flags and recomputes which
// endorsements are required. Setting the flags a plan already has records
// nothing.
func (s *Service) SetInvolvement(ctx context.Context, id domain.DocumentID, animals, plants bool, userID domain.UserID) (domain.Endorsement, error) {
	var out domain.Endorsement
	err := s.store.Update(ctx, func(tx Tx) error {
		doc, err := tx.Document(ctx, id)
		if err != nil {
			return err
		}
		e, err := endorsementOf(ctx, tx, doc)
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
		if err := s.authorizeTeam(ctx, tx, actor, project); err != nil {
			return err
		}

		next := e
		next.InvolvesAnimals = animals
		next.InvolvesPlants = plants
		next = requirements(next, s.policy.BiometricianRequired)
		same, err := canonhash.Equal(e, next)
		if err != nil {
			return err
		}
		if same {
			out = e
			return nil
		}
		e = next
		if err := tx.SaveEndorsement(ctx, e); err != nil {
			return err
		}
		ev, err := s.newEvent(doc, domain.EventInvolvementSet, 0, actor.ID(), doc.Status, e, map[string]any{
			"involves_animals": animals,
			"involves_plants":  plants,
		})
		if err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, ev); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.Endorsement{}, err
	}
	s.log.Info().
		Str("op", "set-involvement").
		Str("document_id", string(id)).
		Str("actor_id", string(userID)).
		Bool("involves_animals", animals).
		Bool("involves_plants", plants).
		Msg("endorsement requirements updated")
	return out, nil
}

// ProvideEndorsement records a specialist sign-off. It never moves the
// document through its gates.
func (s *Service) ProvideEndorsement(ctx context.Context, id domain.DocumentID, kind domain.EndorsementKind, userID domain.UserID) (domain.Endorsement, error) {
	if _, err := domain.ParseEndorsementKind(string(kind)); err != nil {
		return domain.Endorsement{}, err
	}

	var out domain.Endorsement
	err := s.store.Update(ctx, func(tx Tx) error {
		doc, err := tx.Document(ctx, id)
		if err != nil {
			return err
		}
		e, err := endorsementOf(ctx, tx, doc)
		if err != nil {
			return err
		}
		actor, err := s.resolveActor(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !actor.Can(kind.Capability()) {
			return fmt.Errorf("%w: %s endorsement needs the %s role", domain.ErrRoleMismatch, kind, kind.Capability())
		}
		pair := e.Pair(kind)
		if !pair.Required {
			return fmt.Errorf("%w: %s endorsement is not required", domain.ErrGuardViolation, kind)
		}
		if pair.Provided {
			out = e
			return nil
		}
		pair.Provided = true
		if err := tx.SaveEndorsement(ctx, e); err != nil {
			return err
		}
		ev, err := s.newEvent(doc, domain.EventEndorsementProvided, 0, actor.ID(), doc.Status, e, map[string]any{
			"kind": string(kind),
		})
		if err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, ev); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return domain.Endorsement{}, err
	}
	s.log.Info().
		Str("op", "provide").
		Str("document_id", string(id)).
		Str("kind", string(kind)).
		Str("actor_id", string(userID)).
		Msg("endorsement provided")
	return out, nil
}
