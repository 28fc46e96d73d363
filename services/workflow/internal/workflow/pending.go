package workflow

import (
	"context"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

// DocumentSummary is the queue entry for one document awaiting action.
type DocumentSummary struct {
	ID                  domain.DocumentID     `json:"id"`
	Kind                domain.DocumentKind   `json:"kind"`
	Status              domain.DocumentStatus `json:"status"`
	ProjectID           domain.ProjectID      `json:"project_id"`
	ProjectTitle        string                `json:"project_title"`
	LeadApproved        bool                  `json:"lead_approved"`
	AreaApproved        bool                  `json:"area_approved"`
	DirectorateApproved bool                  `json:"directorate_approved"`
}

func summarize(d domain.Document, p domain.Project) DocumentSummary {
	return DocumentSummary{
		ID:                  d.ID,
		Kind:                d.Kind,
		Status:              d.Status,
		ProjectID:           p.ID,
		ProjectTitle:        p.Title,
		LeadApproved:        d.LeadApproved,
		AreaApproved:        d.AreaApproved,
		DirectorateApproved: d.DirectorateApproved,
	}
}

// PendingActions partitions the documents waiting on a user by the role in
// which the user must act. All is the union without duplicates.
type PendingActions struct {
	All          []DocumentSummary `json:"all"`
	Team         []DocumentSummary `json:"team"`
	Area         []DocumentSummary `json:"area"`
	Directorate  []DocumentSummary `json:"directorate"`
	Biometrician []DocumentSummary `json:"biometrician"`
	AEC          []DocumentSummary `json:"aec"`
	Herbarium    []DocumentSummary `json:"herbarium"`
}

// queue appends summaries keyed by document id; the first occurrence wins.
type queue struct {
	seen  map[domain.DocumentID]bool
	items []DocumentSummary
}

func newQueue() *queue { return &queue{seen: map[domain.DocumentID]bool{}} }

func (q *queue) add(s DocumentSummary) {
	if q.seen[s.ID] {
		return
	}
	q.seen[s.ID] = true
	q.items = append(q.items, s)
}

func (q *queue) list() []DocumentSummary {
	if q.items == nil {
		return []DocumentSummary{}
	}
	return q.items
}

// PendingActionsFor computes the queues of userID in one read transaction.
func (s *Service) PendingActionsFor(ctx context.Context, userID domain.UserID) (PendingActions, error) {
	var out PendingActions
	err := s.store.View(ctx, func(r Reader) error {
		actor, err := s.resolveActor(ctx, r, userID)
		if err != nil {
			return err
		}
		out, err = s.pending(ctx, r, actor)
		return err
	})
	return out, err
}

func (s *Service) pending(ctx context.Context, r Reader, actor domain.Actor) (PendingActions, error) {
	team, area, directorate := newQueue(), newQueue(), newQueue()
	specialist := map[domain.EndorsementKind]*queue{
		domain.EndorseBiometrician: newQueue(),
		domain.EndorseAnimalEthics: newQueue(),
		domain.EndorseHerbarium:    newQueue(),
	}

	memberships, err := r.MembershipsOf(ctx, actor.ID())
	if err != nil {
		return PendingActions{}, err
	}
	if len(memberships) > 0 {
		ids := make([]domain.ProjectID, 0, len(memberships))
		for _, m := range memberships {
			ids = append(ids, m.ProjectID)
		}
		err := scan(ctx, r, ProjectFilter{IDs: ids}, nil, func(d domain.Document, p domain.Project) {
			if !d.LeadApproved {
				team.add(summarize(d, p))
			}
		})
		if err != nil {
			return PendingActions{}, err
		}
	}

	if len(actor.LedAreas) > 0 {
		err := scan(ctx, r, ProjectFilter{BusinessAreaIDs: actor.LedAreas}, nil, func(d domain.Document, p domain.Project) {
			if d.LeadApproved && !d.AreaApproved {
				area.add(summarize(d, p))
			}
		})
		if err != nil {
			return PendingActions{}, err
		}
	}

	if actor.Has(domain.CapDirectorate) {
		err := scan(ctx, r, ProjectFilter{ExcludeStatuses: domain.ClosedStatuses}, nil, func(d domain.Document, p domain.Project) {
			if d.AreaApproved && !d.DirectorateApproved {
				directorate.add(summarize(d, p))
			}
		})
		if err != nil {
			return PendingActions{}, err
		}
	}

	var kinds []domain.EndorsementKind
	for _, k := range domain.EndorsementKinds {
		if actor.Can(k.Capability()) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) > 0 {
		var scanErr error
		err := scan(ctx, r, ProjectFilter{ExcludeStatuses: domain.ActiveStatuses}, []domain.DocumentKind{domain.KindProjectPlan}, func(d domain.Document, p domain.Project) {
			if scanErr != nil {
				return
			}
			e, err := r.Endorsement(ctx, d.ID)
			if err != nil {
				scanErr = err
				return
			}
			for _, k := range kinds {
				if e.Pair(k).Pending() {
					specialist[k].add(summarize(d, p))
				}
			}
		})
		if err == nil {
			err = scanErr
		}
		if err != nil {
			return PendingActions{}, err
		}
	}

	all := newQueue()
	ordered := []*queue{
		team, area, directorate,
		specialist[domain.EndorseBiometrician],
		specialist[domain.EndorseAnimalEthics],
		specialist[domain.EndorseHerbarium],
	}
	for _, q := range ordered {
		for _, item := range q.items {
			all.add(item)
		}
	}

	return PendingActions{
		All:          all.list(),
		Team:         team.list(),
		Area:         area.list(),
		Directorate:  directorate.list(),
		Biometrician: specialist[domain.EndorseBiometrician].list(),
		AEC:          specialist[domain.EndorseAnimalEthics].list(),
		Herbarium:    specialist[domain.EndorseHerbarium].list(),
	}, nil
}

// scan visits every document of the selected projects.
func scan(ctx context.Context, r Reader, pf ProjectFilter, kinds []domain.DocumentKind, visit func(domain.Document, domain.Project)) error {
	projects, err := r.Projects(ctx, pf)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return nil
	}
	byID := make(map[domain.ProjectID]domain.Project, len(projects))
	ids := make([]domain.ProjectID, 0, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	docs, err := r.Documents(ctx, DocumentFilter{ProjectIDs: ids, Kinds: kinds})
	if err != nil {
		return err
	}
	for _, d := range docs {
		visit(d, byID[d.ProjectID])
	}
	return nil
}
