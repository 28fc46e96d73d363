package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/canonhash"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/memstore"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	director  domain.UserID = "u_director"
	areaLead  domain.UserID = "u_area"
	leader    domain.UserID = "u_leader"
	member    domain.UserID = "u_member"
	biometric domain.UserID = "u_bio"
	aec       domain.UserID = "u_aec"
	curator   domain.UserID = "u_curator"
	admin     domain.UserID = "u_admin"
	outsider  domain.UserID = "u_outsider"
)

const (
	planID     domain.DocumentID     = "doc_plan"
	projectID  domain.ProjectID      = "prj_1"
	report2024 domain.AnnualReportID = "ar_2024"
)

func baseRecords() []any {
	return []any{
		domain.BusinessArea{ID: "ba_dir", Name: "Directorate", LeaderID: director},
		domain.BusinessArea{ID: "ba_eco", Name: "Ecology", LeaderID: areaLead},
		domain.User{ID: director, BusinessAreaID: "ba_dir"},
		domain.User{ID: areaLead, BusinessAreaID: "ba_eco"},
		domain.User{ID: leader, BusinessAreaID: "ba_eco"},
		domain.User{ID: member, BusinessAreaID: "ba_eco"},
		domain.User{ID: biometric, IsBiometrician: true},
		domain.User{ID: aec, IsAEC: true},
		domain.User{ID: curator, IsHerbariumCurator: true},
		domain.User{ID: admin, IsSuperuser: true},
		domain.User{ID: outsider},
		domain.AnnualReport{ID: report2024, Year: 2024},
	}
}

func planRecords() []any {
	return []any{
		domain.Project{ID: projectID, Title: "Quokka survey", Kind: domain.ProjectScience, Status: domain.ProjectPending, BusinessAreaID: "ba_eco"},
		domain.ProjectMember{ProjectID: projectID, UserID: leader, Role: domain.RoleSupervising, IsLeader: true},
		domain.ProjectMember{ProjectID: projectID, UserID: member, Role: domain.RoleResearch},
		domain.Document{ID: planID, ProjectID: projectID, Kind: domain.KindProjectPlan, Status: domain.DocNew},
		domain.Endorsement{DocumentID: planID, Biometrician: domain.EndorsementPair{Required: true}},
	}
}

func newService(t *testing.T, policy workflow.Policy, records ...any) (*workflow.Service, *memstore.Store) {
	t.Helper()
	st, err := memstore.New()
	require.NoError(t, err)
	require.NoError(t, st.Put(context.Background(), append(baseRecords(), records...)...))
	return workflow.New(st, policy, zerolog.Nop()), st
}

func projectStatus(t *testing.T, st workflow.Store, id domain.ProjectID) domain.ProjectStatus {
	t.Helper()
	var p domain.Project
	require.NoError(t, st.View(context.Background(), func(r workflow.Reader) error {
		var err error
		p, err = r.Project(context.Background(), id)
		return err
	}))
	return p.Status
}

func TestProjectPlanApprovalAndRecallScenario(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, workflow.DefaultPolicy(), planRecords()...)

	doc, err := svc.Advance(ctx, planID, domain.StageLead, leader)
	require.NoError(t, err)
	assert.Equal(t, domain.DocInApproval, doc.Status)
	assert.True(t, doc.LeadApproved)
	assert.Equal(t, leader, doc.ModifiedBy)

	doc, err = svc.Advance(ctx, planID, domain.StageArea, areaLead)
	require.NoError(t, err)
	assert.True(t, doc.AreaApproved)
	assert.Equal(t, domain.ProjectPending, projectStatus(t, st, projectID))

	doc, err = svc.Advance(ctx, planID, domain.StageDirectorate, director)
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, doc.Status)
	assert.Equal(t, domain.ProjectActive, projectStatus(t, st, projectID))

	doc, err = svc.Recall(ctx, planID, domain.StageDirectorate, director)
	require.NoError(t, err)
	assert.Equal(t, domain.DocRevising, doc.Status)
	assert.False(t, doc.DirectorateApproved)
	assert.Equal(t, domain.ProjectPending, projectStatus(t, st, projectID))

	events, err := svc.Events(ctx, planID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	types := []domain.EventType{events[0].Type, events[1].Type, events[2].Type, events[3].Type}
	assert.Equal(t, []domain.EventType{domain.EventAdvanced, domain.EventAdvanced, domain.EventAdvanced, domain.EventRecalled}, types)
	assert.Equal(t, "active", events[2].Payload["project_status_after"])
	assert.Equal(t, domain.DocApproved, events[2].StatusAfter)

	wantHash, _, err := canonhash.SumObject(domain.GateState{Status: domain.DocRevising, LeadApproved: true, AreaApproved: true})
	require.NoError(t, err)
	assert.Equal(t, wantHash, events[3].StateHash)
}

func TestFailedOperationsLeaveDocumentUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)
	_, err := svc.Advance(ctx, planID, domain.StageLead, leader)
	require.NoError(t, err)

	before, err := svc.Document(ctx, planID)
	require.NoError(t, err)
	eventsBefore, err := svc.Events(ctx, planID)
	require.NoError(t, err)

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"invalid stage", func() error { _, err := svc.Advance(ctx, planID, 4, admin); return err }, domain.ErrInvalidStage},
		{"out of order", func() error { _, err := svc.Advance(ctx, planID, domain.StageDirectorate, director); return err }, domain.ErrOutOfOrderApproval},
		{"send back stage 1", func() error { _, err := svc.SendBack(ctx, planID, domain.StageLead, leader); return err }, domain.ErrInvalidStage},
		{"wrong seat", func() error { _, err := svc.Advance(ctx, planID, domain.StageArea, member); return err }, domain.ErrForbidden},
		{"unknown user", func() error { _, err := svc.Advance(ctx, planID, domain.StageArea, "u_ghost"); return err }, domain.ErrNotFound},
		{"unknown document", func() error { _, err := svc.Advance(ctx, "doc_ghost", domain.StageLead, leader); return err }, domain.ErrNotFound},
		{"unknown op", func() error { _, err := svc.Apply(ctx, "approve", planID, domain.StageLead, leader); return err }, domain.ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.ErrorIs(t, err, tc.want)
			after, err := svc.Document(ctx, planID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			events, err := svc.Events(ctx, planID)
			require.NoError(t, err)
			assert.Len(t, events, len(eventsBefore))
		})
	}
}

func TestRecallLeadAfterAreaApprovalIsGuarded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)
	_, err := svc.Advance(ctx, planID, domain.StageLead, leader)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, planID, domain.StageArea, areaLead)
	require.NoError(t, err)

	before, err := svc.Document(ctx, planID)
	require.NoError(t, err)
	_, err = svc.Recall(ctx, planID, domain.StageLead, leader)
	require.ErrorIs(t, err, domain.ErrGuardViolation)
	after, err := svc.Document(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, before.GateState(), after.GateState())

	doc, err := svc.Recall(ctx, planID, domain.StageArea, areaLead)
	require.NoError(t, err)
	assert.False(t, doc.AreaApproved)
	doc, err = svc.Recall(ctx, planID, domain.StageLead, leader)
	require.NoError(t, err)
	assert.False(t, doc.LeadApproved)
	assert.Equal(t, domain.DocRevising, doc.Status)
}

func TestSendBackReturnsDocumentToTeam(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, workflow.DefaultPolicy(), planRecords()...)
	_, err := svc.Advance(ctx, planID, domain.StageLead, leader)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, planID, domain.StageArea, areaLead)
	require.NoError(t, err)

	doc, err := svc.SendBack(ctx, planID, domain.StageArea, areaLead)
	require.NoError(t, err)
	assert.Equal(t, domain.DocInReview, doc.Status)
	assert.False(t, doc.LeadApproved)
	assert.False(t, doc.AreaApproved)
	assert.Equal(t, domain.ProjectPending, projectStatus(t, st, projectID))

	events, err := svc.Events(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventSentBack, events[len(events)-1].Type)
	assert.Equal(t, domain.DocInApproval, events[len(events)-1].StatusBefore)
}

func TestStageSeats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)

	_, err := svc.Advance(ctx, planID, domain.StageLead, member)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Advance(ctx, planID, domain.StageLead, leader)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, planID, domain.StageArea, director)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Advance(ctx, planID, domain.StageArea, areaLead)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, planID, domain.StageDirectorate, areaLead)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Advance(ctx, planID, domain.StageDirectorate, admin)
	require.NoError(t, err)

	open := workflow.DefaultPolicy()
	open.AuthorizeStages = false
	open.EnforceStageOrder = false
	svc2, _ := newService(t, open, planRecords()...)
	doc, err := svc2.Advance(ctx, planID, domain.StageDirectorate, outsider)
	require.NoError(t, err)
	assert.Equal(t, domain.DocApproved, doc.Status)
}

func TestEndorsementRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)

	e, err := svc.SetInvolvement(ctx, planID, true, false, leader)
	require.NoError(t, err)
	assert.True(t, e.AnimalEthics.Required)
	assert.False(t, e.Herbarium.Required)

	e, err = svc.ProvideEndorsement(ctx, planID, domain.EndorseAnimalEthics, aec)
	require.NoError(t, err)
	assert.Equal(t, domain.EndorsementPair{Required: true, Provided: true}, e.AnimalEthics)
	assert.Equal(t, domain.EndorsementPair{}, e.Herbarium)

	doc, err := svc.Document(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocNew, doc.Status, "endorsements never move the gates")

	_, err = svc.ProvideEndorsement(ctx, planID, domain.EndorseBiometrician, aec)
	require.ErrorIs(t, err, domain.ErrRoleMismatch)
	_, err = svc.ProvideEndorsement(ctx, planID, domain.EndorseHerbarium, curator)
	require.ErrorIs(t, err, domain.ErrGuardViolation)
	_, err = svc.ProvideEndorsement(ctx, planID, "geology", admin)
	require.ErrorIs(t, err, domain.ErrInvalidKind)

	e, err = svc.ProvideEndorsement(ctx, planID, domain.EndorseBiometrician, admin)
	require.NoError(t, err)
	assert.True(t, e.Biometrician.Provided)

	events, err := svc.Events(ctx, planID)
	require.NoError(t, err)
	n := len(events)
	_, err = svc.ProvideEndorsement(ctx, planID, domain.EndorseAnimalEthics, aec)
	require.NoError(t, err)
	events, err = svc.Events(ctx, planID)
	require.NoError(t, err)
	assert.Len(t, events, n, "repeat provide records nothing")

	e, err = svc.SetInvolvement(ctx, planID, false, true, member)
	require.NoError(t, err)
	assert.Equal(t, domain.EndorsementPair{}, e.AnimalEthics)
	assert.Equal(t, domain.EndorsementPair{Required: true}, e.Herbarium)

	_, err = svc.SetInvolvement(ctx, planID, true, true, outsider)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSetInvolvementUnchangedRecordsNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)

	first, err := svc.SetInvolvement(ctx, planID, true, false, leader)
	require.NoError(t, err)
	events, err := svc.Events(ctx, planID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	again, err := svc.SetInvolvement(ctx, planID, true, false, leader)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	events, err = svc.Events(ctx, planID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "same flags record no event")

	_, err = svc.SetInvolvement(ctx, planID, true, true, leader)
	require.NoError(t, err)
	events, err = svc.Events(ctx, planID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEndorsementOnlyOnProjectPlans(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), append(planRecords(),
		domain.Document{ID: "doc_concept", ProjectID: projectID, Kind: domain.KindConceptPlan, Status: domain.DocNew},
	)...)
	_, err := svc.Endorsement(ctx, "doc_concept")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ProvideEndorsement(ctx, "doc_concept", domain.EndorseBiometrician, biometric)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinalApprovalEndorsementPolicy(t *testing.T) {
	ctx := context.Background()
	approveToArea := func(svc *workflow.Service) {
		_, err := svc.Advance(ctx, planID, domain.StageLead, leader)
		require.NoError(t, err)
		_, err = svc.Advance(ctx, planID, domain.StageArea, areaLead)
		require.NoError(t, err)
	}

	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)
	approveToArea(svc)
	_, err := svc.Advance(ctx, planID, domain.StageDirectorate, director)
	require.NoError(t, err, "outstanding endorsements do not block by default")

	strict := workflow.DefaultPolicy()
	strict.RequireEndorsementsBeforeFinalApproval = true
	svc, st := newService(t, strict, planRecords()...)
	approveToArea(svc)
	_, err = svc.Advance(ctx, planID, domain.StageDirectorate, director)
	require.ErrorIs(t, err, domain.ErrGuardViolation)
	assert.Equal(t, domain.ProjectPending, projectStatus(t, st, projectID))

	_, err = svc.ProvideEndorsement(ctx, planID, domain.EndorseBiometrician, biometric)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, planID, domain.StageDirectorate, director)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectActive, projectStatus(t, st, projectID))
}

func ids(items []workflow.DocumentSummary) []domain.DocumentID {
	out := make([]domain.DocumentID, 0, len(items))
	for _, s := range items {
		out = append(out, s.ID)
	}
	return out
}

func TestPendingActionsQueues(t *testing.T) {
	ctx := context.Background()
	const multi domain.UserID = "u_multi"
	svc, _ := newService(t, workflow.DefaultPolicy(),
		domain.BusinessArea{ID: "ba_marine", Name: "Marine", LeaderID: multi},
		domain.User{ID: multi, BusinessAreaID: "ba_dir", IsBiometrician: true},

		domain.Project{ID: "prj_a", Title: "A", Kind: domain.ProjectScience, Status: domain.ProjectPending, BusinessAreaID: "ba_marine"},
		domain.ProjectMember{ProjectID: "prj_a", UserID: multi, IsLeader: true},
		domain.Document{ID: "doc_a_plan", ProjectID: "prj_a", Kind: domain.KindProjectPlan, Status: domain.DocNew},
		domain.Endorsement{DocumentID: "doc_a_plan", Biometrician: domain.EndorsementPair{Required: true}},
		domain.Document{ID: "doc_a_concept", ProjectID: "prj_a", Kind: domain.KindConceptPlan, Status: domain.DocInApproval, LeadApproved: true},

		domain.Project{ID: "prj_b", Title: "B", Kind: domain.ProjectScience, Status: domain.ProjectActive, BusinessAreaID: "ba_eco"},
		domain.Document{ID: "doc_b_plan", ProjectID: "prj_b", Kind: domain.KindProjectPlan, Status: domain.DocInApproval, LeadApproved: true, AreaApproved: true},
		domain.Endorsement{DocumentID: "doc_b_plan", Biometrician: domain.EndorsementPair{Required: true}},

		domain.Project{ID: "prj_c", Title: "C", Kind: domain.ProjectScience, Status: domain.ProjectSuspended, BusinessAreaID: "ba_eco"},
		domain.Document{ID: "doc_c_plan", ProjectID: "prj_c", Kind: domain.KindProjectPlan, Status: domain.DocInApproval, LeadApproved: true, AreaApproved: true},
		domain.Endorsement{DocumentID: "doc_c_plan", Biometrician: domain.EndorsementPair{Required: true}},
	)

	p, err := svc.PendingActionsFor(ctx, multi)
	require.NoError(t, err)
	assert.Equal(t, []domain.DocumentID{"doc_a_plan"}, ids(p.Team))
	assert.Equal(t, []domain.DocumentID{"doc_a_concept"}, ids(p.Area))
	assert.Equal(t, []domain.DocumentID{"doc_b_plan"}, ids(p.Directorate), "closed projects are not queued")
	assert.ElementsMatch(t, []domain.DocumentID{"doc_a_plan", "doc_c_plan"}, ids(p.Biometrician), "active projects are not scanned for endorsements")
	assert.Empty(t, p.AEC)
	assert.Empty(t, p.Herbarium)

	seen := map[domain.DocumentID]int{}
	for _, s := range p.All {
		seen[s.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "document %s listed %d times", id, n)
	}
	assert.Len(t, p.All, 4)
	assert.Equal(t, "A", p.Team[0].ProjectTitle)
}

func TestPendingActionsSuperuserAndEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, workflow.DefaultPolicy(), planRecords()...)

	p, err := svc.PendingActionsFor(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, p.Directorate, "superuser is not a directorate member")
	assert.Equal(t, []domain.DocumentID{planID}, ids(p.Biometrician))
	assert.Equal(t, []domain.DocumentID{planID}, ids(p.All))

	p, err = svc.PendingActionsFor(ctx, outsider)
	require.NoError(t, err)
	assert.NotNil(t, p.All)
	assert.Empty(t, p.All)

	_, err = svc.PendingActionsFor(ctx, "u_ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateDocument(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, workflow.DefaultPolicy(),
		domain.Project{ID: projectID, Title: "Quokka survey", Kind: domain.ProjectScience, Status: domain.ProjectNew, BusinessAreaID: "ba_eco"},
		domain.ProjectMember{ProjectID: projectID, UserID: leader, IsLeader: true},
	)

	doc, err := svc.CreateDocument(ctx, projectID, domain.KindProjectPlan, nil, leader)
	require.NoError(t, err)
	assert.Equal(t, domain.DocNew, doc.Status)
	assert.Equal(t, domain.GateState{Status: domain.DocNew}, doc.GateState())

	e, err := svc.Endorsement(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, e.Biometrician.Required)

	_, err = svc.CreateDocument(ctx, projectID, domain.KindProjectPlan, nil, leader)
	require.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.CreateDocument(ctx, projectID, domain.KindConceptPlan, nil, outsider)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.CreateDocument(ctx, projectID, domain.KindProgressReport, nil, leader)
	require.ErrorIs(t, err, domain.ErrInvalidKind)
	ar := report2024
	_, err = svc.CreateDocument(ctx, projectID, domain.KindConceptPlan, &ar, leader)
	require.ErrorIs(t, err, domain.ErrInvalidKind)

	rep, err := svc.CreateDocument(ctx, projectID, domain.KindProgressReport, &ar, leader)
	require.NoError(t, err)
	_, err = svc.CreateDocument(ctx, projectID, domain.KindProgressReport, &ar, leader)
	require.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, st.View(ctx, func(r workflow.Reader) error {
		d, err := r.ReportDetail(ctx, rep.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 2024, d.Year)
		assert.Equal(t, domain.EmptyRichText, d.Sections["progress"])
		return nil
	}))
	assert.Equal(t, domain.ProjectNew, projectStatus(t, st, projectID))

	events, err := svc.Events(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCreated, events[0].Type)
}

func TestEventsOfUnknownDocument(t *testing.T) {
	svc, _ := newService(t, workflow.DefaultPolicy())
	_, err := svc.Events(context.Background(), "doc_ghost")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}
