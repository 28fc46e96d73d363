package store

import (
	"context"
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

// Put upserts reference and seed records in one transaction. It is how the
// collaborator-owned tables (users, business areas, projects, members,
// annual reports) get their rows when no other system writes them.
func (s *Store) Put(ctx context.Context, records ...any) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	t := &pgTx{q: tx, lock: true}

	for _, rec := range records {
		switch v := rec.(type) {
		case domain.User:
			var tokenHash *string
			if v.TokenHash != "" {
				tokenHash = &v.TokenHash
			}
			_, err = tx.Exec(ctx, `
INSERT INTO users(id,display_name,business_area_id,is_biometrician,is_herbarium_curator,is_aec,is_superuser,token_hash)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET display_name=EXCLUDED.display_name,business_area_id=EXCLUDED.business_area_id,
  is_biometrician=EXCLUDED.is_biometrician,is_herbarium_curator=EXCLUDED.is_herbarium_curator,
  is_aec=EXCLUDED.is_aec,is_superuser=EXCLUDED.is_superuser,token_hash=EXCLUDED.token_hash
`, string(v.ID), v.DisplayName, string(v.BusinessAreaID), v.IsBiometrician, v.IsHerbariumCurator, v.IsAEC, v.IsSuperuser, tokenHash)
		case domain.BusinessArea:
			_, err = tx.Exec(ctx, `
INSERT INTO business_areas(id,name,leader_id) VALUES($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name,leader_id=EXCLUDED.leader_id
`, string(v.ID), v.Name, string(v.LeaderID))
		case domain.Project:
			_, err = tx.Exec(ctx, `
INSERT INTO projects(id,title,kind,status,business_area_id) VALUES($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title,status=EXCLUDED.status,business_area_id=EXCLUDED.business_area_id
`, string(v.ID), v.Title, string(v.Kind), string(v.Status), string(v.BusinessAreaID))
		case domain.ProjectMember:
			_, err = tx.Exec(ctx, `
INSERT INTO project_members(project_id,user_id,role,is_leader) VALUES($1,$2,$3,$4)
ON CONFLICT (project_id,user_id) DO UPDATE SET role=EXCLUDED.role,is_leader=EXCLUDED.is_leader
`, string(v.ProjectID), string(v.UserID), string(v.Role), v.IsLeader)
		case domain.AnnualReport:
			_, err = tx.Exec(ctx, `
INSERT INTO annual_reports(id,year) VALUES($1,$2)
ON CONFLICT (id) DO NOTHING
`, string(v.ID), v.Year)
		case domain.Document:
			err = t.CreateDocument(ctx, v)
		case domain.Endorsement:
			err = t.CreateEndorsement(ctx, v)
		case domain.ReportDetail:
			err = t.CreateReportDetail(ctx, v)
		case domain.DocumentEvent:
			err = t.AddEvent(ctx, v)
		default:
			err = fmt.Errorf("store: cannot seed %T", rec)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
