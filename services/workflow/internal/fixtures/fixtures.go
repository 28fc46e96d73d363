// Package fixtures loads seed data for the workflow store from YAML.
package fixtures

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/authn"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"

	"gopkg.in/yaml.v3"
)

// Putter is implemented by both store backends.
type Putter interface {
	Put(ctx context.Context, records ...any) error
}

type User struct {
	ID               string `yaml:"id"`
	DisplayName      string `yaml:"display_name"`
	BusinessArea     string `yaml:"business_area"`
	Biometrician     bool   `yaml:"biometrician"`
	HerbariumCurator bool   `yaml:"herbarium_curator"`
	AEC              bool   `yaml:"aec"`
	Superuser        bool   `yaml:"superuser"`
	// Token is stored hashed; the plain value is what clients send.
	Token string `yaml:"token"`
}

type BusinessArea struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Leader string `yaml:"leader"`
}

type Member struct {
	User   string `yaml:"user"`
	Role   string `yaml:"role"`
	Leader bool   `yaml:"leader"`
}

type Project struct {
	ID           string     `yaml:"id"`
	Title        string     `yaml:"title"`
	Kind         string     `yaml:"kind"`
	Status       string     `yaml:"status"`
	BusinessArea string     `yaml:"business_area"`
	Members      []Member   `yaml:"members"`
	Documents    []Document `yaml:"documents"`
}

type Endorsement struct {
	InvolvesAnimals bool     `yaml:"involves_animals"`
	InvolvesPlants  bool     `yaml:"involves_plants"`
	Provided        []string `yaml:"provided"`
}

type Document struct {
	ID           string       `yaml:"id"`
	Kind         string       `yaml:"kind"`
	Status       string       `yaml:"status"`
	Gates        []int        `yaml:"gates"`
	AnnualReport string       `yaml:"annual_report"`
	Endorsement  *Endorsement `yaml:"endorsement"`
}

type AnnualReport struct {
	ID   string `yaml:"id"`
	Year int    `yaml:"year"`
}

type File struct {
	BusinessAreas []BusinessArea `yaml:"business_areas"`
	Users         []User         `yaml:"users"`
	AnnualReports []AnnualReport `yaml:"annual_reports"`
	Projects      []Project      `yaml:"projects"`
}

func Parse(data []byte) (File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, fmt.Errorf("fixtures: payload is empty")
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("fixtures: decode: %w", err)
	}
	return f, nil
}

func LoadFile(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("fixtures: read %s: %w", path, err)
	}
	f, err := Parse(content)
	if err != nil {
		return File{}, fmt.Errorf("fixtures: %s: %w", path, err)
	}
	return f, nil
}

// Records converts the file to domain records in dependency order.
// biometricianRequired fills the biometrician pair of every project plan
// endorsement, as document creation would.
func (f File) Records(biometricianRequired bool) ([]any, error) {
	var out []any
	for _, a := range f.BusinessAreas {
		out = append(out, domain.BusinessArea{ID: domain.BusinessAreaID(a.ID), Name: a.Name, LeaderID: domain.UserID(a.Leader)})
	}
	for _, u := range f.Users {
		rec := domain.User{
			ID:                 domain.UserID(u.ID),
			DisplayName:        u.DisplayName,
			BusinessAreaID:     domain.BusinessAreaID(u.BusinessArea),
			IsBiometrician:     u.Biometrician,
			IsHerbariumCurator: u.HerbariumCurator,
			IsAEC:              u.AEC,
			IsSuperuser:        u.Superuser,
		}
		if u.Token != "" {
			rec.TokenHash = authn.HashToken(u.Token)
		}
		out = append(out, rec)
	}
	reports := map[string]domain.AnnualReport{}
	for _, r := range f.AnnualReports {
		rec := domain.AnnualReport{ID: domain.AnnualReportID(r.ID), Year: r.Year}
		reports[r.ID] = rec
		out = append(out, rec)
	}

	now := time.Now().UTC()
	for _, p := range f.Projects {
		kind, err := domain.ParseProjectKind(p.Kind)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ID, err)
		}
		status := domain.ProjectStatus(p.Status)
		if p.Status == "" {
			status = domain.ProjectNew
		}
		if _, err := domain.ParseProjectStatus(string(status)); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ID, err)
		}
		pid := domain.ProjectID(p.ID)
		out = append(out, domain.Project{ID: pid, Title: p.Title, Kind: kind, Status: status, BusinessAreaID: domain.BusinessAreaID(p.BusinessArea)})
		for _, m := range p.Members {
			role := domain.MemberRole(m.Role)
			if role == "" {
				role = domain.RoleResearch
			}
			out = append(out, domain.ProjectMember{ProjectID: pid, UserID: domain.UserID(m.User), Role: role, IsLeader: m.Leader})
		}
		for _, d := range p.Documents {
			recs, err := documentRecords(pid, d, reports, biometricianRequired, now)
			if err != nil {
				return nil, fmt.Errorf("project %s: %w", p.ID, err)
			}
			out = append(out, recs...)
		}
	}
	return out, nil
}

func documentRecords(pid domain.ProjectID, d Document, reports map[string]domain.AnnualReport, biometricianRequired bool, now time.Time) ([]any, error) {
	kind, err := domain.ParseDocumentKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", d.ID, err)
	}
	doc := domain.Document{
		ID:        domain.DocumentID(d.ID),
		ProjectID: pid,
		Kind:      kind,
		Status:    domain.DocumentStatus(d.Status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.Status == "" {
		doc.Status = domain.DocNew
	}
	for _, g := range d.Gates {
		switch domain.Stage(g) {
		case domain.StageLead:
			doc.LeadApproved = true
		case domain.StageArea:
			doc.AreaApproved = true
		case domain.StageDirectorate:
			doc.DirectorateApproved = true
		default:
			return nil, fmt.Errorf("document %s: %w: %d", d.ID, domain.ErrInvalidStage, g)
		}
	}

	out := []any{}
	var report domain.AnnualReport
	if d.AnnualReport != "" {
		var ok bool
		report, ok = reports[d.AnnualReport]
		if !ok {
			return nil, fmt.Errorf("document %s: annual report %s: %w", d.ID, d.AnnualReport, domain.ErrNotFound)
		}
		doc.AnnualReportID = &report.ID
	}
	if kind.IsReport() != (doc.AnnualReportID != nil) {
		return nil, fmt.Errorf("document %s: %w: report kinds and only report kinds name an annual report", d.ID, domain.ErrInvalidKind)
	}
	out = append(out, doc)

	switch {
	case kind == domain.KindProjectPlan:
		e := domain.Endorsement{DocumentID: doc.ID}
		if d.Endorsement != nil {
			e.InvolvesAnimals = d.Endorsement.InvolvesAnimals
			e.InvolvesPlants = d.Endorsement.InvolvesPlants
		}
		e.Biometrician.Required = biometricianRequired
		e.AnimalEthics.Required = e.InvolvesAnimals
		e.Herbarium.Required = e.InvolvesPlants
		if d.Endorsement != nil {
			for _, k := range d.Endorsement.Provided {
				ek, err := domain.ParseEndorsementKind(k)
				if err != nil {
					return nil, fmt.Errorf("document %s: %w", d.ID, err)
				}
				if p := e.Pair(ek); p.Required {
					p.Provided = true
				}
			}
		}
		out = append(out, e)
	case kind.IsReport():
		out = append(out, domain.NewReportDetail(doc, report))
	case d.Endorsement != nil:
		return nil, fmt.Errorf("document %s: %w: only project plans carry endorsements", d.ID, domain.ErrInvalidKind)
	}
	return out, nil
}

// Load parses path and stores its records through p.
func Load(ctx context.Context, p Putter, path string, biometricianRequired bool) (int, error) {
	f, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	recs, err := f.Records(biometricianRequired)
	if err != nil {
		return 0, fmt.Errorf("fixtures: %s: %w", path, err)
	}
	if err := p.Put(ctx, recs...); err != nil {
		return 0, fmt.Errorf("fixtures: store: %w", err)
	}
	return len(recs), nil
}
