package domain

import "fmt"

type ProjectID string
type UserID string
type BusinessAreaID string
type AnnualReportID string

type ProjectKind string

const (
	ProjectScience      ProjectKind = "science"
	ProjectStudent      ProjectKind = "student"
	ProjectExternal     ProjectKind = "external"
	ProjectCoreFunction ProjectKind = "core_function"
)

type ProjectStatus string

const (
	ProjectNew              ProjectStatus = "new"
	ProjectPending          ProjectStatus = "pending"
	ProjectActive           ProjectStatus = "active"
	ProjectUpdating         ProjectStatus = "updating"
	ProjectClosureRequested ProjectStatus = "closure_requested"
	ProjectClosing          ProjectStatus = "closing"
	ProjectFinalUpdate      ProjectStatus = "final_update"
	ProjectCompleted        ProjectStatus = "completed"
	ProjectTerminated       ProjectStatus = "terminated"
	ProjectSuspended        ProjectStatus = "suspended"
)

// ActiveStatuses are the statuses of a running project, including the ones
// on the way to closure.
var ActiveStatuses = []ProjectStatus{
	ProjectActive,
	ProjectUpdating,
	ProjectClosureRequested,
	ProjectClosing,
	ProjectFinalUpdate,
}

// ClosedStatuses are terminal (or frozen) statuses.
var ClosedStatuses = []ProjectStatus{
	ProjectCompleted,
	ProjectTerminated,
	ProjectSuspended,
}

func (s ProjectStatus) IsActive() bool { return statusIn(s, ActiveStatuses) }
func (s ProjectStatus) IsClosed() bool { return statusIn(s, ClosedStatuses) }

func statusIn(s ProjectStatus, set []ProjectStatus) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

type Project struct {
	ID             ProjectID      `json:"id"`
	Title          string         `json:"title"`
	Kind           ProjectKind    `json:"kind"`
	Status         ProjectStatus  `json:"status"`
	BusinessAreaID BusinessAreaID `json:"business_area_id"`
}

// MemberRole is the role a user plays on a project team.
type MemberRole string

const (
	RoleSupervising   MemberRole = "supervising"
	RoleResearch      MemberRole = "research"
	RoleTechnical     MemberRole = "technical"
	RoleStudent       MemberRole = "student"
	RoleExternal      MemberRole = "external"
	RoleAcademicSuper MemberRole = "academicsuper"
	RoleConsulted     MemberRole = "consulted"
	RoleGroup         MemberRole = "group"
	RoleOther         MemberRole = "other"
)

type ProjectMember struct {
	ProjectID ProjectID  `json:"project_id"`
	UserID    UserID     `json:"user_id"`
	Role      MemberRole `json:"role"`
	IsLeader  bool       `json:"is_leader"`
}

type BusinessArea struct {
	ID       BusinessAreaID `json:"id"`
	Name     string         `json:"name"`
	LeaderID UserID         `json:"leader_id"`
}

type AnnualReport struct {
	ID   AnnualReportID `json:"id"`
	Year int            `json:"year"`
}

func ParseProjectKind(s string) (ProjectKind, error) {
	switch k := ProjectKind(s); k {
	case ProjectScience, ProjectStudent, ProjectExternal, ProjectCoreFunction:
		return k, nil
	}
	return "", fmt.Errorf("%w: project kind %q", ErrInvalidKind, s)
}

func ParseProjectStatus(s string) (ProjectStatus, error) {
	st := ProjectStatus(s)
	if st == ProjectNew || st == ProjectPending || st.IsActive() || st.IsClosed() {
		return st, nil
	}
	return "", fmt.Errorf("%w: project status %q", ErrInvalidKind, s)
}
