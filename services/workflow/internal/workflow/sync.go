package workflow

import "github.com/dbca-wa/science-projects-service-sub000/pkg/domain"

// projectStatusAfter is the project status a successful gate operation
// implies. Only the directorate gate of a project plan moves the project:
// approval makes it active and recall returns it to pending. Everything
// else leaves the project alone.
func projectStatusAfter(kind domain.DocumentKind, op Op, stage domain.Stage) (domain.ProjectStatus, bool) {
	if kind != domain.KindProjectPlan || stage != domain.StageDirectorate {
		return "", false
	}
	switch op {
	case OpAdvance:
		return domain.ProjectActive, true
	case OpRecall:
		return domain.ProjectPending, true
	}
	return "", false
}
