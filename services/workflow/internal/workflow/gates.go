package workflow

import (
	"fmt"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

// Op names a gate operation.
type Op string

const (
	OpAdvance  Op = "advance"
	OpRecall   Op = "recall"
	OpSendBack Op = "send-back"
)

func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpAdvance, OpRecall, OpSendBack:
		return op, nil
	}
	return "", fmt.Errorf("%w: action %q", domain.ErrInvalidKind, s)
}

// Transition applies op to g. It never mutates its input; on error the
// returned state is the zero value and g is still the current state.
func Transition(g domain.GateState, op Op, stage domain.Stage, enforceOrder bool) (domain.GateState, error) {
	switch op {
	case OpAdvance:
		return Advance(g, stage, enforceOrder)
	case OpRecall:
		return Recall(g, stage)
	case OpSendBack:
		return SendBack(g, stage)
	}
	return domain.GateState{}, fmt.Errorf("%w: action %q", domain.ErrInvalidKind, op)
}

func Advance(g domain.GateState, stage domain.Stage, enforceOrder bool) (domain.GateState, error) {
	switch stage {
	case domain.StageLead:
		g.LeadApproved = true
		g.Status = domain.DocInApproval
	case domain.StageArea:
		if enforceOrder && !g.LeadApproved {
			return domain.GateState{}, fmt.Errorf("%w: area approval needs lead approval", domain.ErrOutOfOrderApproval)
		}
		g.AreaApproved = true
		g.Status = domain.DocInApproval
	case domain.StageDirectorate:
		if enforceOrder && !g.AreaApproved {
			return domain.GateState{}, fmt.Errorf("%w: directorate approval needs area approval", domain.ErrOutOfOrderApproval)
		}
		g.DirectorateApproved = true
		g.Status = domain.DocApproved
	default:
		return domain.GateState{}, invalidStage(stage)
	}
	return g, nil
}

// Recall reverses exactly one gate.
func Recall(g domain.GateState, stage domain.Stage) (domain.GateState, error) {
	switch stage {
	case domain.StageLead:
		if g.AreaApproved {
			return domain.GateState{}, fmt.Errorf("%w: cannot recall lead approval after area approval", domain.ErrGuardViolation)
		}
		g.LeadApproved = false
	case domain.StageArea:
		if g.DirectorateApproved {
			return domain.GateState{}, fmt.Errorf("%w: cannot recall area approval after directorate approval", domain.ErrGuardViolation)
		}
		g.AreaApproved = false
	case domain.StageDirectorate:
		g.DirectorateApproved = false
	default:
		return domain.GateState{}, invalidStage(stage)
	}
	g.Status = domain.DocRevising
	return g, nil
}

// SendBack returns the document to the team. Stage 1 has no reviewer below
// it to send back to.
func SendBack(g domain.GateState, stage domain.Stage) (domain.GateState, error) {
	switch stage {
	case domain.StageArea:
		if g.DirectorateApproved {
			return domain.GateState{}, fmt.Errorf("%w: cannot send back after directorate approval", domain.ErrGuardViolation)
		}
		g.LeadApproved = false
		g.AreaApproved = false
	case domain.StageDirectorate:
		g.AreaApproved = false
		g.DirectorateApproved = false
	case domain.StageLead:
		return domain.GateState{}, fmt.Errorf("%w: send-back needs stage 2 or 3", domain.ErrInvalidStage)
	default:
		return domain.GateState{}, invalidStage(stage)
	}
	g.Status = domain.DocInReview
	return g, nil
}

func invalidStage(stage domain.Stage) error {
	return fmt.Errorf("%w: %d", domain.ErrInvalidStage, int(stage))
}

func applyGates(d domain.Document, g domain.GateState) domain.Document {
	d.Status = g.Status
	d.LeadApproved = g.LeadApproved
	d.AreaApproved = g.AreaApproved
	d.DirectorateApproved = g.DirectorateApproved
	return d
}
