package service

import (
	"workshop_backend/internal/model"
)

// Operation is an action a principal may attempt on questions.
type Operation string

const (
	OpViewAny     Operation = "viewAny"
	OpView        Operation = "view"
	OpCreate      Operation = "create"
	OpUpdate      Operation = "update"
	OpDelete      Operation = "delete"
	OpDuplicate   Operation = "duplicate"
	OpBulkCreate  Operation = "bulkCreate"
	OpBulkDelete  Operation = "bulkDelete"
	OpViewAnswers Operation = "viewAnswers"
	OpSearch      Operation = "search"
)

// QuestionPolicy authorizes question operations by role and, for mutating
// operations on an existing record, by ownership. It holds no state and
// never mutates its inputs.
type QuestionPolicy struct{}

func NewQuestionPolicy() *QuestionPolicy {
	return &QuestionPolicy{}
}

// Authorize reports whether the principal may perform op. record is the
// target for operations that act on an existing question and may be nil for
// the rest (including an untargeted viewAnswers check).
func (p *QuestionPolicy) Authorize(principal model.Principal, op Operation, record *model.Question) bool {
	switch op {
	case OpViewAny, OpView, OpSearch:
		return principal.Role == model.Admin ||
			principal.Role == model.Facilitator ||
			principal.Role == model.Participant

	case OpCreate, OpDuplicate:
		return principal.Role == model.Admin || principal.Role == model.Facilitator

	case OpUpdate, OpDelete:
		return p.isOwnerOrAdmin(principal, record)

	case OpBulkCreate, OpBulkDelete:
		return principal.Role == model.Admin

	case OpViewAnswers:
		if principal.Role == model.Admin {
			return true
		}
		if principal.Role == model.Facilitator {
			if record == nil {
				return true
			}
			return record.CreatedBy == principal.ID
		}
		return false
	}

	return false
}

func (p *QuestionPolicy) isOwnerOrAdmin(principal model.Principal, record *model.Question) bool {
	if principal.Role == model.Admin {
		return true
	}
	return principal.Role == model.Facilitator &&
		record != nil && record.CreatedBy == principal.ID
}
