package store

import (
	"sort"
	"time"

	"github.com/agentation/broker/internal/apperr"
)

// applyPatch mutates ann in place according to patch, enforcing the
// status transition lattice (spec.md §3). It returns an error if the
// patch requests an illegal transition.
func applyPatch(ann *Annotation, patch AnnotationPatch) error {
	if patch.Status != nil {
		if !CanTransition(ann.Status, *patch.Status) {
			return apperr.Validationf("illegal status transition: %s -> %s", ann.Status, *patch.Status)
		}
		ann.Status = *patch.Status
	}
	if patch.Comment != nil {
		ann.Comment = *patch.Comment
	}
	if patch.Element != nil {
		ann.Element = *patch.Element
	}
	if patch.ElementPath != nil {
		ann.ElementPath = *patch.ElementPath
	}
	if patch.URL != nil {
		ann.URL = *patch.URL
	}
	if patch.BoundingBox != nil {
		ann.BoundingBox = patch.BoundingBox
	}
	if patch.Intent != nil {
		ann.Intent = *patch.Intent
	}
	if patch.Severity != nil {
		ann.Severity = *patch.Severity
	}
	if patch.ResolvedBy != nil {
		ann.ResolvedBy = *patch.ResolvedBy
	}
	if patch.Context != nil {
		if ann.Context == nil {
			ann.Context = map[string]string{}
		}
		for k, v := range patch.Context {
			ann.Context[k] = v
		}
	}

	now := time.Now().UTC()
	if ann.Status == StatusResolved || ann.Status == StatusDismissed {
		if ann.ResolvedAt == nil {
			ann.ResolvedAt = &now
		}
	} else {
		ann.ResolvedAt = nil
		ann.ResolvedBy = ""
	}
	ann.UpdatedAt = now
	return nil
}

// sortAnnotations orders a slice by creation timestamp, ties broken by id
// lexicographic order, per spec.md §3.
func sortAnnotations(anns []Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		if anns[i].CreatedAt.Equal(anns[j].CreatedAt) {
			return anns[i].ID < anns[j].ID
		}
		return anns[i].CreatedAt.Before(anns[j].CreatedAt)
	})
}

func sortThread(msgs []ThreadMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

func sortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
