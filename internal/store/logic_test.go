package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AnnotationStatus
		want     bool
	}{
		{StatusPending, StatusAcknowledged, true},
		{StatusPending, StatusDismissed, true},
		{StatusPending, StatusResolved, false},
		{StatusAcknowledged, StatusResolved, true},
		{StatusAcknowledged, StatusDismissed, true},
		{StatusAcknowledged, StatusPending, false},
		{StatusResolved, StatusPending, true},
		{StatusResolved, StatusAcknowledged, false},
		{StatusDismissed, StatusPending, true},
		{StatusPending, StatusPending, true},
		{StatusResolved, StatusResolved, true},
	}
	for _, c := range cases {
		got := CanTransition(c.from, c.to)
		assert.Equalf(t, c.want, got, "%s -> %s", c.from, c.to)
	}
}

func TestApplyPatch_IllegalTransitionRejected(t *testing.T) {
	ann := Annotation{Status: StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	resolved := StatusResolved
	err := applyPatch(&ann, AnnotationPatch{Status: &resolved})
	require.Error(t, err)
	assert.Equal(t, StatusPending, ann.Status)
}

func TestApplyPatch_ResolvedSetsResolvedAt(t *testing.T) {
	ann := Annotation{Status: StatusAcknowledged, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	resolved := StatusResolved
	by := ResolverHuman
	err := applyPatch(&ann, AnnotationPatch{Status: &resolved, ResolvedBy: &by})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, ann.Status)
	require.NotNil(t, ann.ResolvedAt)
	assert.Equal(t, ResolverHuman, ann.ResolvedBy)
}

func TestApplyPatch_ReopenClearsResolution(t *testing.T) {
	now := time.Now()
	ann := Annotation{Status: StatusResolved, ResolvedAt: &now, ResolvedBy: ResolverHuman, CreatedAt: now, UpdatedAt: now}
	pending := StatusPending
	err := applyPatch(&ann, AnnotationPatch{Status: &pending})
	require.NoError(t, err)
	assert.Nil(t, ann.ResolvedAt)
	assert.Equal(t, ResolverKind(""), ann.ResolvedBy)
}

func TestSortAnnotations_TiesBrokenByID(t *testing.T) {
	now := time.Now()
	anns := []Annotation{
		{ID: "b", CreatedAt: now},
		{ID: "a", CreatedAt: now},
	}
	sortAnnotations(anns)
	assert.Equal(t, "a", anns[0].ID)
	assert.Equal(t, "b", anns[1].ID)
}

func TestSortAnnotations_OrdersByCreation(t *testing.T) {
	now := time.Now()
	anns := []Annotation{
		{ID: "later", CreatedAt: now.Add(time.Second)},
		{ID: "earlier", CreatedAt: now},
	}
	sortAnnotations(anns)
	assert.Equal(t, "earlier", anns[0].ID)
	assert.Equal(t, "later", anns[1].ID)
}
