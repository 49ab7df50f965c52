package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("publish: %w", Conflict("resume-builder", nil))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestConflictCarriesSuggestions(t *testing.T) {
	err := Conflict("resume-builder", []Suggestion{{Name: "Résumé Builder Pro", Slug: "resume-builder-pro"}})
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "resume-builder", e.Details["slug"])
	assert.Len(t, e.Details["suggestions"], 1)
}

func TestUpstreamAndPersistenceStayDistinct(t *testing.T) {
	cause := errors.New("boom")
	up := UpstreamGeneration("timeout", cause)
	pe := Persistence("create session", cause)

	assert.NotEqual(t, KindOf(up), KindOf(pe))
	assert.ErrorIs(t, up, cause)
	assert.True(t, errors.Is(up, &Error{Kind: KindUpstreamGeneration}))
	assert.False(t, errors.Is(pe, &Error{Kind: KindUpstreamGeneration}))
}

func TestQuotaExceededDetails(t *testing.T) {
	e := QuotaExceeded(100, 100)
	assert.Equal(t, int64(100), e.Details["limit"])
	assert.Equal(t, int64(100), e.Details["usage"])
}
