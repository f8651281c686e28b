package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"launch-watch/internal/domain"
)

type fakeSource struct {
	name  string
	md    *domain.TokenMetadata
	err   error
	calls int
	wait  time.Duration
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	f.calls++
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.md, f.err
}

func strPtr(s string) *string { return &s }

func TestEnricher_FirstResolvedWins(t *testing.T) {
	failing := &fakeSource{name: "a", err: errors.New("boom")}
	absent := &fakeSource{name: "b"}
	found := &fakeSource{name: "c", md: &domain.TokenMetadata{Name: "Cat", Symbol: "CAT"}}
	never := &fakeSource{name: "d", md: &domain.TokenMetadata{Name: "Dog"}}

	e := NewEnricher([]Source{failing, absent, found, never}, 0, zaptest.NewLogger(t))
	md := e.Enrich(context.Background(), strPtr("mint"))

	require.NotNil(t, md)
	assert.Equal(t, "Cat", md.Name)
	assert.Equal(t, "mint", md.Mint)
	assert.Equal(t, "c", md.Source)
	assert.True(t, md.Resolved)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, absent.calls)
	assert.Equal(t, 0, never.calls)
}

func TestEnricher_AllFailReturnsSentinel(t *testing.T) {
	src := &fakeSource{name: "a", err: errors.New("boom")}
	e := NewEnricher([]Source{src}, 0, zaptest.NewLogger(t))

	md := e.Enrich(context.Background(), strPtr("mint"))
	require.NotNil(t, md)
	assert.Equal(t, domain.UnknownName, md.Name)
	assert.Equal(t, domain.UnknownName, md.Symbol)
	assert.Equal(t, "mint", md.Mint)
	assert.False(t, md.Resolved)
}

func TestEnricher_NilMintSkipsSources(t *testing.T) {
	src := &fakeSource{name: "a", md: &domain.TokenMetadata{Name: "x"}}
	e := NewEnricher([]Source{src}, 0, nil)

	md := e.Enrich(context.Background(), nil)
	require.NotNil(t, md)
	assert.False(t, md.Resolved)
	assert.Equal(t, 0, src.calls)
}

func TestEnricher_SourceTimeout(t *testing.T) {
	slow := &fakeSource{name: "slow", wait: time.Second, md: &domain.TokenMetadata{Name: "late"}}
	e := NewEnricher([]Source{slow}, 20*time.Millisecond, zaptest.NewLogger(t))

	md := e.Enrich(context.Background(), strPtr("mint"))
	assert.False(t, md.Resolved)
}

func TestEnricher_NoSources(t *testing.T) {
	md := NewEnricher(nil, 0, nil).Enrich(context.Background(), strPtr("mint"))
	assert.Equal(t, domain.UnknownTokenMetadata("mint"), md)
}
