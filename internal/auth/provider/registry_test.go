package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Housri/steam-auth-public/internal/auth"
)

type namedProvider struct{ name string }

func (p namedProvider) Name() string { return p.name }

func (p namedProvider) BeginAuth(context.Context, AuthRequest) (string, error) {
	return "https://idp.test/" + p.name, nil
}

func (p namedProvider) CompleteAuth(context.Context, Callback) (*auth.Assertion, error) {
	return &auth.Assertion{Provider: p.name}, nil
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(namedProvider{"steam"})

	p, err := r.Get("steam")
	require.NoError(t, err)
	assert.Equal(t, "steam", p.Name())

	_, err = r.Get("google")
	assert.Error(t, err)
}

func TestRegistry_LaterDuplicateWins(t *testing.T) {
	first := &namedProvider{"steam"}
	second := &namedProvider{"steam"}
	r := NewRegistry(first, second)

	p, err := r.Get("steam")
	require.NoError(t, err)
	assert.Same(t, second, p)
}
