package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/routing"
)

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll{}.Validate(context.Background(), "M1", "C1", routing.ActionRoute))
}

func TestNew_EmptyExpressionAllowsAll(t *testing.T) {
	a, err := New("", "L")
	require.NoError(t, err)
	assert.IsType(t, AllowAll{}, a)
}

func TestPolicy_Validate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		expression string
		actor      string
		community  string
		want       bool
	}{
		{"community allow list", `community in ["C1", "C2"]`, "L", "C2", true},
		{"community outside allow list", `community in ["C1", "C2"]`, "L", "C3", false},
		{"local actor only", `actor == local`, "L", "C9", true},
		{"foreign actor", `actor == local`, "M7", "C9", false},
		{"action and prefix", `action == "routing.route" && community startsWith "public-"`, "L", "public-eu", true},
		{"prefix mismatch", `action == "routing.route" && community startsWith "public-"`, "L", "private", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.expression, "L", WithLogger(logging.NewNopLogger()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Validate(ctx, tt.actor, tt.community, routing.ActionRoute))
		})
	}
}

func TestPolicy_CompileErrors(t *testing.T) {
	for _, expression := range []string{`community ==`, `community`, `unknown == "x"`} {
		t.Run(expression, func(t *testing.T) {
			_, err := NewPolicy(expression, "L")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestPolicy_DecisionCache(t *testing.T) {
	p, err := NewPolicy(`community == "C1"`, "L", WithDecisionTTL(time.Minute), WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	assert.True(t, p.Validate(context.Background(), "L", "C1", routing.ActionRoute))
	assert.Equal(t, 1, p.decisions.ItemCount())
	assert.True(t, p.Validate(context.Background(), "L", "C1", routing.ActionRoute))
	assert.Equal(t, 1, p.decisions.ItemCount())

	uncached, err := NewPolicy(`community == "C1"`, "L", WithDecisionTTL(0))
	require.NoError(t, err)
	assert.Nil(t, uncached.decisions)
	assert.False(t, uncached.Validate(context.Background(), "L", "C2", routing.ActionRoute))
}

func TestCompile_SharesPrograms(t *testing.T) {
	first, err := Compile(`actor != ""`)
	require.NoError(t, err)
	second, err := Compile(`actor != ""`)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
