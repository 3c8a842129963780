// Package authz decides whether a member may act on a community.
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	gocache "github.com/patrickmn/go-cache"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/routing"
)

// AllowAll grants every request
type AllowAll struct{}

// Validate always returns true
func (AllowAll) Validate(context.Context, string, string, string) bool { return true }

// compiled programs are shared across policies with the same source
var programs = gocache.New(gocache.NoExpiration, 0)

// Compile checks that expression is a boolean policy over the request fields
func Compile(expression string) (*vm.Program, error) {
	if cached, found := programs.Get(expression); found {
		if program, ok := cached.(*vm.Program); ok {
			return program, nil
		}
	}

	program, err := expr.Compile(expression, expr.Env(request{}), expr.AsBool())
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid authorization policy: %v", err))
	}
	programs.Set(expression, program, gocache.DefaultExpiration)
	return program, nil
}

// request is the environment a policy expression sees
type request struct {
	Actor     string `expr:"actor"`
	Community string `expr:"community"`
	Action    string `expr:"action"`
	Local     string `expr:"local"`
}

// Policy evaluates a compiled expression and remembers recent decisions
type Policy struct {
	expression string
	program    *vm.Program
	local      string
	decisions  *gocache.Cache
	logger     logging.Logger
}

// PolicyOption configures a Policy
type PolicyOption func(*Policy)

// WithDecisionTTL sets how long a decision is reused. Zero disables caching.
func WithDecisionTTL(ttl time.Duration) PolicyOption {
	return func(p *Policy) {
		if ttl <= 0 {
			p.decisions = nil
			return
		}
		p.decisions = gocache.New(ttl, 2*ttl)
	}
}

// WithLogger sets the policy logger
func WithLogger(logger logging.Logger) PolicyOption {
	return func(p *Policy) { p.logger = logger }
}

// NewPolicy compiles expression for the node running as localMemberID
func NewPolicy(expression, localMemberID string, opts ...PolicyOption) (*Policy, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}

	p := &Policy{
		expression: expression,
		program:    program,
		local:      localMemberID,
		decisions:  gocache.New(30*time.Second, time.Minute),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.Component(p.logger, "authz")
	return p, nil
}

// Validate runs the policy. Evaluation errors deny.
func (p *Policy) Validate(ctx context.Context, actor, community, action string) bool {
	key := actor + "|" + community + "|" + action
	if p.decisions != nil {
		if cached, found := p.decisions.Get(key); found {
			return cached.(bool)
		}
	}

	out, err := expr.Run(p.program, request{Actor: actor, Community: community, Action: action, Local: p.local})
	if err != nil {
		p.logger.WithContext(ctx).Warn("Authorization policy failed",
			logging.String("actor", actor),
			logging.String("community", community),
			logging.String("action", action),
			logging.Err(err),
		)
		return false
	}

	allowed, _ := out.(bool)
	if p.decisions != nil {
		p.decisions.SetDefault(key, allowed)
	}
	return allowed
}

// Expression returns the policy source
func (p *Policy) Expression() string { return p.expression }

// New returns AllowAll for an empty expression and a Policy otherwise
func New(expression, localMemberID string, opts ...PolicyOption) (routing.Authorizer, error) {
	if expression == "" {
		return AllowAll{}, nil
	}
	return NewPolicy(expression, localMemberID, opts...)
}
