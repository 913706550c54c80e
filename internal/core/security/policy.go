// Package security provides actor scope checks for workflow transitions.
// Policies are CEL expressions evaluated against the acting user and the
// requisition being acted on, so deployments can tune approval rules
// without code changes.
package security

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"medstock/internal/core/appctx"
	"medstock/internal/core/apperror"
)

// Default policy expressions. Overridable via configuration.
const (
	// DefaultApprovePolicy allows warehouse staff and admins to approve,
	// and forbids approving a requisition raised for one's own facility.
	DefaultApprovePolicy = `actor.is_admin || (actor.role in ["warehouse_manager", "pharmacist"] && actor.facility_id != requisition.requesterId)`

	// DefaultDispatchPolicy allows warehouse staff to dispatch and deliver.
	DefaultDispatchPolicy = `actor.is_admin || actor.role in ["warehouse_manager", "storekeeper"]`
)

// Policy is a compiled transition guard.
type Policy struct {
	expr    string
	program cel.Program
}

// actorAttrs exposes the acting user to CEL with typed fields so the
// compile-time bool check can distinguish e.g. `actor.role` (string)
// from `actor.is_admin` (bool).
type actorAttrs struct {
	UserID     string `cel:"user_id"`
	Role       string `cel:"role"`
	FacilityID string `cel:"facility_id"`
	IsAdmin    bool   `cel:"is_admin"`
}

// CompilePolicy compiles a CEL expression into a Policy.
// The expression must evaluate to bool over two variables:
// `actor` (typed fields) and `requisition` (string-keyed map).
func CompilePolicy(expr string) (*Policy, error) {
	env, err := cel.NewEnv(
		ext.NativeTypes(reflect.TypeOf(actorAttrs{}), ext.ParseStructTags(true)),
		cel.Variable("actor", cel.ObjectType("security.actorAttrs")),
		cel.Variable("requisition", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile policy %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}

	return &Policy{expr: expr, program: program}, nil
}

// MustCompilePolicy compiles expr, panicking on error.
// Use for the built-in default expressions and tests.
func MustCompilePolicy(expr string) *Policy {
	p, err := CompilePolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Expr returns the source expression.
func (p *Policy) Expr() string { return p.expr }

// Check evaluates the policy for the actor in ctx against the given
// requisition attributes. Returns a Forbidden error when the policy
// denies, Unauthorized when no actor is present.
func (p *Policy) Check(ctx context.Context, requisition map[string]any) error {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return apperror.NewUnauthorized("acting user is required")
	}

	out, _, err := p.program.Eval(map[string]any{
		"actor": actorAttrs{
			UserID:     actor.UserID,
			Role:       actor.Role,
			FacilityID: actor.FacilityID,
			IsAdmin:    actor.IsAdmin,
		},
		"requisition": requisition,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate policy: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("policy %q returned non-bool", p.expr))
	}
	if !allowed {
		return apperror.NewForbidden("actor is not permitted to perform this transition").
			WithDetail("role", actor.Role)
	}
	return nil
}
