package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstock/internal/core/apperror"
	"medstock/internal/core/appctx"
)

func ctxWithActor(actor *appctx.Actor) context.Context {
	return appctx.WithActor(context.Background(), actor)
}

func reqAttrs(requesterID string) map[string]any {
	return map[string]any{
		"id":          "req-1",
		"source":      "facility",
		"status":      "pending",
		"warehouseId": "wh-1",
		"requesterId": requesterID,
		"createdBy":   "user-9",
	}
}

func TestCompilePolicy_RejectsNonBool(t *testing.T) {
	_, err := CompilePolicy(`actor.role`)
	assert.Error(t, err)
}

func TestCompilePolicy_RejectsBadSyntax(t *testing.T) {
	_, err := CompilePolicy(`actor.role ==`)
	assert.Error(t, err)
}

func TestPolicyCheck_Allows(t *testing.T) {
	p := MustCompilePolicy(`actor.role == "pharmacist"`)
	ctx := ctxWithActor(&appctx.Actor{UserID: "u1", Role: "pharmacist"})

	require.NoError(t, p.Check(ctx, reqAttrs("fac-2")))
}

func TestPolicyCheck_Denies(t *testing.T) {
	p := MustCompilePolicy(`actor.role == "pharmacist"`)
	ctx := ctxWithActor(&appctx.Actor{UserID: "u1", Role: "nurse"})

	err := p.Check(ctx, reqAttrs("fac-2"))
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
}

func TestPolicyCheck_NoActor(t *testing.T) {
	p := MustCompilePolicy(`true`)

	err := p.Check(context.Background(), reqAttrs("fac-2"))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestDefaultApprovePolicy(t *testing.T) {
	p := MustCompilePolicy(DefaultApprovePolicy)

	tests := []struct {
		name    string
		actor   appctx.Actor
		reqFrom string
		allowed bool
	}{
		{"admin always", appctx.Actor{UserID: "a", IsAdmin: true}, "fac-1", true},
		{"pharmacist other facility", appctx.Actor{UserID: "p", Role: "pharmacist", FacilityID: "fac-1"}, "fac-2", true},
		{"pharmacist own facility", appctx.Actor{UserID: "p", Role: "pharmacist", FacilityID: "fac-1"}, "fac-1", false},
		{"warehouse manager", appctx.Actor{UserID: "w", Role: "warehouse_manager"}, "fac-1", true},
		{"plain requester", appctx.Actor{UserID: "r", Role: "nurse", FacilityID: "fac-1"}, "fac-2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(ctxWithActor(&tt.actor), reqAttrs(tt.reqFrom))
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDefaultDispatchPolicy(t *testing.T) {
	p := MustCompilePolicy(DefaultDispatchPolicy)

	assert.NoError(t, p.Check(
		ctxWithActor(&appctx.Actor{UserID: "s", Role: "storekeeper"}), reqAttrs("fac-1")))
	assert.Error(t, p.Check(
		ctxWithActor(&appctx.Actor{UserID: "n", Role: "nurse"}), reqAttrs("fac-1")))
}
