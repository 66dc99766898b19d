package errors

import (
	stdliberrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndStack(t *testing.T) {
	err := New(CodeModelInvalid, "metabolite set is empty")
	require.NotNil(t, err)
	assert.Equal(t, CodeModelInvalid, err.Code)
	assert.Contains(t, err.Error(), "MODEL_001")
	assert.Contains(t, err.Error(), "metabolite set is empty")
	assert.NotEmpty(t, err.Stack)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeSolverNumerical, "should vanish"))
}

func TestWrapPreservesCodeOnUnknown(t *testing.T) {
	inner := New(CodeSolverInfeasible, "no feasible point")
	outer := Wrap(inner, CodeUnknown, "FVA step failed")
	assert.Equal(t, CodeSolverInfeasible, outer.Code)
	assert.True(t, stdliberrors.Is(outer, inner))
}

func TestIsCodeTraversesChain(t *testing.T) {
	inner := New(CodeSolverTimeout, "simplex watchdog fired")
	mid := fmt.Errorf("dilution experiment for atp_c: %w", inner)
	outer := Wrap(mid, CodeCheckExhausted, "attempts exhausted")

	assert.True(t, IsCode(outer, CodeSolverTimeout))
	assert.True(t, IsCode(outer, CodeCheckExhausted))
	assert.False(t, IsCode(outer, CodeSolverUnbounded))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stdliberrors.New("plain")))
	assert.Equal(t, CodeSolverUnbounded, GetCode(New(CodeSolverUnbounded, "ray found")))
}

func TestIsSolverRecoverable(t *testing.T) {
	assert.True(t, IsSolverRecoverable(New(CodeSolverInfeasible, "")))
	assert.True(t, IsSolverRecoverable(New(CodeSolverUnbounded, "")))
	assert.True(t, IsSolverRecoverable(New(CodeSolverNumerical, "")))
	assert.False(t, IsSolverRecoverable(New(CodeSolverTimeout, "")))
	assert.False(t, IsSolverRecoverable(nil))
}

func TestWithDetailClones(t *testing.T) {
	base := InvalidModel("bounds inverted")
	detailed := base.WithDetail("reaction=PFK lb=10 ub=-10")
	assert.Empty(t, base.Detail)
	assert.Contains(t, detailed.Error(), "reaction=PFK")

	var nilErr *AppError
	assert.Nil(t, nilErr.WithDetail("x"))
}
