package cage

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func idFrom(b byte) Identifier {
	var id Identifier
	id[IdentifierLen-1] = b
	return id
}

func TestDistanceSelfIsZero(t *testing.T) {
	a := idFrom(7)
	require.True(t, Distance(a, a).IsZero())
}

func TestDistanceSymmetric(t *testing.T) {
	a, b := idFrom(3), idFrom(9)
	require.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistanceTriangleInequality(t *testing.T) {
	a, b, c := idFrom(1), idFrom(2), idFrom(4)
	dab := Distance(a, b)
	dac := Distance(a, c)
	dcb := Distance(c, b)
	xor := new(uint256.Int).Xor(dac, dcb)
	require.True(t, dab.Cmp(xor) <= 0)
}

func TestLessOrdersByDistance(t *testing.T) {
	target := idFrom(0)
	near := idFrom(1)
	far := idFrom(0xF0)
	require.True(t, Less(target, near, far))
	require.False(t, Less(target, far, near))
}

func TestProbeKeyBootstrapNeverAliasesZero(t *testing.T) {
	zero := ByID(ZeroIdentifier)
	require.NotEqual(t, Bootstrap.MapKey(), zero.MapKey())
}

func TestValidateTargetRejectsZero(t *testing.T) {
	require.Error(t, ValidateTarget(ZeroIdentifier))
	require.NoError(t, ValidateTarget(idFrom(1)))
}
