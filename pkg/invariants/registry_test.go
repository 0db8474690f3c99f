package invariants

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vaultguard/pkg/types"
)

func TestDefaultRegistryWiring(t *testing.T) {
	reg := Default()

	// Every operation with registered checks, and the checks expected on the
	// heaviest triggers.
	settleDeposit := checkNames(reg.For(types.OpSettleDeposit))
	require.Contains(t, settleDeposit, "nav-validity-consistency")
	require.Contains(t, settleDeposit, "nav-settlement-expiration")
	require.Contains(t, settleDeposit, "epoch-parity")
	require.Contains(t, settleDeposit, "epoch-settled-lag")
	require.Contains(t, settleDeposit, "epoch-step")
	require.Contains(t, settleDeposit, "accounting-settle-deposit")
	require.Contains(t, settleDeposit, "silo-backing")
	require.Contains(t, settleDeposit, "silo-settlement-outflow")

	syncDeposit := checkNames(reg.For(types.OpSyncDeposit))
	require.Contains(t, syncDeposit, "sync-mode-exclusive")
	require.Contains(t, syncDeposit, "sync-accounting")
	require.Contains(t, syncDeposit, "epoch-sync-isolation")
	require.Contains(t, syncDeposit, "silo-sync-isolation")
	require.NotContains(t, syncDeposit, "accounting-settle-deposit")

	require.Empty(t, checkNames(reg.For(types.Operation("transfer"))))
}

func TestRegistryOrderIsRegistrationOrder(t *testing.T) {
	reg := Default()
	names := checkNames(reg.For(types.OpSettleRedeem))
	// NAV family registers before the accounting family.
	require.Less(t, indexOf(names, "nav-validity-consistency"), indexOf(names, "accounting-settle-redeem"))
}

func TestRegistryLookup(t *testing.T) {
	reg := Default()

	c, ok := reg.Lookup("accounting-redeem-solvency")
	require.True(t, ok)
	require.Equal(t, "accounting-redeem-solvency", c.Name())

	_, ok = reg.Lookup("no-such-check")
	require.False(t, ok)
}

func TestCheckNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Default().Checks() {
		require.False(t, seen[c.Name()], "duplicate check name %s", c.Name())
		seen[c.Name()] = true
	}
}

func checkNames(checks []Check) []string {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name())
	}
	return names
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}
