package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPattern(t *testing.T) {
	t.Run("single IP literal", func(t *testing.T) {
		hosts, err := ExpandPattern("192.0.2.10")
		require.NoError(t, err)
		assert.Equal(t, []string{"192.0.2.10"}, hosts)
	})

	t.Run("CIDR /30 expands to four hosts", func(t *testing.T) {
		hosts, err := ExpandPattern("192.0.2.0/30")
		require.NoError(t, err)
		assert.Equal(t, []string{"192.0.2.0", "192.0.2.1", "192.0.2.2", "192.0.2.3"}, hosts)
	})

	t.Run("CIDR /32 is a single host", func(t *testing.T) {
		hosts, err := ExpandPattern("192.0.2.7/32")
		require.NoError(t, err)
		assert.Equal(t, []string{"192.0.2.7"}, hosts)
	})

	t.Run("octet range in two positions is a cartesian product", func(t *testing.T) {
		hosts, err := ExpandPattern("10.0.[1:2].[4:5]")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.1.4", "10.0.1.5", "10.0.2.4", "10.0.2.5"}, hosts)
	})

	t.Run("DNS name passes through", func(t *testing.T) {
		hosts, err := ExpandPattern("host.example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"host.example.com"}, hosts)
	})

	t.Run("alpha range in DNS name", func(t *testing.T) {
		hosts, err := ExpandPattern("rhel[a:c].example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"rhela.example.com", "rhelb.example.com", "rhelc.example.com",
		}, hosts)
	})

	t.Run("numeric range in DNS name", func(t *testing.T) {
		hosts, err := ExpandPattern("web[1:3].example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"web1.example.com", "web2.example.com", "web3.example.com",
		}, hosts)
	})

	t.Run("IP dash ranges are rejected", func(t *testing.T) {
		_, err := ExpandPattern("192.0.2.1-192.0.2.9")
		assert.Error(t, err)
	})

	t.Run("octet above 255 is rejected", func(t *testing.T) {
		_, err := ExpandPattern("192.0.2.300")
		assert.Error(t, err)
	})

	t.Run("prefix above 32 is rejected", func(t *testing.T) {
		_, err := ExpandPattern("192.0.2.0/33")
		assert.Error(t, err)
	})

	t.Run("empty octet is rejected", func(t *testing.T) {
		_, err := ExpandPattern("192..2.0/24")
		assert.Error(t, err)
	})
}

func TestCIDRToRanges(t *testing.T) {
	cases := []struct {
		cidr string
		want string
	}{
		{"192.0.2.0/30", "192.0.2.[0:3]"},
		{"192.0.2.0/24", "192.0.2.[0:255]"},
		{"10.0.0.0/8", "10.[0:255].[0:255].[0:255]"},
		{"172.16.0.0/12", "172.[16:31].[0:255].[0:255]"},
		{"192.0.2.7/32", "192.0.2.7"},
		{"0.0.0.0/0", "[0:255].[0:255].[0:255].[0:255]"},
	}
	for _, tc := range cases {
		got, err := CIDRToRanges(tc.cidr)
		require.NoError(t, err, tc.cidr)
		assert.Equal(t, tc.want, got, tc.cidr)
	}
}

// Expanding an accepted CIDR and re-validating its range expression
// must succeed and expand identically.
func TestCIDRRoundTrip(t *testing.T) {
	for _, cidr := range []string{"192.0.2.0/30", "10.1.0.0/22", "203.0.113.64/26"} {
		expr, err := CIDRToRanges(cidr)
		require.NoError(t, err, cidr)

		fromCIDR, err := ExpandPattern(cidr)
		require.NoError(t, err, cidr)
		fromExpr, err := ExpandPattern(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, fromCIDR, fromExpr, cidr)
	}
}

func TestExpandPatterns(t *testing.T) {
	t.Run("deduplicates preserving first-seen order", func(t *testing.T) {
		hosts, err := ExpandPatterns([]string{"192.0.2.1", "192.0.2.[1:2]"})
		require.NoError(t, err)
		assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, hosts)
	})

	t.Run("reports every bad expression", func(t *testing.T) {
		_, err := ExpandPatterns([]string{"192.0.2.400", "ok.example.com", "10.0.0.0/40"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "192.0.2.400")
		assert.Contains(t, err.Error(), "10.0.0.0/40")
	})
}

func TestApplyExclusions(t *testing.T) {
	hosts, err := ExpandPatterns([]string{"192.0.2.0/30"})
	require.NoError(t, err)

	remaining, err := ApplyExclusions(hosts, []string{"192.0.2.[2:3]"})
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.0", "192.0.2.1"}, remaining)
}

func TestBuildInventoryGrouping(t *testing.T) {
	hosts := make([]string, 7)
	for i := range hosts {
		hosts[i] = "h" + string(rune('0'+i))
	}
	cred := networkPasswordCredential(t)

	groups := BuildInventory(hosts, cred, 22, 3, "")
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Hosts, 3)
	assert.Len(t, groups[1].Hosts, 3)
	assert.Len(t, groups[2].Hosts, 1)
	assert.Equal(t, "admin", groups[0].Vars[VarUsername])
	assert.Equal(t, "s3cret", groups[0].Vars[VarPassword])
	assert.Equal(t, "22", groups[0].Vars[VarPort])
	assert.Equal(t, "sudo", groups[0].Vars[VarBecomeMethod])
}
