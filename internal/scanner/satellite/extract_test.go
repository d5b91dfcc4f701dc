package satellite

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHostFields(t *testing.T) {
	body := json.RawMessage(`{
		"name": "sat-host.example.com",
		"organization_name": "ACME",
		"location_name": "lab",
		"operatingsystem_name": "RedHat 7.4",
		"subscription_facet_attributes": {
			"uuid": "00000000-0000-0000-0000-000000000042",
			"registered_by": "admin",
			"registered_at": "2017-12-04 13:19:57 UTC",
			"last_checkin": "2018-01-04 17:36:07 UTC",
			"virtual_host": {"uuid": "vh-1", "name": "hyper-1"},
			"virtual_guests": []
		},
		"content_facet_attributes": {"katello_agent_installed": false},
		"facts": {
			"net.interface.eth0.ipv4_address": "192.0.2.11",
			"net.interface.eth0.macaddress": "AA:BB:CC:DD:EE:FF",
			"net.interface.lo.ipv4_address": "127.0.0.1"
		}
	}`)

	fields := extractHostFields(body)

	assert.Equal(t, "00000000-0000-0000-0000-000000000042", fields["uuid"])
	assert.Equal(t, "sat-host.example.com", fields["hostname"])
	assert.Equal(t, "RedHat 7.4", fields["os_release"])
	assert.Equal(t, "RedHat", fields["os_name"])
	assert.Equal(t, "7.4", fields["os_version"])
	assert.Equal(t, "ACME", fields["organization"])
	assert.Equal(t, "vh-1", fields["virtual_host_uuid"])
	assert.Equal(t, "hyper-1", fields["virtual_host_name"])
	assert.Equal(t, 0, fields["num_virtual_guests"])
	assert.Equal(t, "guest", fields["virtual"])
	assert.Equal(t, []string{"192.0.2.11"}, fields["ip_addresses"])
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, fields["mac_addresses"])
}

func TestExtractHostFields_V2FactKeys(t *testing.T) {
	body := json.RawMessage(`{
		"name": "sat-host",
		"facts": {
			"net::interface::eth0::ipv4_address": "192.0.2.20",
			"net::interface::eth0::macaddress": "11:22:33:44:55:66"
		}
	}`)

	fields := extractHostFields(body)
	assert.Equal(t, []string{"192.0.2.20"}, fields["ip_addresses"])
	assert.Equal(t, []string{"11:22:33:44:55:66"}, fields["mac_addresses"])
}

func TestExtractHostFields_Hypervisor(t *testing.T) {
	body := json.RawMessage(`{
		"subscription_facet_attributes": {
			"virtual_guests": [{"id": 1}, {"id": 2}]
		}
	}`)

	fields := extractHostFields(body)
	assert.Equal(t, 2, fields["num_virtual_guests"])
	assert.Equal(t, "hypervisor", fields["virtual"])
}

func TestExtractSubscriptions(t *testing.T) {
	body := json.RawMessage(`{"results": [
		{"name": "RHEL Server", "quantity_consumed": 2, "account_number": 1234,
		 "contract_number": 5678, "start_date": "2017-01-01", "end_date": "2022-01-01",
		 "type": "ENTITLEMENT_DERIVED"},
		{"name": "Satellite", "amount": 1, "start_date": "2018-01-01"},
		{"name": "missing start date"},
		{"start_date": "2019-01-01"}
	]}`)

	subs := extractSubscriptions(body)
	require.Len(t, subs, 2)

	assert.Equal(t, "RHEL Server", subs[0].Name)
	assert.Equal(t, float64(2), subs[0].Amount)
	assert.True(t, subs[0].DerivedEntitlement)

	assert.Equal(t, "Satellite", subs[1].Name)
	assert.Equal(t, float64(1), subs[1].Amount)
	assert.False(t, subs[1].DerivedEntitlement)
}

func TestIsNotRegistered(t *testing.T) {
	t.Run("400 mentioning registration is downgraded", func(t *testing.T) {
		err := &APIError{StatusCode: 400,
			Body: `{"displayMessage": "Host has not been registered with subscription-manager"}`}
		assert.True(t, isNotRegistered(err))
	})

	t.Run("404 with non-json body is downgraded", func(t *testing.T) {
		err := &APIError{StatusCode: 404, Body: "<html>not found</html>"}
		assert.True(t, isNotRegistered(err))
	})

	t.Run("404 with json body is not downgraded", func(t *testing.T) {
		err := &APIError{StatusCode: 404, Body: `{"error": "gone"}`}
		assert.False(t, isNotRegistered(err))
	})

	t.Run("other 400s are not downgraded", func(t *testing.T) {
		err := &APIError{StatusCode: 400, Body: `{"error": "bad request"}`}
		assert.False(t, isNotRegistered(err))
	})
}
