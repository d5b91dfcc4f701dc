package satellite

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// isNotRegistered reports a subscription-endpoint error that must be
// downgraded to a failed host instead of failing the task: a 400 whose
// body says the host was never registered with subscription-manager,
// or a 404 with a non-JSON body.
func isNotRegistered(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case 400:
		return strings.Contains(apiErr.Body, "not been registered")
	case 404:
		return !json.Valid([]byte(apiErr.Body))
	}
	return false
}

// extractHostFields flattens a host-fields response body into the fact
// keys the fingerprinter consumes.
func extractHostFields(body json.RawMessage) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return map[string]any{}
	}

	out := make(map[string]any)
	set := func(key string, v any) {
		if v == nil {
			return
		}
		if s, ok := v.(string); ok && s == "" {
			return
		}
		out[key] = v
	}

	subFacet, _ := raw["subscription_facet_attributes"].(map[string]any)
	contentFacet, _ := raw["content_facet_attributes"].(map[string]any)

	if subFacet != nil {
		set("uuid", subFacet["uuid"])
		set("registered_by", subFacet["registered_by"])
		set("registration_time", subFacet["registered_at"])
		set("last_checkin_time", subFacet["last_checkin"])
		if vh, ok := subFacet["virtual_host"].(map[string]any); ok {
			set("virtual_host_uuid", vh["uuid"])
			set("virtual_host_name", vh["name"])
		}
		if guests, ok := subFacet["virtual_guests"].([]any); ok {
			set("num_virtual_guests", len(guests))
			if len(guests) > 0 {
				set("virtual", "hypervisor")
			} else {
				set("virtual", "guest")
			}
		}
	}
	if contentFacet != nil {
		set("katello_agent_installed", contentFacet["katello_agent_installed"])
	}

	set("hostname", raw["name"])
	set("organization", raw["organization_name"])
	set("location", raw["location_name"])

	if osName, ok := raw["operatingsystem_name"].(string); ok && osName != "" {
		set("os_release", osName)
		name, version, found := strings.Cut(osName, " ")
		set("os_name", name)
		if found {
			set("os_version", version)
		}
	}

	if facts, ok := raw["facts"].(map[string]any); ok {
		if ips := interfaceValues(facts, "ipv4_address"); len(ips) > 0 {
			out["ip_addresses"] = ips
		}
		if macs := interfaceValues(facts, "macaddress"); len(macs) > 0 {
			for i, m := range macs {
				macs[i] = strings.ToLower(m)
			}
			out["mac_addresses"] = macs
		}
	}
	return out
}

// interfaceValues collects per-interface fact values. V1 uses dotted
// keys (net.interface.eth0.ipv4_address), V2 double-colon keys
// (net::interface::eth0::ipv4_address); loopback is skipped.
func interfaceValues(facts map[string]any, suffix string) []string {
	seen := make(map[string]bool)
	var values []string
	for key, v := range facts {
		norm := strings.ReplaceAll(key, "::", ".")
		if !strings.HasPrefix(norm, "net.interface.") || !strings.HasSuffix(norm, "."+suffix) {
			continue
		}
		if strings.Contains(norm, ".lo.") {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		values = append(values, s)
	}
	sort.Strings(values)
	return values
}

// Entitlement rows extracted from the subscriptions endpoint.
type subscription struct {
	Name               string `json:"name"`
	Amount             any    `json:"amount"`
	AccountNumber      any    `json:"account_number"`
	ContractNumber     any    `json:"contract_number"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	DerivedEntitlement bool   `json:"derived_entitlement"`
}

// extractSubscriptions pulls the entitlement list out of a
// subscriptions response. Entries lacking a name or start date are
// dropped.
func extractSubscriptions(body json.RawMessage) []subscription {
	var envelope struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	var subs []subscription
	for _, r := range envelope.Results {
		name, _ := r["name"].(string)
		start, _ := r["start_date"].(string)
		if name == "" || start == "" {
			continue
		}
		amount := r["quantity_consumed"]
		if amount == nil {
			amount = r["amount"]
		}
		subType, _ := r["type"].(string)
		end, _ := r["end_date"].(string)
		subs = append(subs, subscription{
			Name:               name,
			Amount:             amount,
			AccountNumber:      r["account_number"],
			ContractNumber:     r["contract_number"],
			StartDate:          start,
			EndDate:            end,
			DerivedEntitlement: subType == "ENTITLEMENT_DERIVED",
		})
	}
	return subs
}
