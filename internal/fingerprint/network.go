package fingerprint

import (
	"time"

	"github.com/hostscout/api/pkg/domain/report"
)

// fingerprintNetwork builds one fingerprint from a network source fact
// map.
func fingerprintNetwork(src report.SourceFacts, facts map[string]any) *report.Fingerprint {
	m := newFactMapper(src, facts)

	m.set(report.FieldName, "uname_hostname")
	m.set("architecture", "uname_processor")
	m.set(report.FieldBiosUUID, "dmi_system_uuid")
	m.set(report.FieldSubscriptionManagerID, "subman_virt_uuid", "subscription_manager_id")

	m.set("os_name", "etc_release_name")
	m.set("os_version", "etc_release_version")
	m.set("os_release", "etc_release_release")

	m.setList(report.FieldIPAddresses, false, "ifconfig_ip_addresses", "ip_address_show_ipv4")
	m.setList(report.FieldMACAddresses, true, "ifconfig_mac_addresses", "ip_address_show_mac")

	m.set(report.FieldCPUCount, "cpu_count")
	m.set("cpu_socket_count", "cpu_socket_count")
	m.set("cpu_core_count", "cpu_core_count")
	m.set("cpu_core_per_socket", "cpu_core_per_socket")
	m.set("cpu_hyperthreading", "cpu_hyperthreading")

	m.set("is_redhat", "redhat_packages_gpg_is_redhat")
	m.set("redhat_package_count", "redhat_packages_gpg_num_rh_packages")
	m.set("redhat_certs", "redhat_packages_certs")
	m.set("virtualized_type", "virt_type")
	m.set("system_memory_bytes", "system_memory_bytes")

	if ts, ok := facts["connection_timestamp"].(string); ok && ts != "" {
		if t, err := time.Parse("20060102150405", ts); err == nil {
			m.setValue("system_last_checkin_date", t.Format("2006-01-02"), "connection_timestamp")
		}
	}

	if purpose, ok := facts["system_purpose_json"].(map[string]any); ok {
		m.setValue("system_purpose", purpose, "system_purpose_json")
		setPurposeField := func(field, key string) {
			if v := coerce(purpose[key]); v != nil {
				m.setValue(field, v, "system_purpose_json")
			}
		}
		setPurposeField("system_role", "role")
		setPurposeField("system_addons", "addons")
		setPurposeField("system_usage_type", "usage")
		setPurposeField("system_service_level_agreement", "sla")
	}

	m.setDate("date_anaconda_log", []string{"2006-01-02"}, "date_anaconda_log")
	m.setDate("date_yum_history", []string{"2006-01-02"}, "date_yum_history")
	m.setDate("date_filesystem_create", []string{"2006-01-02"}, "date_filesystem_create")
	m.setDate("date_machine_id", []string{"2006-01-02"}, "date_machine_id")

	deriveInfrastructureType(m, facts)

	m.fp.Entitlements = networkEntitlements(facts)
	m.fp.Products = factProducts(facts)
	return m.finish()
}

// deriveInfrastructureType applies the network derivation rules in
// order; first match wins.
func deriveInfrastructureType(m *factMapper, facts map[string]any) {
	virtWhat, _ := facts["virt_what_type"].(string)
	virtType := coerce(facts["virt_type"])
	isGuest, _ := coerce(facts["subman_virt_is_guest"]).(bool)

	switch {
	case virtWhat == "bare metal":
		m.setValue(report.FieldInfrastructureType, report.InfraBareMetal, "virt_what_type")
	case virtType != nil:
		m.setValue(report.FieldInfrastructureType, report.InfraVirtualized, "virt_type")
	case isGuest:
		m.setValue(report.FieldInfrastructureType, report.InfraVirtualized, "subman_virt_is_guest")
	case virtWhat != "":
		m.setValue(report.FieldInfrastructureType, report.InfraUnknown, "virt_what_type")
	default:
		m.setValue(report.FieldInfrastructureType, report.InfraUnknown, "virt_what_type/virt_type")
	}
}

// networkEntitlements extracts subscription attachments from
// subman_consumed.
func networkEntitlements(facts map[string]any) []report.Entitlement {
	list, ok := facts["subman_consumed"].([]any)
	if !ok {
		return nil
	}
	var out []report.Entitlement
	for _, e := range list {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		id, _ := entry["entitlement_id"].(string)
		out = append(out, report.Entitlement{Name: name, EntitlementID: id})
	}
	return out
}

// factProducts passes product detector outputs through opaquely.
func factProducts(facts map[string]any) []report.Product {
	list, ok := facts["products"].([]any)
	if !ok {
		return nil
	}
	var out []report.Product
	for _, e := range list {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		presence, _ := entry["presence"].(string)
		p := report.Product{Name: name, Presence: presence}
		if versions := toStrings(entry["version"]); len(versions) > 0 {
			p.Version = versions
		}
		if meta, ok := entry["metadata"].(map[string]any); ok {
			p.Metadata = meta
		}
		out = append(out, p)
	}
	return out
}
