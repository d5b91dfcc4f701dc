package fingerprint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hostscout/api/pkg/domain/report"
)

// virtWhoPattern matches the synthetic hypervisor hosts virt-who
// registers on a Satellite.
var virtWhoPattern = regexp.MustCompile(`^virt-who-.*-[1-9]$`)

// rhelNServer matches the bare "NServer" os_release values some
// Satellites report instead of a full OS name.
var rhelNServer = regexp.MustCompile(`^([4-8])Server$`)

// redhatOSNames are the normalized os_name spellings that count as
// Red Hat.
var redhatOSNames = map[string]bool{
	"rhel":                  true,
	"redhat":                true,
	"redhatenterpriselinux": true,
}

// fingerprintSatellite builds one fingerprint from a satellite source
// fact map.
func fingerprintSatellite(src report.SourceFacts, facts map[string]any) *report.Fingerprint {
	m := newFactMapper(src, facts)

	m.set(report.FieldName, "hostname")
	m.set(report.FieldSubscriptionManagerID, "uuid")
	m.set("os_version", "os_version")
	m.set("registration_time", "registration_time")
	m.set("virtual_host_uuid", "virtual_host_uuid")
	m.set("virtual_host_name", "virtual_host_name")
	m.set("virtualized_num_guests", "num_virtual_guests")
	m.set("katello_agent_installed", "katello_agent_installed")
	m.set("organization", "organization")
	m.set("location", "location")
	m.setList(report.FieldIPAddresses, false, "ip_addresses")
	m.setList(report.FieldMACAddresses, true, "mac_addresses")

	osName, _ := facts["os_name"].(string)
	osRelease, _ := facts["os_release"].(string)
	if osName == "" {
		// A bare "7Server" release means RHEL without saying so.
		if match := rhelNServer.FindStringSubmatch(osRelease); match != nil {
			osName = "Red Hat Enterprise Linux"
			osRelease = fmt.Sprintf("Red Hat Enterprise Linux %s Server", match[1])
		}
	}
	if osName != "" {
		m.setValue("os_name", osName, "os_name")
		normalized := strings.ReplaceAll(strings.ToLower(osName), " ", "")
		m.setValue("is_redhat", redhatOSNames[normalized], "os_name")
	}
	if osRelease != "" {
		m.setValue("os_release", osRelease, "os_release")
	}

	if checkin, ok := facts["last_checkin_time"].(string); ok && checkin != "" {
		layouts := []string{"2006-01-02 15:04:05 MST", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00"}
		if t, err := parseDate(checkin, layouts); err == nil {
			m.setValue("system_last_checkin_date", t.Format("2006-01-02"), "last_checkin_time")
		}
	}

	m.setValue(report.FieldInfrastructureType, satelliteInfraType(facts), "hostname/is_virtualized")

	m.fp.Entitlements = satelliteEntitlements(facts)
	return m.finish()
}

// satelliteInfraType classifies the host: virt-who synthetic hosts are
// hypervisors, then the is_virtualized flag decides, then unknown.
func satelliteInfraType(facts map[string]any) string {
	hostname, _ := facts["hostname"].(string)
	if virtWhoPattern.MatchString(hostname) {
		return report.InfraHypervisor
	}
	switch v := coerce(facts["is_virtualized"]).(type) {
	case bool:
		if v {
			return report.InfraVirtualized
		}
		return report.InfraBareMetal
	}
	return report.InfraUnknown
}

func satelliteEntitlements(facts map[string]any) []report.Entitlement {
	list, ok := facts["entitlements"].([]any)
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
		ent := report.Entitlement{Name: name, Amount: entry["amount"]}
		if id, ok := entry["entitlement_id"].(string); ok {
			ent.EntitlementID = id
		}
		if v, ok := entry["account_number"].(string); ok {
			ent.AccountNumber = v
		}
		if v, ok := entry["contract_number"].(string); ok {
			ent.ContractNumber = v
		}
		if v, ok := entry["start_date"].(string); ok {
			ent.StartDate = v
		}
		if v, ok := entry["end_date"].(string); ok {
			ent.EndDate = v
		}
		if v, ok := entry["derived_entitlement"].(bool); ok {
			ent.DerivedEntitlement = v
		}
		out = append(out, ent)
	}
	return out
}
