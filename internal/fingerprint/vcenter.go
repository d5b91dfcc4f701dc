package fingerprint

import (
	"strings"
	"time"

	"github.com/hostscout/api/pkg/domain/report"
)

const gibibyte = 1073741824

// fingerprintVCenter builds one fingerprint from a vcenter source fact
// map.
func fingerprintVCenter(src report.SourceFacts, facts map[string]any) *report.Fingerprint {
	m := newFactMapper(src, facts)

	// DNS name wins over the inventory display name.
	m.set(report.FieldName, "vm.dns_name", "vm.name")
	m.set(report.FieldVMUUID, "vm.uuid")
	m.set("os_release", "vm.os")
	m.set(report.FieldCPUCount, "vm.cpu_count")
	m.set("vm_name", "vm.name")
	m.set("vm_state", "vm.state")
	m.set("vm_dns_name", "vm.dns_name")
	m.set("vm_uuid", "vm.uuid")
	m.set("virtual_host_name", "vm.host.name")
	m.set("virtual_host_uuid", "vm.host.uuid")
	m.set("vm_cluster", "vm.cluster.name")
	m.set("vm_datacenter", "vm.datacenter.name")
	m.set("vm_memory_size", "vm.memory_size")
	m.setList(report.FieldIPAddresses, false, "vm.ip_addresses")
	m.setList(report.FieldMACAddresses, true, "vm.mac_addresses")

	if os, ok := facts["vm.os"].(string); ok {
		lower := strings.ToLower(os)
		isRedhat := strings.Contains(lower, "rhel") ||
			strings.Contains(lower, "red hat enterprise linux")
		m.setValue("is_redhat", isRedhat, "vm.os")
	}

	// Memory arrives in GiB.
	if size, ok := coerce(facts["vm.memory_size"]).(int); ok {
		m.setValue("system_memory_bytes", int64(size)*gibibyte, "vm.memory_size")
	} else if size, ok := coerce(facts["vm.memory_size"]).(float64); ok {
		m.setValue("system_memory_bytes", int64(size*gibibyte), "vm.memory_size")
	}

	if checkin, ok := facts["vm.last_check_in"].(string); ok && checkin != "" {
		if t, err := parseDate(checkin, []string{"2006-01-02 15:04:05"}); err == nil {
			m.setValue("system_last_checkin_date", t.Format("2006-01-02"), "vm.last_check_in")
		}
	}
	if created, ok := facts["vm.creation_timestamp"].(string); ok && created != "" {
		if t, err := parseDate(created, []string{time.RFC3339, "2006-01-02T15:04:05-0700"}); err == nil {
			m.setValue(report.FieldSystemCreationDate, t.Format("2006-01-02"), "vm.creation_timestamp")
		}
	}

	// Anything a vCenter reports is by definition a virtual machine.
	m.setValue(report.FieldInfrastructureType, report.InfraVirtualized, "vcenter_source")

	return m.finish()
}
