package fingerprint

import (
	"github.com/hostscout/api/pkg/domain/report"
)

// fingerprintOpenShift builds one fingerprint from an openshift node
// fact map. OpenShift records are never merged with other source
// types.
func fingerprintOpenShift(src report.SourceFacts, facts map[string]any) *report.Fingerprint {
	m := newFactMapper(src, facts)

	m.set(report.FieldName, "node.name")
	m.set("architecture", "node.architecture")
	m.set("os_release", "node.os_image")
	m.set("os_name", "node.operating_system")
	m.set(report.FieldCPUCount, "node.cpu_capacity")
	m.set("system_role", "node.role")
	m.set("kubelet_version", "node.kubelet_version")
	m.set("container_runtime", "node.container_runtime")
	m.set("cluster_uuid", "cluster.uuid")
	m.set("cluster_version", "cluster.version")
	m.setList(report.FieldIPAddresses, false, "node.addresses")

	m.setValue(report.FieldInfrastructureType, report.InfraUnknown, "openshift_source")
	return m.finish()
}

// fingerprintAnsible builds one fingerprint from an ansible controller
// host fact map.
func fingerprintAnsible(src report.SourceFacts, facts map[string]any) *report.Fingerprint {
	m := newFactMapper(src, facts)

	m.set(report.FieldName, "host.name")
	m.set("ansible_host_id", "host.id")
	m.set("controller_version", "controller.version")
	m.setDate("system_creation_date", []string{"2006-01-02T15:04:05.000000Z", "2006-01-02T15:04:05Z"}, "host.created")
	m.setDate("system_last_checkin_date", []string{"2006-01-02T15:04:05.000000Z", "2006-01-02T15:04:05Z"}, "host.last_job_finished", "host.modified")

	m.setValue(report.FieldInfrastructureType, report.InfraUnknown, "ansible_source")
	return m.finish()
}

// fingerprintRHACS builds one fingerprint per secured cluster.
func fingerprintRHACS(src report.SourceFacts, facts map[string]any) *report.Fingerprint {
	m := newFactMapper(src, facts)

	m.set(report.FieldName, "cluster.name")
	m.set("cluster_uuid", "cluster.id")
	m.set("cluster_type", "cluster.type")
	m.set("orchestrator_version", "cluster.orchestrator_version")
	m.set("sensor_version", "cluster.sensor_version")

	m.setValue(report.FieldInfrastructureType, report.InfraUnknown, "rhacs_source")
	return m.finish()
}
