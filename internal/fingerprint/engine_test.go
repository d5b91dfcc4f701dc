package fingerprint

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/pkg/domain/report"
	"github.com/hostscout/api/pkg/domain/source"
	"github.com/hostscout/api/pkg/logger"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(logger.New(logger.Config{Level: "error", Format: "text"}))
}

func sourceFacts(name string, typ source.Type, facts ...map[string]any) report.SourceFacts {
	return report.SourceFacts{
		ServerID:   "server-1",
		SourceName: name,
		SourceType: typ,
		Facts:      facts,
	}
}

func detailsWith(t *testing.T, sources ...report.SourceFacts) *report.DetailsReport {
	t.Helper()
	details, err := report.NewDetailsReport(nil, sources)
	require.NoError(t, err)
	return details
}

// sortedFields projects fingerprints onto their field maps, ordered by
// name, so two runs can be compared without the per-run global IDs.
func sortedFields(fps []*report.Fingerprint) []map[string]any {
	out := make([]map[string]any, len(fps))
	for i, fp := range fps {
		out[i] = fp.Fields
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i][report.FieldName]) < fmt.Sprint(out[j][report.FieldName])
	})
	return out
}

func TestEngineProcess(t *testing.T) {
	t.Run("single network system", func(t *testing.T) {
		details := detailsWith(t, sourceFacts("net1", source.TypeNetwork, map[string]any{
			"uname_hostname":                "host1.example.com",
			"dmi_system_uuid":               "abc-123",
			"etc_release_name":              "Red Hat Enterprise Linux",
			"etc_release_version":           "9.4",
			"cpu_count":                     "4",
			"virt_what_type":                "bare metal",
			"redhat_packages_gpg_is_redhat": "true",
		}))

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		require.Len(t, result.Fingerprints, 1)
		assert.Equal(t, 1, result.TotalCount)
		assert.Equal(t, 1, result.ValidCount)
		assert.Equal(t, 0, result.InvalidCount)

		fp := result.Fingerprints[0]
		assert.Equal(t, "host1.example.com", fp.GetString(report.FieldName))
		assert.Equal(t, "abc-123", fp.GetString(report.FieldBiosUUID))
		assert.Equal(t, 4, fp.Get(report.FieldCPUCount))
		assert.Equal(t, report.InfraBareMetal, fp.Get(report.FieldInfrastructureType))
		assert.Equal(t, true, fp.Get("is_redhat"))
		require.Len(t, fp.Sources, 1)
		assert.Equal(t, "net1", fp.Sources[0].SourceName)
	})

	t.Run("network and vcenter merge on bios uuid", func(t *testing.T) {
		details := detailsWith(t,
			sourceFacts("net1", source.TypeNetwork, map[string]any{
				"uname_hostname":  "vm1.example.com",
				"dmi_system_uuid": "422c64ae-1",
				"cpu_count":       "4",
			}),
			sourceFacts("vc1", source.TypeVCenter, map[string]any{
				"vm.name":      "vm1",
				"vm.uuid":      "422c64ae-1",
				"vm.cpu_count": float64(8),
			}),
		)

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		require.Len(t, result.Fingerprints, 1)

		fp := result.Fingerprints[0]
		// Network wins regular fields, vcenter wins its reverse keys.
		assert.Equal(t, "vm1.example.com", fp.GetString(report.FieldName))
		assert.Equal(t, 8, fp.Get(report.FieldCPUCount))
		assert.Equal(t, report.InfraVirtualized, fp.Get(report.FieldInfrastructureType))
		assert.Len(t, fp.Sources, 2)
	})

	t.Run("network and satellite merge on subscription manager id", func(t *testing.T) {
		details := detailsWith(t,
			sourceFacts("net1", source.TypeNetwork, map[string]any{
				"uname_hostname":          "host2",
				"subscription_manager_id": "sub-9",
				"cpu_count":               "2",
			}),
			sourceFacts("sat1", source.TypeSatellite, map[string]any{
				"hostname":          "host2.sat.example.com",
				"uuid":              "sub-9",
				"registration_time": "2021-03-01 12:00:00",
				"organization":      "Engineering",
			}),
		)

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		require.Len(t, result.Fingerprints, 1)

		fp := result.Fingerprints[0]
		// Network keeps priority on shared fields.
		assert.Equal(t, "host2", fp.GetString(report.FieldName))
		assert.Equal(t, 2, fp.Get(report.FieldCPUCount))
		// Satellite-only fields come through.
		assert.Equal(t, "Engineering", fp.GetString("organization"))
		assert.Len(t, fp.Sources, 2)
	})

	t.Run("unmatched records pass through unmerged", func(t *testing.T) {
		details := detailsWith(t,
			sourceFacts("net1", source.TypeNetwork, map[string]any{
				"uname_hostname":  "only-net",
				"dmi_system_uuid": "aaa",
			}),
			sourceFacts("vc1", source.TypeVCenter, map[string]any{
				"vm.name": "only-vc",
				"vm.uuid": "bbb",
			}),
		)

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		assert.Len(t, result.Fingerprints, 2)
	})

	t.Run("in-source dedup collapses repeated identities", func(t *testing.T) {
		details := detailsWith(t, sourceFacts("vc1", source.TypeVCenter,
			map[string]any{"vm.name": "dup", "vm.uuid": "same-uuid", "vm.state": "poweredOn"},
			map[string]any{"vm.name": "dup", "vm.uuid": "same-uuid", "vm.state": "poweredOff"},
			map[string]any{"vm.name": "other", "vm.uuid": "other-uuid"},
		))

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		assert.Len(t, result.Fingerprints, 2)
	})

	t.Run("records without identity are dropped and counted", func(t *testing.T) {
		details := detailsWith(t, sourceFacts("net1", source.TypeNetwork,
			map[string]any{"cpu_count": "4"},
			map[string]any{"uname_hostname": "valid-host"},
		))

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result.TotalCount)
		assert.Equal(t, 1, result.ValidCount)
		assert.Equal(t, 1, result.InvalidCount)
		require.Len(t, result.Fingerprints, 1)
		assert.Equal(t, "valid-host", result.Fingerprints[0].GetString(report.FieldName))
	})

	t.Run("mac address list match merges network and vcenter", func(t *testing.T) {
		details := detailsWith(t,
			sourceFacts("net1", source.TypeNetwork, map[string]any{
				"uname_hostname":         "mac-host",
				"ifconfig_mac_addresses": []any{"AA:BB:CC:00:11:22"},
			}),
			sourceFacts("vc1", source.TypeVCenter, map[string]any{
				"vm.name":          "mac-vm",
				"vm.uuid":          "mac-vm-uuid",
				"vm.mac_addresses": []any{"aa:bb:cc:00:11:22"},
			}),
		)

		result, err := testEngine(t).Process(details, nil)
		require.NoError(t, err)
		require.Len(t, result.Fingerprints, 1)
		assert.Equal(t, "mac-host", result.Fingerprints[0].GetString(report.FieldName))
		assert.Equal(t, "mac-vm-uuid", result.Fingerprints[0].GetString(report.FieldVMUUID))
	})

	t.Run("repeated runs over the same report agree", func(t *testing.T) {
		cases := []struct {
			name    string
			sources []report.SourceFacts
		}{
			{
				name: "duplicate identities within a source",
				sources: []report.SourceFacts{sourceFacts("vc1", source.TypeVCenter,
					map[string]any{"vm.name": "dup", "vm.uuid": "u1", "vm.state": "poweredOn"},
					map[string]any{"vm.name": "dup", "vm.uuid": "u1", "vm.state": "poweredOff"},
					map[string]any{"vm.name": "solo", "vm.uuid": "u2"},
				)},
			},
			{
				name: "cross source merge on bios uuid",
				sources: []report.SourceFacts{
					sourceFacts("net1", source.TypeNetwork, map[string]any{
						"uname_hostname":  "h1",
						"dmi_system_uuid": "bios-1",
						"cpu_count":       "4",
					}),
					sourceFacts("vc1", source.TypeVCenter, map[string]any{
						"vm.name":      "h1-vm",
						"vm.uuid":      "bios-1",
						"vm.cpu_count": float64(8),
					}),
				},
			},
			{
				name: "mixed matched and unmatched records",
				sources: []report.SourceFacts{
					sourceFacts("net1", source.TypeNetwork,
						map[string]any{"uname_hostname": "a", "subscription_manager_id": "s1"},
						map[string]any{"uname_hostname": "b"},
					),
					sourceFacts("sat1", source.TypeSatellite, map[string]any{
						"hostname": "a.sat", "uuid": "s1", "organization": "Eng",
					}),
				},
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				details := detailsWith(t, tc.sources...)
				first, err := testEngine(t).Process(details, nil)
				require.NoError(t, err)
				second, err := testEngine(t).Process(details, nil)
				require.NoError(t, err)

				assert.Equal(t, first.ValidCount, second.ValidCount)
				assert.Equal(t, first.InvalidCount, second.InvalidCount)
				assert.Equal(t, sortedFields(first.Fingerprints), sortedFields(second.Fingerprints))
			})
		}
	})

	t.Run("checkpoint error suspends processing", func(t *testing.T) {
		facts := make([]map[string]any, 150)
		for i := range facts {
			facts[i] = map[string]any{"uname_hostname": fmt.Sprintf("host-%d", i)}
		}
		details := detailsWith(t, sourceFacts("net1", source.TypeNetwork, facts...))

		wantErr := errors.New("suspend")
		var calls []int
		_, err := testEngine(t).Process(details, func(processed int) error {
			calls = append(calls, processed)
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, []int{100}, calls)
	})
}

func TestMergeFingerprints(t *testing.T) {
	meta := func(sudo bool) report.Metadata {
		return report.Metadata{SourceName: "s", SourceType: "network", HasSudo: sudo}
	}

	t.Run("priority side wins shared fields", func(t *testing.T) {
		p := report.NewFingerprint()
		p.Set("os_name", "RHEL", meta(false))
		m := report.NewFingerprint()
		m.Set("os_name", "CentOS", meta(false))

		out := mergeFingerprints(p, m, nil)
		assert.Equal(t, "RHEL", out.GetString("os_name"))
	})

	t.Run("merge side fills absent and null fields", func(t *testing.T) {
		p := report.NewFingerprint()
		p.SetNull("os_version", meta(false))
		m := report.NewFingerprint()
		m.Set("os_version", "9.4", meta(false))
		m.Set("organization", "Eng", meta(false))

		out := mergeFingerprints(p, m, nil)
		assert.Equal(t, "9.4", out.GetString("os_version"))
		assert.Equal(t, "Eng", out.GetString("organization"))
	})

	t.Run("sudo on the merge side breaks the tie", func(t *testing.T) {
		p := report.NewFingerprint()
		p.Set("cpu_count", 2, meta(false))
		m := report.NewFingerprint()
		m.Set("cpu_count", 4, meta(true))

		out := mergeFingerprints(p, m, nil)
		assert.Equal(t, 4, out.Get("cpu_count"))
	})

	t.Run("reverse keys invert priority", func(t *testing.T) {
		p := report.NewFingerprint()
		p.Set(report.FieldCPUCount, 2, meta(false))
		m := report.NewFingerprint()
		m.Set(report.FieldCPUCount, 8, meta(false))

		out := mergeFingerprints(p, m, vcenterReverseKeys)
		assert.Equal(t, 8, out.Get(report.FieldCPUCount))
	})

	t.Run("associative on regular keys", func(t *testing.T) {
		build := func(fields map[string]any) *report.Fingerprint {
			fp := report.NewFingerprint()
			for k, v := range fields {
				fp.Set(k, v, meta(false))
			}
			return fp
		}

		cases := []struct {
			name    string
			a, b, c map[string]any
		}{
			{
				name: "disjoint fields",
				a:    map[string]any{"os_name": "RHEL"},
				b:    map[string]any{"os_version": "9.4"},
				c:    map[string]any{"organization": "Eng"},
			},
			{
				name: "shared field across all three",
				a:    map[string]any{"os_name": "RHEL", "cpu_count": 2},
				b:    map[string]any{"os_name": "CentOS", "cpu_count": 4},
				c:    map[string]any{"os_name": "Fedora", "organization": "Eng"},
			},
			{
				name: "later sides fill gaps",
				a:    map[string]any{"os_name": "RHEL"},
				b:    map[string]any{"os_name": "CentOS", "os_version": "8.9"},
				c:    map[string]any{"os_version": "9.4", "cpu_count": 8},
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				left := mergeFingerprints(mergeFingerprints(build(tc.a), build(tc.b), nil), build(tc.c), nil)
				right := mergeFingerprints(build(tc.a), mergeFingerprints(build(tc.b), build(tc.c), nil), nil)
				assert.Equal(t, left.Fields, right.Fields)
			})
		}
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		p := report.NewFingerprint()
		p.Set("os_name", "RHEL", meta(false))
		m := report.NewFingerprint()
		m.Set("organization", "Eng", meta(false))

		_ = mergeFingerprints(p, m, nil)
		assert.False(t, p.Has("organization"))
		assert.False(t, m.Has("os_name"))
	})

	t.Run("entitlements union by key", func(t *testing.T) {
		p := report.NewFingerprint()
		p.Entitlements = []report.Entitlement{{Name: "RHEL Server", EntitlementID: "1"}}
		m := report.NewFingerprint()
		m.Entitlements = []report.Entitlement{
			{Name: "RHEL Server", EntitlementID: "1"},
			{Name: "Satellite", EntitlementID: "2"},
		}

		out := mergeFingerprints(p, m, nil)
		assert.Len(t, out.Entitlements, 2)
	})
}

func TestDedupByKey(t *testing.T) {
	mk := func(key, val string) *report.Fingerprint {
		fp := report.NewFingerprint()
		fp.Set(key, val, report.Metadata{})
		return fp
	}

	t.Run("collapses equal values keeping first as priority", func(t *testing.T) {
		a := mk(report.FieldVMUUID, "u1")
		a.Set("vm_state", "poweredOn", report.Metadata{})
		b := mk(report.FieldVMUUID, "u1")
		b.Set("vm_state", "poweredOff", report.Metadata{})
		b.Set("vm_cluster", "c1", report.Metadata{})

		out := dedupByKey([]*report.Fingerprint{a, b}, report.FieldVMUUID)
		require.Len(t, out, 1)
		assert.Equal(t, "poweredOn", out[0].GetString("vm_state"))
		assert.Equal(t, "c1", out[0].GetString("vm_cluster"))
	})

	t.Run("records without the key pass through", func(t *testing.T) {
		a := mk(report.FieldVMUUID, "u1")
		b := report.NewFingerprint()
		c := report.NewFingerprint()
		out := dedupByKey([]*report.Fingerprint{a, b, c}, report.FieldVMUUID)
		assert.Len(t, out, 3)
	})

	t.Run("idempotent", func(t *testing.T) {
		fps := []*report.Fingerprint{mk(report.FieldVMUUID, "u1"), mk(report.FieldVMUUID, "u1"), mk(report.FieldVMUUID, "u2")}
		once := dedupByKey(fps, report.FieldVMUUID)
		twice := dedupByKey(once, report.FieldVMUUID)
		assert.Equal(t, len(once), len(twice))
	})
}

func TestNormalizeCreationDate(t *testing.T) {
	t.Run("most trusted present source wins", func(t *testing.T) {
		fp := report.NewFingerprint()
		fp.Set(report.FieldName, "h", report.Metadata{})
		normalizeCreationDate(fp, map[string]any{
			"date_yum_history":  "2019-05-01",
			"registration_time": "2021-03-01 12:00:00",
		})
		assert.Equal(t, "2021-03-01", fp.GetString(report.FieldSystemCreationDate))
		assert.Equal(t, "registration_time", fp.Metadata[report.FieldSystemCreationDate].RawFactKey)
	})

	t.Run("unparseable most trusted value yields null", func(t *testing.T) {
		fp := report.NewFingerprint()
		normalizeCreationDate(fp, map[string]any{
			"date_yum_history": "2019-05-01",
			"date_machine_id":  "not a date",
		})
		require.True(t, fp.Has(report.FieldSystemCreationDate))
		assert.Nil(t, fp.Get(report.FieldSystemCreationDate))
		assert.Equal(t, "date_yum_history/date_machine_id",
			fp.Metadata[report.FieldSystemCreationDate].RawFactKey)
	})

	t.Run("no candidate facts leaves the field absent", func(t *testing.T) {
		fp := report.NewFingerprint()
		normalizeCreationDate(fp, map[string]any{"cpu_count": 4})
		assert.False(t, fp.Has(report.FieldSystemCreationDate))
	})
}

func TestMaskFingerprint(t *testing.T) {
	fp := report.NewFingerprint()
	fp.Set(report.FieldName, "host1.example.com", report.Metadata{})
	fp.Set(report.FieldIPAddresses, []string{"10.0.0.1", "10.0.0.2"}, report.Metadata{})
	fp.Set("os_name", "RHEL", report.Metadata{})

	masked := maskFingerprint(fp)

	t.Run("identifying fields are replaced", func(t *testing.T) {
		assert.NotEqual(t, "host1.example.com", masked.GetString(report.FieldName))
		assert.Len(t, masked.GetString(report.FieldName), 24)
		for _, ip := range masked.GetStrings(report.FieldIPAddresses) {
			assert.NotContains(t, ip, ".")
		}
	})

	t.Run("masking is stable", func(t *testing.T) {
		again := maskFingerprint(fp)
		assert.Equal(t, masked.GetString(report.FieldName), again.GetString(report.FieldName))
	})

	t.Run("other fields and the original are untouched", func(t *testing.T) {
		assert.Equal(t, "RHEL", masked.GetString("os_name"))
		assert.Equal(t, "host1.example.com", fp.GetString(report.FieldName))
	})
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"", nil},
		{"  ", nil},
		{"true", true},
		{"False", false},
		{"42", 42},
		{"3.5", 3.5},
		{"hello", "hello"},
		{float64(8), 8},
		{8.25, 8.25},
		{nil, nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, coerce(tc.in), "coerce(%#v)", tc.in)
	}
}
