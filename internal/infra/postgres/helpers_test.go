package postgres

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/pkg/domain/report"
)

func TestIsTransientLock(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock detected", &pq.Error{Code: "40P01"}, true},
		{"lock not available", &pq.Error{Code: "55P03"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientLock(tt.err))
		})
	}
}

func TestCompressJSONRoundTrip(t *testing.T) {
	fp := report.NewFingerprint()
	fp.Set(report.FieldName, "host1", report.Metadata{SourceName: "net1", SourceType: "network"})
	fp.Set(report.FieldCPUCount, 4, report.Metadata{SourceName: "net1"})

	data, err := compressJSON([]*report.Fingerprint{fp})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	// gzip magic bytes
	assert.Equal(t, byte(0x1f), data[0])
	assert.Equal(t, byte(0x8b), data[1])

	var out []*report.Fingerprint
	require.NoError(t, decompressJSON(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, fp.GlobalID, out[0].GlobalID)
	assert.Equal(t, "host1", out[0].GetString(report.FieldName))
}

func TestDecompressJSONEmpty(t *testing.T) {
	var out []*report.Fingerprint
	require.NoError(t, decompressJSON(nil, &out))
	assert.Nil(t, out)
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	ns := nullString("x")
	assert.True(t, ns.Valid)
	assert.Equal(t, "x", ns.String)
	assert.Equal(t, "", nullStringValue(nullString("")))
}
