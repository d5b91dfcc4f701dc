package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/pkg/domain/credential"
	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/domain/source"
)

func newSourceService(t *testing.T) (*SourceService, *fakeSourceRepo, *fakeCredentialRepo) {
	t.Helper()
	srcRepo := newFakeSourceRepo()
	credRepo := newFakeCredentialRepo()
	return NewSourceService(srcRepo, credRepo, testLogger()), srcRepo, credRepo
}

func storeCredential(t *testing.T, repo *fakeCredentialRepo, name string, credType credential.Type) shared.ID {
	t.Helper()
	var cred *credential.Credential
	var err error
	switch credType {
	case credential.TypeNetwork:
		cred, err = credential.NewNetwork(name, "root", credential.NetworkAuth{Password: "pw"})
	default:
		cred, err = credential.NewUserPass(name, credType, "admin", "pw")
	}
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), cred))
	return cred.ID
}

func TestSourceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("network source with host expressions", func(t *testing.T) {
		svc, _, credRepo := newSourceService(t)
		credID := storeCredential(t, credRepo, "ssh", credential.TypeNetwork)

		src, err := svc.Create(ctx, CreateSourceInput{
			Name:          "datacenter",
			SourceType:    "network",
			Hosts:         []string{"10.0.0.0/24", "host[1:5].example.com"},
			ExcludeHosts:  []string{"10.0.0.1"},
			CredentialIDs: []string{credID.String()},
		})
		require.NoError(t, err)
		assert.Equal(t, source.TypeNetwork, src.Type)
		assert.Equal(t, 22, src.Port)
		assert.Equal(t, []string{"10.0.0.1"}, src.ExcludeHosts)
	})

	t.Run("invalid host expression is rejected", func(t *testing.T) {
		svc, _, credRepo := newSourceService(t)
		credID := storeCredential(t, credRepo, "ssh", credential.TypeNetwork)

		_, err := svc.Create(ctx, CreateSourceInput{
			Name:          "bad",
			SourceType:    "network",
			Hosts:         []string{"10.0.0.[5:1]"},
			CredentialIDs: []string{credID.String()},
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("vcenter source takes its host verbatim", func(t *testing.T) {
		svc, _, credRepo := newSourceService(t)
		credID := storeCredential(t, credRepo, "vc", credential.TypeVCenter)

		src, err := svc.Create(ctx, CreateSourceInput{
			Name:          "vcenter-east",
			SourceType:    "vcenter",
			Hosts:         []string{"vcenter.example.com"},
			CredentialIDs: []string{credID.String()},
		})
		require.NoError(t, err)
		assert.Equal(t, source.TypeVCenter, src.Type)
	})

	t.Run("credential type must match source type", func(t *testing.T) {
		svc, _, credRepo := newSourceService(t)
		credID := storeCredential(t, credRepo, "vc", credential.TypeVCenter)

		_, err := svc.Create(ctx, CreateSourceInput{
			Name:          "mismatched",
			SourceType:    "network",
			Hosts:         []string{"10.0.0.1"},
			CredentialIDs: []string{credID.String()},
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "expected network")
	})

	t.Run("unknown credential", func(t *testing.T) {
		svc, _, _ := newSourceService(t)

		_, err := svc.Create(ctx, CreateSourceInput{
			Name:          "orphan",
			SourceType:    "network",
			Hosts:         []string{"10.0.0.1"},
			CredentialIDs: []string{shared.NewID().String()},
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "does not exist")
	})
}

func TestSourceService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _, credRepo := newSourceService(t)
	credID := storeCredential(t, credRepo, "ssh", credential.TypeNetwork)

	src, err := svc.Create(ctx, CreateSourceInput{
		Name:          "lab",
		SourceType:    "network",
		Hosts:         []string{"10.0.0.0/28"},
		CredentialIDs: []string{credID.String()},
	})
	require.NoError(t, err)

	t.Run("hosts can be replaced", func(t *testing.T) {
		updated, err := svc.Update(ctx, src.ID, UpdateSourceInput{
			Hosts: []string{"192.168.1.[1:10]"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.[1:10]"}, updated.Hosts)
		assert.Equal(t, "lab", updated.Name)
	})

	t.Run("nil credentials leave the stored set untouched", func(t *testing.T) {
		updated, err := svc.Update(ctx, src.ID, UpdateSourceInput{Name: "lab-2"})
		require.NoError(t, err)
		require.Len(t, updated.CredentialIDs, 1)
		assert.True(t, updated.CredentialIDs[0].Equals(credID))
	})
}
