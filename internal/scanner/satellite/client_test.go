package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostscout/api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:  srv.URL,
		Username: "admin",
		Password: "secret",
	}, testLogger())
	require.NoError(t, err)
	return client, srv
}

func TestClient_ListAll(t *testing.T) {
	t.Run("walks pages until total is covered", func(t *testing.T) {
		var pagesServed []string
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			page := r.URL.Query().Get("page")
			pagesServed = append(pagesServed, page)
			assert.Equal(t, "100", r.URL.Query().Get("per_page"))

			results := `[{"id": 1}]`
			fmt.Fprintf(w, `{"results": %s, "per_page": 100, "total": 250}`, results)
		}))

		results, err := client.ListAll(context.Background(), "/api/v2/hosts")
		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.Equal(t, []string{"1", "2", "3"}, pagesServed)
	})

	t.Run("tolerates per_page as a quoted string", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results": [{"id": 1}], "per_page": "100", "total": 1}`)
		}))

		results, err := client.ListAll(context.Background(), "/api/v2/hosts")
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("5xx surfaces as APIError", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		_, err := client.ListAll(context.Background(), "/api/v2/hosts")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 500, apiErr.StatusCode)
	})

	t.Run("sends basic auth", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "admin", user)
			assert.Equal(t, "secret", pass)
			fmt.Fprint(w, `{"results": [], "per_page": 100, "total": 0}`)
		}))

		_, err := client.ListAll(context.Background(), "/api/v2/hosts")
		require.NoError(t, err)
	})
}

func TestProbeVersion(t *testing.T) {
	cases := []struct {
		version string
		katello bool
	}{
		{"6.1.8", true},
		{"6.2.0", false},
		{"6.10.3", false},
		{"5.9.1", true},
		{"7.0.0", false},
	}
	for _, tc := range cases {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/status", r.URL.Path)
			json.NewEncoder(w).Encode(status{Version: tc.version, APIVersion: 2})
		}))

		version, katello, err := client.ProbeVersion(context.Background())
		require.NoError(t, err, tc.version)
		assert.Equal(t, tc.version, version)
		assert.Equal(t, tc.katello, katello, tc.version)
	}
}

func TestV1Hosts_OrgFanOutDeduplicates(t *testing.T) {
	// Two orgs share host uuid-b; the unique host count must equal the
	// union of UUIDs.
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/katello/api/v2/organizations":
			fmt.Fprint(w, `{"results": [{"id": 1}, {"id": 2}], "per_page": 100, "total": 2}`)
		case "/katello/api/v2/organizations/1/systems":
			fmt.Fprint(w, `{"results": [
				{"id": 11, "uuid": "uuid-a", "name": "host-a"},
				{"id": 12, "uuid": "uuid-b", "name": "host-b"}
			], "per_page": 100, "total": 2}`)
		case "/katello/api/v2/organizations/2/systems":
			fmt.Fprint(w, `{"results": [
				{"id": 21, "uuid": "uuid-b", "name": "host-b"},
				{"id": 22, "uuid": "uuid-c", "name": "host-c"}
			], "per_page": 100, "total": 2}`)
		default:
			http.NotFound(w, r)
		}
	}))

	proto := &v1Protocol{client: client}
	hosts, err := proto.Hosts(context.Background())
	require.NoError(t, err)
	require.Len(t, hosts, 3)

	uuids := make(map[string]bool)
	for _, h := range hosts {
		uuids[h.UUID] = true
	}
	assert.Equal(t, map[string]bool{"uuid-a": true, "uuid-b": true, "uuid-c": true}, uuids)
}

func TestV2Hosts(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/hosts", r.URL.Path)
		fmt.Fprint(w, `{"results": [{"id": 5, "name": "sat-host"}], "per_page": 100, "total": 1}`)
	}))

	proto := &v2Protocol{client: client}
	hosts, err := proto.Hosts(context.Background())
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "sat-host_5", hosts[0].Key())
}
