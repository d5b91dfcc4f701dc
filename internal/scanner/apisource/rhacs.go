package apisource

import (
	"context"
	"net/http"
	"time"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
)

// rhacsCollector reads secured-cluster inventory from a Red Hat
// Advanced Cluster Security central.
type rhacsCollector struct {
	client  *http.Client
	base    string
	headers map[string]string
}

// NewRHACSCollector returns the collector factory for rhacs sources.
func NewRHACSCollector(timeout time.Duration) CollectorFactory {
	return func(tc scanner.TaskContext) (Collector, error) {
		client, err := newHTTPClient(tc, timeout)
		if err != nil {
			return nil, err
		}
		return &rhacsCollector{
			client:  client,
			base:    baseURL(tc),
			headers: map[string]string{"Authorization": "Bearer " + tc.Credentials[0].AuthToken},
		}, nil
	}
}

// Probe checks an authenticated metadata endpoint.
func (c *rhacsCollector) Probe(ctx context.Context) error {
	return getJSON(ctx, c.client, c.base+"/v1/auth/status", c.headers, nil)
}

type rhacsCluster struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status struct {
		OrchestratorMetadata struct {
			Version string `json:"version"`
		} `json:"orchestratorMetadata"`
		SensorVersion string `json:"sensorVersion"`
	} `json:"status"`
}

// Systems lists secured clusters, one record each.
func (c *rhacsCollector) Systems(ctx context.Context) ([]System, error) {
	var list struct {
		Clusters []rhacsCluster `json:"clusters"`
	}
	if err := getJSON(ctx, c.client, c.base+"/v1/clusters", c.headers, &list); err != nil {
		return nil, err
	}

	systems := make([]System, 0, len(list.Clusters))
	for _, cl := range list.Clusters {
		facts := []scan.RawFact{
			jsonFact("cluster.name", cl.Name),
			jsonFact("cluster.id", cl.ID),
			jsonFact("cluster.type", cl.Type),
			jsonFact("cluster.orchestrator_version", cl.Status.OrchestratorMetadata.Version),
			jsonFact("cluster.sensor_version", cl.Status.SensorVersion),
		}
		systems = append(systems, System{Name: cl.Name, Facts: facts})
	}
	return systems, nil
}
