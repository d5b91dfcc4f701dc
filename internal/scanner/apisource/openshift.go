package apisource

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
)

// openshiftCollector reads cluster and node inventory from the
// Kubernetes API of an OpenShift cluster.
type openshiftCollector struct {
	client  *http.Client
	base    string
	headers map[string]string
}

// NewOpenShiftCollector returns the collector factory for openshift
// sources. Token credentials are preferred; username/password forms
// use basic auth.
func NewOpenShiftCollector(timeout time.Duration) CollectorFactory {
	return func(tc scanner.TaskContext) (Collector, error) {
		client, err := newHTTPClient(tc, timeout)
		if err != nil {
			return nil, err
		}
		cred := tc.Credentials[0]
		headers := map[string]string{}
		if cred.AuthToken != "" {
			headers["Authorization"] = "Bearer " + cred.AuthToken
		}
		return &openshiftCollector{client: client, base: baseURL(tc), headers: headers}, nil
	}
}

// Probe checks the version endpoint.
func (c *openshiftCollector) Probe(ctx context.Context) error {
	return getJSON(ctx, c.client, c.base+"/version", c.headers, nil)
}

type k8sNode struct {
	Metadata struct {
		Name   string            `json:"name"`
		UID    string            `json:"uid"`
		Labels map[string]string `json:"labels"`
	} `json:"metadata"`
	Status struct {
		Addresses []struct {
			Type    string `json:"type"`
			Address string `json:"address"`
		} `json:"addresses"`
		Capacity struct {
			CPU string `json:"cpu"`
		} `json:"capacity"`
		NodeInfo struct {
			Architecture            string `json:"architecture"`
			KubeletVersion          string `json:"kubeletVersion"`
			OSImage                 string `json:"osImage"`
			OperatingSystem         string `json:"operatingSystem"`
			ContainerRuntimeVersion string `json:"containerRuntimeVersion"`
		} `json:"nodeInfo"`
	} `json:"status"`
}

// Systems lists cluster nodes; the cluster id is stamped on each node
// record so fingerprints can be grouped by cluster.
func (c *openshiftCollector) Systems(ctx context.Context) ([]System, error) {
	var version struct {
		GitVersion string `json:"gitVersion"`
	}
	if err := getJSON(ctx, c.client, c.base+"/version", c.headers, &version); err != nil {
		return nil, err
	}

	var clusterID string
	var clusterVersion struct {
		Spec struct {
			ClusterID string `json:"clusterID"`
		} `json:"spec"`
	}
	// The cluster id lives in an OpenShift-specific resource; plain
	// Kubernetes clusters simply go without.
	if err := getJSON(ctx, c.client,
		c.base+"/apis/config.openshift.io/v1/clusterversions/version",
		c.headers, &clusterVersion); err == nil {
		clusterID = clusterVersion.Spec.ClusterID
	}

	var nodes struct {
		Items []k8sNode `json:"items"`
	}
	if err := getJSON(ctx, c.client, c.base+"/api/v1/nodes", c.headers, &nodes); err != nil {
		return nil, err
	}

	systems := make([]System, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		var ips []string
		for _, addr := range node.Status.Addresses {
			if addr.Type == "InternalIP" || addr.Type == "ExternalIP" {
				ips = append(ips, addr.Address)
			}
		}

		role := "worker"
		for label := range node.Metadata.Labels {
			if strings.Contains(label, "node-role.kubernetes.io/master") ||
				strings.Contains(label, "node-role.kubernetes.io/control-plane") {
				role = "master"
				break
			}
		}

		facts := []scan.RawFact{
			jsonFact("node.name", node.Metadata.Name),
			jsonFact("node.uid", node.Metadata.UID),
			jsonFact("node.role", role),
			jsonFact("node.architecture", node.Status.NodeInfo.Architecture),
			jsonFact("node.os_image", node.Status.NodeInfo.OSImage),
			jsonFact("node.operating_system", node.Status.NodeInfo.OperatingSystem),
			jsonFact("node.kubelet_version", node.Status.NodeInfo.KubeletVersion),
			jsonFact("node.container_runtime", node.Status.NodeInfo.ContainerRuntimeVersion),
			jsonFact("node.cpu_capacity", node.Status.Capacity.CPU),
			jsonFact("cluster.version", version.GitVersion),
		}
		if len(ips) > 0 {
			facts = append(facts, jsonFact("node.addresses", ips))
		}
		if clusterID != "" {
			facts = append(facts, jsonFact("cluster.uuid", clusterID))
		}

		systems = append(systems, System{Name: node.Metadata.Name, Facts: facts})
	}
	return systems, nil
}
