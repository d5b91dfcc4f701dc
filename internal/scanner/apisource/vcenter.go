package apisource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hostscout/api/internal/scanner"
	"github.com/hostscout/api/pkg/domain/scan"
)

// vcenterCollector speaks the vSphere Automation REST API.
type vcenterCollector struct {
	client *http.Client
	base   string
	user   string
	pass   string

	sessionID string
}

// NewVCenterCollector returns the collector factory for vcenter
// sources.
func NewVCenterCollector(timeout time.Duration) CollectorFactory {
	return func(tc scanner.TaskContext) (Collector, error) {
		client, err := newHTTPClient(tc, timeout)
		if err != nil {
			return nil, err
		}
		cred := tc.Credentials[0]
		return &vcenterCollector{
			client: client,
			base:   baseURL(tc),
			user:   cred.Username,
			pass:   cred.Password,
		}, nil
	}
}

// Probe opens an API session.
func (c *vcenterCollector) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/rest/com/vmware/cis/session", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.pass)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: vcenter rejected credentials", ErrAuthFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vcenter session returned status %d", resp.StatusCode)
	}

	var session struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("invalid vcenter session response: %w", err)
	}
	c.sessionID = session.Value
	return nil
}

type vcenterVM struct {
	VM            string `json:"vm"`
	Name          string `json:"name"`
	PowerState    string `json:"power_state"`
	CPUCount      int    `json:"cpu_count"`
	MemorySizeMiB int64  `json:"memory_size_MiB"`
}

type vcenterIdentity struct {
	FullName struct {
		DefaultMessage string `json:"default_message"`
	} `json:"full_name"`
	HostName  string `json:"host_name"`
	IPAddress string `json:"ip_address"`
}

// Systems lists every VM the vCenter manages, one fingerprintable
// record each.
func (c *vcenterCollector) Systems(ctx context.Context) ([]System, error) {
	if c.sessionID == "" {
		if err := c.Probe(ctx); err != nil {
			return nil, err
		}
	}
	headers := map[string]string{"vmware-api-session-id": c.sessionID}

	var list struct {
		Value []vcenterVM `json:"value"`
	}
	if err := getJSON(ctx, c.client, c.base+"/rest/vcenter/vm", headers, &list); err != nil {
		return nil, err
	}

	checkin := time.Now().UTC().Format("2006-01-02 15:04:05")
	systems := make([]System, 0, len(list.Value))
	for _, vm := range list.Value {
		facts := []scan.RawFact{
			jsonFact("vm.name", vm.Name),
			jsonFact("vm.uuid", vm.VM),
			jsonFact("vm.state", vm.PowerState),
			jsonFact("vm.cpu_count", vm.CPUCount),
			jsonFact("vm.memory_size", float64(vm.MemorySizeMiB)/1024),
			jsonFact("vm.last_check_in", checkin),
		}

		// Guest identity is best effort; powered-off guests have none.
		var identity struct {
			Value vcenterIdentity `json:"value"`
		}
		err := getJSON(ctx, c.client,
			fmt.Sprintf("%s/rest/vcenter/vm/%s/guest/identity", c.base, vm.VM),
			headers, &identity)
		if err == nil {
			facts = append(facts,
				jsonFact("vm.os", identity.Value.FullName.DefaultMessage),
				jsonFact("vm.dns_name", identity.Value.HostName),
			)
			if identity.Value.IPAddress != "" {
				facts = append(facts, jsonFact("vm.ip_addresses", []string{identity.Value.IPAddress}))
			}
		}

		systems = append(systems, System{Name: vm.Name, Facts: facts})
	}
	return systems, nil
}

func jsonFact(key string, v any) scan.RawFact {
	value, err := json.Marshal(v)
	if err != nil {
		value = []byte("null")
	}
	return scan.RawFact{Key: key, Value: value}
}
