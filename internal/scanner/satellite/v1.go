package satellite

import (
	"context"
	"encoding/json"
	"fmt"
)

// hostRef identifies one host to inspect. OrgID is only meaningful for
// the Katello protocol.
type hostRef struct {
	ID    int64
	Name  string
	UUID  string
	OrgID int64
}

// Key is the unique storage key for the host within a task.
func (h hostRef) Key() string {
	return fmt.Sprintf("%s_%d", h.Name, h.ID)
}

// protocol abstracts the two incompatible Satellite APIs.
type protocol interface {
	// Hosts lists every unique host the Satellite manages.
	Hosts(ctx context.Context) ([]hostRef, error)
	// HostDetails fetches the host-fields and subscriptions bodies.
	HostDetails(ctx context.Context, h hostRef) (fields, subs json.RawMessage, err error)
}

// v1Protocol speaks the pre-6.2 Katello API: hosts are listed per
// organization and the same host can appear under several orgs.
type v1Protocol struct {
	client *Client

	// org IDs are fetched once per task
	orgs []int64
}

type v1Org struct {
	ID int64 `json:"id"`
}

type v1System struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (p *v1Protocol) organizations(ctx context.Context) ([]int64, error) {
	if p.orgs != nil {
		return p.orgs, nil
	}
	raw, err := p.client.ListAll(ctx, "/katello/api/v2/organizations")
	if err != nil {
		return nil, err
	}
	for _, r := range raw {
		var org v1Org
		if err := json.Unmarshal(r, &org); err != nil {
			return nil, fmt.Errorf("invalid organization record: %w", err)
		}
		p.orgs = append(p.orgs, org.ID)
	}
	return p.orgs, nil
}

// Hosts fans out across organizations and collapses duplicates to the
// union of unique host UUIDs.
func (p *v1Protocol) Hosts(ctx context.Context) ([]hostRef, error) {
	orgs, err := p.organizations(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hosts []hostRef
	for _, orgID := range orgs {
		raw, err := p.client.ListAll(ctx,
			fmt.Sprintf("/katello/api/v2/organizations/%d/systems", orgID))
		if err != nil {
			return nil, err
		}
		for _, r := range raw {
			var sys v1System
			if err := json.Unmarshal(r, &sys); err != nil {
				return nil, fmt.Errorf("invalid system record: %w", err)
			}
			if sys.UUID != "" && seen[sys.UUID] {
				continue
			}
			seen[sys.UUID] = true
			hosts = append(hosts, hostRef{ID: sys.ID, Name: sys.Name, UUID: sys.UUID, OrgID: orgID})
		}
	}
	return hosts, nil
}

func (p *v1Protocol) HostDetails(ctx context.Context, h hostRef) (json.RawMessage, json.RawMessage, error) {
	base := fmt.Sprintf("/katello/api/v2/organizations/%d/systems/%d", h.OrgID, h.ID)

	var fields json.RawMessage
	if err := p.client.GetJSON(ctx, base, nil, &fields); err != nil {
		return nil, nil, err
	}
	var subs json.RawMessage
	if err := p.client.GetJSON(ctx, base+"/subscriptions", nil, &subs); err != nil {
		return fields, nil, err
	}
	return fields, subs, nil
}
