package satellite

import (
	"context"
	"encoding/json"
	"fmt"
)

// v2Protocol speaks the 6.2+ API: a flat host listing.
type v2Protocol struct {
	client *Client
}

type v2Host struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (p *v2Protocol) Hosts(ctx context.Context) ([]hostRef, error) {
	raw, err := p.client.ListAll(ctx, "/api/v2/hosts")
	if err != nil {
		return nil, err
	}
	hosts := make([]hostRef, 0, len(raw))
	for _, r := range raw {
		var h v2Host
		if err := json.Unmarshal(r, &h); err != nil {
			return nil, fmt.Errorf("invalid host record: %w", err)
		}
		hosts = append(hosts, hostRef{ID: h.ID, Name: h.Name})
	}
	return hosts, nil
}

func (p *v2Protocol) HostDetails(ctx context.Context, h hostRef) (json.RawMessage, json.RawMessage, error) {
	base := fmt.Sprintf("/api/v2/hosts/%d", h.ID)

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
