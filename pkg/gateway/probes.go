package gateway

import (
	"context"
	"sync"

	"maas-gateway-verifier/pkg/verify/poll"
)

// StatusProbe adapts a request into a convergence probe observing the HTTP
// status code. Transport-level failures are classified transient: a gateway
// mid-reconfiguration drops connections, and that is exactly the window the
// poller exists to ride out.
func (c *Client) StatusProbe(req Request) poll.Probe[int] {
	return func(ctx context.Context) (int, error) {
		resp, err := c.Do(ctx, req)
		if err != nil {
			return 0, poll.Transient(err)
		}
		return resp.Status, nil
	}
}

// ObservedStatusProbe is StatusProbe plus capture of the most recent full
// response, for scenarios that poll for a status and then inspect the body
// that carried it.
func (c *Client) ObservedStatusProbe(req Request) (poll.Probe[int], func() *Response) {
	var mu sync.Mutex
	var last *Response
	probe := func(ctx context.Context) (int, error) {
		resp, err := c.Do(ctx, req)
		if err != nil {
			return 0, poll.Transient(err)
		}
		mu.Lock()
		last = resp
		mu.Unlock()
		return resp.Status, nil
	}
	latest := func() *Response {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	return probe, latest
}
