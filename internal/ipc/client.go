package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SubmitCrawl starts a run from a crawled film list.
func (c *Client) SubmitCrawl(req SubmitCrawlRequest) (*SubmitCrawlResponse, error) {
	var resp SubmitCrawlResponse
	if err := c.client.Call("Streamfade.SubmitCrawl", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Commands drains the pending collaborator commands for a tab.
func (c *Client) Commands(tabID int64) (*CommandsResponse, error) {
	var resp CommandsResponse
	if err := c.client.Call("Streamfade.Commands", CommandsRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryNow fires a tab's deferred retry immediately.
func (c *Client) RetryNow(tabID int64) (*RetryNowResponse, error) {
	var resp RetryNowResponse
	if err := c.client.Call("Streamfade.RetryNow", RetryNowRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseTab drops all state for a closed tab.
func (c *Client) CloseTab(tabID int64) (*CloseTabResponse, error) {
	var resp CloseTabResponse
	if err := c.client.Call("Streamfade.CloseTab", CloseTabRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFilter fetches the effective filter selection.
func (c *Client) GetFilter() (*FilterResponse, error) {
	var resp FilterResponse
	if err := c.client.Call("Streamfade.GetFilter", GetFilterRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetFilter persists a new filter selection.
func (c *Client) SetFilter(req SetFilterRequest) (*FilterResponse, error) {
	var resp FilterResponse
	if err := c.client.Call("Streamfade.SetFilter", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Providers lists the watch-provider directory.
func (c *Client) Providers(req ProvidersRequest) (*ProvidersResponse, error) {
	var resp ProvidersResponse
	if err := c.client.Call("Streamfade.Providers", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindProvider resolves a provider by name.
func (c *Client) FindProvider(name string) (*FindProviderResponse, error) {
	var resp FindProviderResponse
	if err := c.client.Call("Streamfade.FindProvider", FindProviderRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Regions lists the region directory.
func (c *Client) Regions() (*RegionsResponse, error) {
	var resp RegionsResponse
	if err := c.client.Call("Streamfade.Regions", RegionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Streamfade.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Streamfade.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
