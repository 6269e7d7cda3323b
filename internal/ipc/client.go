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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Thorn.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Thorn.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntryAdd schedules a new delivery.
func (c *Client) EntryAdd(req EntryAddRequest) (*EntryAddResponse, error) {
	var resp EntryAddResponse
	if err := c.client.Call("Thorn.EntryAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntryCancel cancels a pending entry.
func (c *Client) EntryCancel(id string) (*EntryCancelResponse, error) {
	var resp EntryCancelResponse
	if err := c.client.Call("Thorn.EntryCancel", EntryCancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntryReset pushes a dead-man's-switch deadline out by its interval.
func (c *Client) EntryReset(id, word string) (*EntryResetResponse, error) {
	var resp EntryResetResponse
	if err := c.client.Call("Thorn.EntryReset", EntryResetRequest{ID: id, Word: word}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntryList returns entries optionally filtered by statuses.
func (c *Client) EntryList(statuses []string) (*EntryListResponse, error) {
	var resp EntryListResponse
	if err := c.client.Call("Thorn.EntryList", EntryListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntryDescribe returns details for a single entry.
func (c *Client) EntryDescribe(id string) (*EntryDescribeResponse, error) {
	var resp EntryDescribeResponse
	if err := c.client.Call("Thorn.EntryDescribe", EntryDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Contacts returns the messaging daemon's contact list.
func (c *Client) Contacts() (*ContactsResponse, error) {
	var resp ContactsResponse
	if err := c.client.Call("Thorn.Contacts", ContactsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ContactLink returns this identity's pairing link.
func (c *Client) ContactLink() (*ContactLinkResponse, error) {
	var resp ContactLinkResponse
	if err := c.client.Call("Thorn.ContactLink", ContactLinkRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
