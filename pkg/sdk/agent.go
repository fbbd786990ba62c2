package sdk

import "context"

// PostReport sends one machine report to the server's ingestion endpoint.
func (c *Client) PostReport(ctx context.Context, report *MachineReport) (*PostResult, error) {
	var result PostResult
	if err := c.post(ctx, "/", report, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
