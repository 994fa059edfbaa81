package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/matchcare/platform/pkg/clients/httpclient"
	"github.com/matchcare/platform/pkg/common/apperr"
	"github.com/matchcare/platform/pkg/common/models"
)

// Client queries subscription status from the billing service. It only
// reports what billing says; the fail-open policy for unreachable billing
// lives with the caller.
type Client struct {
	baseURL string
	http    *http.Client
	retries int
}

func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpclient.New(timeout),
		retries: retries,
	}
}

func (c *Client) GetSubscriptionStatus(ctx context.Context, providerID uuid.UUID) (*models.SubscriptionStatus, error) {
	var envelope struct {
		Data *models.SubscriptionStatus `json:"data"`
	}

	path := fmt.Sprintf("/api/v1/subscriptions/provider/%s/status", providerID)
	err := httpclient.Retry(ctx, c.retries, 100*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("billing service returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&envelope)
	})
	if err != nil {
		return nil, apperr.Unavailable(err, "billing service unavailable")
	}
	if envelope.Data == nil {
		// Billing answered but knows no subscription for this provider. That
		// is a definitive "not subscribed", not an outage: report inactive so
		// callers fail closed.
		return &models.SubscriptionStatus{ProviderID: providerID, IsActive: false}, nil
	}

	return envelope.Data, nil
}
