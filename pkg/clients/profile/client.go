package profile

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

// Client reads patient and provider profile snapshots from the profile
// service. Errors are mapped to apperr.NotFound when the profile does not
// exist and apperr.Unavailable for transport failures and server errors.
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

func (c *Client) GetPatient(ctx context.Context, patientID uuid.UUID) (*models.PatientProfile, error) {
	var envelope struct {
		Data *models.PatientProfile `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/patients/%s", patientID), &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, apperr.NotFound("patient profile %s not found", patientID)
	}
	return envelope.Data, nil
}

func (c *Client) GetProvider(ctx context.Context, providerID uuid.UUID) (*models.ProviderProfile, error) {
	var envelope struct {
		Data *models.ProviderProfile `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/providers/%s", providerID), &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, apperr.NotFound("provider profile %s not found", providerID)
	}
	return envelope.Data, nil
}

// ListActivePatients returns all patient profiles with consent given, used by
// the provider-side recalculation fan-out.
func (c *Client) ListActivePatients(ctx context.Context) ([]models.PatientProfile, error) {
	var envelope struct {
		Data []models.PatientProfile `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/v1/patients/all", &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// ListActiveProviders returns all visible provider profiles, used by the
// patient-side recalculation fan-out.
func (c *Client) ListActiveProviders(ctx context.Context) ([]models.ProviderProfile, error) {
	var envelope struct {
		Data []models.ProviderProfile `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/v1/providers/all", &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	var notFound bool
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

		switch {
		case resp.StatusCode == http.StatusNotFound:
			notFound = true
			return nil
		case resp.StatusCode >= 300:
			return fmt.Errorf("profile service returned status %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return apperr.Unavailable(err, "profile service unavailable")
	}
	if notFound {
		return apperr.NotFound("profile resource %s not found", path)
	}
	return nil
}
