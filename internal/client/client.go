package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ruta-norte/fleet-compliance-api/internal/models"
	"github.com/ruta-norte/fleet-compliance-api/internal/wizard"
	appErrors "github.com/ruta-norte/fleet-compliance-api/pkg/errors"
)

// envelope mirrors the server's common response contract.
type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

// Config configures an API client.
type Config struct {
	BaseURL string
	// Token is the bearer credential attached to every call.
	Token string
	// CompanyID, when set, is passed through verbatim as the tenant
	// selector header. The client never computes it.
	CompanyID  string
	HTTPClient *http.Client
}

// Client is the HTTP collaborator used by the wizard, the pollers and
// the record store refresh paths. It implements wizard.Backend.
type Client struct {
	baseURL   string
	token     string
	companyID string
	http      *http.Client
}

// New builds a client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		token:     cfg.Token,
		companyID: cfg.CompanyID,
		http:      httpClient,
	}
}

// DispatchPayload is the manual-request batch body.
type DispatchPayload struct {
	SendToAll     bool     `json:"send_to_all"`
	TargetUserIDs []string `json:"target_user_ids"`
	Message       string   `json:"message"`
}

// CheckNeeded asks whether the caller must inspect now.
func (c *Client) CheckNeeded(ctx context.Context) (*models.CheckNeededResult, error) {
	var result models.CheckNeededResult
	if _, err := c.doJSON(ctx, http.MethodGet, "/check-needed", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateInspection atomically creates one inspection, without images.
// A non-2xx response surfaces as a submission error so the wizard aborts
// with zero partial state.
func (c *Client) CreateInspection(ctx context.Context, payload wizard.CreatePayload) (*models.InspectionRecord, error) {
	components := make([]map[string]interface{}, 0, len(payload.Components))
	for _, component := range payload.Components {
		components = append(components, map[string]interface{}{
			"kind":   component.Kind,
			"status": component.Status,
			"notes":  component.Notes,
		})
	}
	body := map[string]interface{}{
		"truck_plate":   payload.TruckPlate,
		"general_notes": payload.GeneralNotes,
		"components":    components,
	}

	var record models.InspectionRecord
	if _, err := c.doJSON(ctx, http.MethodPost, "/inspections", body, &record); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status == http.StatusUnauthorized || appErr.Status == http.StatusForbidden ||
			appErr.Code == appErrors.ErrValidation.Code {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrSubmission.Code, appErrors.ErrSubmission.Status, appErr.Message)
	}
	return &record, nil
}

// UploadComponentImage attaches one photo to one component of an
// existing record.
func (c *Client) UploadComponentImage(ctx context.Context, inspectionID string, kind models.ComponentKind, filename string, data []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("kind", string(kind)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	path := fmt.Sprintf("/inspections/%s/images", url.PathEscape(inspectionID))
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	_, err = c.send(req, nil)
	return err
}

// ListInspections fetches a bulk page of inspections for reconciliation.
func (c *Client) ListInspections(ctx context.Context, plate string, limit, offset int) ([]models.InspectionRecord, *models.Pagination, error) {
	query := url.Values{}
	if plate != "" {
		query.Set("plate", plate)
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var records []models.InspectionRecord
	pagination, err := c.doJSON(ctx, http.MethodGet, "/inspections?"+query.Encode(), nil, &records)
	if err != nil {
		return nil, nil, err
	}
	return records, pagination, nil
}

// PendingIssues fetches inspections with reported problems.
func (c *Client) PendingIssues(ctx context.Context, limit, offset int) ([]models.InspectionRecord, *models.Pagination, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var records []models.InspectionRecord
	pagination, err := c.doJSON(ctx, http.MethodGet, "/inspections/pending?"+query.Encode(), nil, &records)
	if err != nil {
		return nil, nil, err
	}
	return records, pagination, nil
}

// MarkInspectionReviewed transitions one inspection to reviewed.
func (c *Client) MarkInspectionReviewed(ctx context.Context, id, note string) (*models.InspectionRecord, error) {
	path := fmt.Sprintf("/inspections/%s/review", url.PathEscape(id))
	var record models.InspectionRecord
	if _, err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"note": note}, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DispatchManualRequests submits a manual-request batch. The server is
// the dedup authority; the returned counts are informational only.
func (c *Client) DispatchManualRequests(ctx context.Context, payload DispatchPayload) (*models.DispatchResult, error) {
	if !payload.SendToAll && len(payload.TargetUserIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one target user is required")
	}
	var result models.DispatchResult
	if _, err := c.doJSON(ctx, http.MethodPost, "/manual-requests", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Settings reads the auto-inspection singleton.
func (c *Client) Settings(ctx context.Context) (*models.AutoInspectionSettings, error) {
	var settings models.AutoInspectionSettings
	if _, err := c.doJSON(ctx, http.MethodGet, "/settings/auto-inspection", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings toggles the auto-inspection singleton.
func (c *Client) UpdateSettings(ctx context.Context, enabled bool) (*models.AutoInspectionSettings, error) {
	var settings models.AutoInspectionSettings
	if _, err := c.doJSON(ctx, http.MethodPut, "/settings/auto-inspection", map[string]bool{"enabled": enabled}, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ListDirectOrders fetches a bulk page of direct orders.
func (c *Client) ListDirectOrders(ctx context.Context, limit, offset int) ([]models.DirectOrderRecord, *models.Pagination, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var records []models.DirectOrderRecord
	pagination, err := c.doJSON(ctx, http.MethodGet, "/direct-orders?"+query.Encode(), nil, &records)
	if err != nil {
		return nil, nil, err
	}
	return records, pagination, nil
}

// DirectOrder fetches one direct order.
func (c *Client) DirectOrder(ctx context.Context, id string) (*models.DirectOrderRecord, error) {
	var record models.DirectOrderRecord
	if _, err := c.doJSON(ctx, http.MethodGet, "/direct-orders/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkDirectOrderReviewed transitions one direct order to reviewed. The
// raw note is stored as-is.
func (c *Client) MarkDirectOrderReviewed(ctx context.Context, id, note string) (*models.DirectOrderRecord, error) {
	path := fmt.Sprintf("/direct-orders/%s/review", url.PathEscape(id))
	var record models.DirectOrderRecord
	if _, err := c.doJSON(ctx, http.MethodPatch, path, map[string]string{"note": note}, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// History fetches one page of the reconciled history view.
func (c *Client) History(ctx context.Context, filter models.HistoryFilter, page models.HistoryPage) ([]models.HistoryItem, *models.Pagination, error) {
	query := url.Values{}
	if filter.Plate != "" {
		query.Set("plate", filter.Plate)
	}
	if filter.Conductor != "" {
		query.Set("conductor", filter.Conductor)
	}
	if filter.DateFrom != nil {
		query.Set("date_from", filter.DateFrom.Format(time.RFC3339))
	}
	if filter.DateTo != nil {
		query.Set("date_to", filter.DateTo.Format(time.RFC3339))
	}
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("page_size", strconv.Itoa(page.PageSize))

	var items []models.HistoryItem
	pagination, err := c.doJSON(ctx, http.MethodGet, "/history?"+query.Encode(), nil, &items)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.companyID != "" {
		req.Header.Set("X-Company-ID", c.companyID)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, dest interface{}) (*models.Pagination, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, dest)
}

// send executes a request and decodes the envelope. Server-provided error
// messages are preferred over generic fallbacks.
func (c *Client) send(req *http.Request, dest interface{}) (*models.Pagination, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Error != nil && env.Error.Message != "" {
			return nil, &appErrors.Error{Code: env.Error.Code, Status: resp.StatusCode, Message: env.Error.Message}
		}
		return nil, appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, appErrors.Wrap(decodeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed response body")
	}
	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed response payload")
		}
	}
	return env.Pagination, nil
}
