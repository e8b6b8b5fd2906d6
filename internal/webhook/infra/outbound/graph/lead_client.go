package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/leadhook/internal/webhook/domain"
)

const (
	DefaultBaseURL = "https://graph.facebook.com"
	DefaultVersion = "v18.0"

	// LeadFields es la proyección fija que se pide para cada lead.
	LeadFields = "id,created_time,field_data,ad_id,ad_name,adset_id,adset_name,campaign_id,campaign_name,form_id,is_organic"

	maxErrorBody = 4 << 10
)

// Client habla con la Graph API. Un único intento por llamada, sin reintentos.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient crea el cliente con un timeout acotado para cada petición.
func NewClient(baseURL, version string, timeout time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// --- Structs JSON de la API ---

type leadResponse struct {
	ID           string          `json:"id"`
	CreatedTime  string          `json:"created_time"`
	FieldData    []fieldDataJSON `json:"field_data"`
	AdID         string          `json:"ad_id"`
	AdName       string          `json:"ad_name"`
	AdsetID      string          `json:"adset_id"`
	AdsetName    string          `json:"adset_name"`
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	FormID       string          `json:"form_id"`
	IsOrganic    bool            `json:"is_organic"`
}

type fieldDataJSON struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// FetchLeadDetails implementa domain.LeadFetcher.
func (c *Client) FetchLeadDetails(ctx context.Context, leadID, accessToken string) (*domain.LeadDetail, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("fields", LeadFields)

	var resp leadResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(leadID), params, &resp); err != nil {
		return nil, fmt.Errorf("fetch lead %s: %w", leadID, err)
	}
	return toLeadDetail(&resp), nil
}

// SubscribePage suscribe la página a la app para el campo leadgen.
func (c *Client) SubscribePage(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("subscribed_fields", domain.LeadgenField)
	params.Set("access_token", accessToken)
	return c.doMap(ctx, http.MethodPost, c.endpoint(pageID, "subscribed_apps"), params)
}

func (c *Client) UnsubscribePage(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	return c.doMap(ctx, http.MethodDelete, c.endpoint(pageID, "subscribed_apps"), params)
}

// ListSubscribedApps lista las apps que tiene instaladas la página.
func (c *Client) ListSubscribedApps(ctx context.Context, pageID, accessToken string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	return c.doMap(ctx, http.MethodGet, c.endpoint(pageID, "subscribed_apps"), params)
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, c.baseURL, c.version)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) doMap(ctx context.Context, method, endpoint string, params url.Values) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := c.do(ctx, method, endpoint, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	c.log.Debug("Graph API call",
		zap.String("method", method),
		zap.String("path", req.URL.Path),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		apiErr := &domain.APIError{StatusCode: res.StatusCode, Body: string(body)}
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil {
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

func toLeadDetail(r *leadResponse) *domain.LeadDetail {
	fields := make([]domain.FieldData, 0, len(r.FieldData))
	for _, f := range r.FieldData {
		fields = append(fields, domain.FieldData{Name: f.Name, Values: f.Values})
	}
	return &domain.LeadDetail{
		ID:           r.ID,
		CreatedTime:  r.CreatedTime,
		FieldData:    fields,
		AdID:         r.AdID,
		AdName:       r.AdName,
		AdsetID:      r.AdsetID,
		AdsetName:    r.AdsetName,
		CampaignID:   r.CampaignID,
		CampaignName: r.CampaignName,
		FormID:       r.FormID,
		IsOrganic:    r.IsOrganic,
	}
}

var (
	_ domain.LeadFetcher    = (*Client)(nil)
	_ domain.PageSubscriber = (*Client)(nil)
)
