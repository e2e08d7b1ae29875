package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// AssetResponse — состояние подготовки товара из API.
type AssetResponse struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	ProductID  string `json:"product_id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// VariantResponse — один вариант run из API.
type VariantResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ImageURL     string `json:"image_url,omitempty"`
	LatencyMS    int64  `json:"latency_ms"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunResponse — render run из API.
type RunResponse struct {
	RunID      string            `json:"run_id"`
	TenantID   string            `json:"tenant_id"`
	AssetID    string            `json:"asset_id"`
	RoomID     string            `json:"room_id"`
	Status     string            `json:"status"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	TimedOut   int               `json:"timed_out"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at,omitempty"`
	Variants   []VariantResponse `json:"variants"`
}

// JobResponse — batch-задача из API.
type JobResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	TenantID   string `json:"tenant_id"`
	AssetID    string `json:"asset_id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// --- Request types ---

// CreateAssetRequest — импорт товара.
type CreateAssetRequest struct {
	TenantID       string          `json:"tenant_id"`
	ProductID      string          `json:"product_id"`
	SourceImageKey string          `json:"source_image_key"`
	Card           json.RawMessage `json:"card"`
}

// --- Error envelope ---

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// --- Client ---

// Client — HTTP-клиент для Showroom API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Assets ---

// CreateAsset импортирует товар и ставит prepare-задачу.
func (c *Client) CreateAsset(req CreateAssetRequest) (*AssetResponse, error) {
	var asset AssetResponse
	err := c.post("/api/v1/assets", req, &asset)
	return &asset, err
}

// GetAsset возвращает состояние подготовки товара.
func (c *Client) GetAsset(id string) (*AssetResponse, error) {
	var asset AssetResponse
	err := c.get("/api/v1/assets/"+id, &asset)
	return &asset, err
}

// PrepareAsset запускает повторную подготовку товара.
func (c *Client) PrepareAsset(id string) (*AssetResponse, error) {
	var asset AssetResponse
	err := c.post("/api/v1/assets/"+id+"/prepare", nil, &asset)
	return &asset, err
}

// --- Runs ---

// GetRun возвращает run с вариантами.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// --- Jobs ---

// RequeueJob возвращает терминальную задачу в очередь.
func (c *Client) RequeueJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+id+"/requeue", nil, &job)
	return &job, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s (request %s)", er.Error, er.Message, er.RequestID)
}
