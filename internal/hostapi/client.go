package hostapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Значения по умолчанию.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 60 * time.Second
)

// Config — параметры клиента API платформы.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// ConfigFromEnv читает HOST_API_URL, HOST_API_TOKEN и HOST_API_TIMEOUT_SEC.
func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
	if v := os.Getenv("HOST_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.Token = os.Getenv("HOST_API_TOKEN")
	if v := os.Getenv("HOST_API_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

// Redacted возвращает копию конфигурации со скрытым токеном.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = "******"
	}
	return c
}

// --- Request/response types ---

// SubdefRequest — генерация subdefs для записи.
type SubdefRequest struct {
	DataboxID   int64    `json:"databox_id"`
	RecordID    int64    `json:"record_id"`
	SubdefNames []string `json:"subdef_names,omitempty"`
}

// Subdef — сгенерированная subdef.
type Subdef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// MetadataRequest — запись метаданных в файлы записи.
type MetadataRequest struct {
	DataboxID  int64  `json:"databox_id"`
	RecordID   int64  `json:"record_id"`
	SubdefName string `json:"subdef_name,omitempty"`
}

// RecordRequest — создание записи из загруженного файла.
type RecordRequest struct {
	FilePath     string         `json:"file_path"`
	OriginalName string         `json:"original_name"`
	BaseID       int64          `json:"base_id"`
	FormData     map[string]any `json:"form_data,omitempty"`
	StoryID      *int64         `json:"story_id,omitempty"`
}

// RecordResult — результат создания записи.
type RecordResult struct {
	RecordID    int64    `json:"record_id"`
	DataboxID   int64    `json:"databox_id"`
	Quarantined bool     `json:"quarantined"`
	Reasons     []string `json:"reasons,omitempty"`
}

// ExportArchive — собранный архив экспорта.
type ExportArchive struct {
	Path       string    `json:"path"`
	ExpiresAt  time.Time `json:"expires_at"`
	SenderName string    `json:"sender_name"`
	SenderMail string    `json:"sender_mail"`
}

// IndexRequest — заполнение поискового индекса для databox.
type IndexRequest struct {
	DataboxID int64  `json:"databox_id"`
	IndexName string `json:"index_name,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент внутреннего API платформы.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateSubdefs просит платформу построить subdefs записи.
func (c *Client) GenerateSubdefs(ctx context.Context, req SubdefRequest) ([]Subdef, error) {
	var subdefs []Subdef
	err := c.post(ctx, "/internal/subdefs", req, &subdefs)
	return subdefs, err
}

// WriteMetadatas просит платформу записать метаданные в файлы записи.
func (c *Client) WriteMetadatas(ctx context.Context, req MetadataRequest) error {
	return c.post(ctx, "/internal/metadatas", req, nil)
}

// CreateRecord создаёт запись (или помещает файл в карантин).
func (c *Client) CreateRecord(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	var result RecordResult
	if err := c.post(ctx, "/internal/records", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BuildExportArchive собирает архив экспорта для токена.
func (c *Client) BuildExportArchive(ctx context.Context, token string) (*ExportArchive, error) {
	var archive ExportArchive
	if err := c.post(ctx, "/internal/exports/"+token+"/archive", nil, &archive); err != nil {
		return nil, err
	}
	return &archive, nil
}

// PopulateIndex заполняет поисковый индекс для databox.
func (c *Client) PopulateIndex(ctx context.Context, req IndexRequest) error {
	return c.post(ctx, "/internal/index/populate", req, nil)
}

// --- HTTP helpers ---

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request: %v", ErrRequest, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequest, method, path, err)
	}
	return resp, nil
}

// checkError превращает ответ >= 400 в *StatusError.
func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	se := &StatusError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		se.Code = er.Error.Code
		se.Message = er.Error.Message
		return se
	}

	se.Message = truncate(strings.TrimSpace(string(body)), 200)
	return se
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
