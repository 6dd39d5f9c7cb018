package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PublishResponse — принятое сообщение.
type PublishResponse struct {
	MessageType string `json:"message_type"`
	Queue       string `json:"queue"`
}

// LogEntryResponse — строка журнала воркеров.
type LogEntryResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// QueueResponse — очередь топологии.
type QueueResponse struct {
	Name         string   `json:"name"`
	RoutingKey   string   `json:"routing_key"`
	DelayQueue   string   `json:"delay_queue"`
	MessageTypes []string `json:"message_types"`
}

// TopologyResponse — обменник и его очереди.
type TopologyResponse struct {
	Exchange   string          `json:"exchange"`
	Queues     []QueueResponse `json:"queues"`
	DeadLetter string          `json:"dead_letter,omitempty"`
}

// --- Request types ---

// PublishRequest — публикация сообщения.
type PublishRequest struct {
	MessageType string          `json:"message_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Queue       string          `json:"queue,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
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

// --- Messages ---

// Publish публикует сообщение.
func (c *Client) Publish(req PublishRequest) (*PublishResponse, error) {
	var resp PublishResponse
	err := c.post("/api/v1/messages", req, &resp)
	return &resp, err
}

// PushLog публикует строку журнала.
func (c *Client) PushLog(message string) (*PublishResponse, error) {
	body := map[string]string{"message": message}
	var resp PublishResponse
	err := c.post("/api/v1/logs", body, &resp)
	return &resp, err
}

// --- Logs ---

// ListLogs возвращает последние строки журнала. limit <= 0 — значение сервера.
func (c *Client) ListLogs(limit int) ([]LogEntryResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var entries []LogEntryResponse
	err := c.list("/api/v1/logs", params, &entries)
	return entries, err
}

// --- Queues ---

// ListQueues возвращает топологию очередей.
func (c *Client) ListQueues() (*TopologyResponse, error) {
	var topology TopologyResponse
	err := c.get("/api/v1/queues", &topology)
	return &topology, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
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

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
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
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
