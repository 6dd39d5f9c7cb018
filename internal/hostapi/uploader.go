package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Asset — информация об ассете в сервисе загрузки.
type Asset struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"originalName"`
	MimeType     string         `json:"mimeType,omitempty"`
	Size         int64          `json:"size,omitempty"`
	FormData     map[string]any `json:"formData,omitempty"`
}

// Uploader — клиент сервиса загрузки для одного сообщения.
//
// base_url и assetToken приходят в payload, поэтому клиент создаётся
// на каждое сообщение.
type Uploader struct {
	baseURL    string
	assetToken string
	httpClient *http.Client
}

// NewUploader создаёт клиент сервиса загрузки.
// httpClient == nil — клиент с таймаутом 5 минут (скачивание больших файлов).
func NewUploader(baseURL, assetToken string, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		assetToken: assetToken,
		httpClient: httpClient,
	}
}

// GetAsset возвращает информацию об ассете.
func (u *Uploader) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	resp, err := u.do(ctx, http.MethodGet, "/assets/"+assetID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return nil, err
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return nil, fmt.Errorf("%w: decode asset: %v", ErrRequest, err)
	}
	if asset.ID == "" {
		asset.ID = assetID
	}
	return &asset, nil
}

// Download записывает содержимое ассета в w.
// Любой ответ, кроме 200, — ошибка.
func (u *Uploader) Download(ctx context.Context, assetID string, w io.Writer) (int64, error) {
	resp, err := u.do(ctx, http.MethodGet, "/assets/"+assetID+"/download", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if err := checkError(resp); err != nil {
			return 0, err
		}
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: download %s: %v", ErrRequest, assetID, err)
	}
	return n, nil
}

// AckCommit подтверждает сервису загрузки, что все ассеты коммита получены.
func (u *Uploader) AckCommit(ctx context.Context, commitID string) error {
	resp, err := u.do(ctx, http.MethodPost, "/commits/"+commitID+"/ack", strings.NewReader(`{"acknowledged":true}`))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkError(resp)
}

func (u *Uploader) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}

	req.Header.Set("Authorization", "AssetToken "+u.assetToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequest, method, path, err)
	}
	return resp, nil
}
