package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
)

// File states reported by the file store. Uploaded files start in
// FileStateProcessing and must reach FileStateActive before they can be
// referenced in a generation request.
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
)

// File is a handle to a document in the Gemini file store. The Name and URI
// are opaque identifiers assigned by the API.
type File struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	MIMEType    string `json:"mimeType"`
	URI         string `json:"uri"`
	State       string `json:"state"`
}

// Active reports whether the file finished processing and can be used as
// generation context.
func (f *File) Active() bool {
	return f.State == FileStateActive
}

// Failed reports whether the file store gave up processing the file.
func (f *File) Failed() bool {
	return f.State == FileStateFailed
}

type uploadFileResponse struct {
	File File `json:"file"`
}

type getFileResponse = File

// UploadFile uploads a local file to the Gemini file store and returns its
// handle. The returned file is usually still processing; poll with GetFile
// until it becomes active.
func (c *Client) UploadFile(ctx context.Context, path, mimeType string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("read file %s: %w", path, err))
	}

	displayName := filepath.Base(path)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// First part: file metadata as JSON
	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create metadata part: %w", err))
	}
	meta := map[string]any{
		"file": map[string]string{"display_name": displayName},
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, NewFatalError(fmt.Errorf("encode metadata: %w", err))
	}

	// Second part: raw file content
	dataHeader := textproto.MIMEHeader{}
	if mimeType != "" {
		dataHeader.Set("Content-Type", mimeType)
	} else {
		dataHeader.Set("Content-Type", "application/octet-stream")
	}
	dataPart, err := writer.CreatePart(dataHeader)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create data part: %w", err))
	}
	if _, err := io.Copy(dataPart, bytes.NewReader(data)); err != nil {
		return nil, NewFatalError(fmt.Errorf("write file content: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, NewFatalError(fmt.Errorf("finalize multipart body: %w", err))
	}

	url := c.baseURL + "/upload/v1beta/files"
	contentType := "multipart/related; boundary=" + writer.Boundary()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create upload request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("X-Goog-Upload-Protocol", "multipart")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("Uploading file to Gemini",
		"path", path,
		"display_name", displayName,
		"mime_type", mimeType,
		"bytes", len(data))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("upload request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read upload response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	var parsed uploadFileResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse upload response: %w", err))
	}
	if parsed.File.Name == "" {
		return nil, NewFatalError(fmt.Errorf("upload response missing file name"))
	}

	return &parsed.File, nil
}

// GetFile fetches the current state of an uploaded file by its opaque name
// (e.g. "files/abc123").
func (c *Client) GetFile(ctx context.Context, name string) (*File, error) {
	url := fmt.Sprintf("%s/v1beta/%s", c.baseURL, name)

	respBody, err := c.doJSON(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, err
	}

	var parsed getFileResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewFatalError(fmt.Errorf("parse file response: %w", err))
	}

	return &parsed, nil
}
