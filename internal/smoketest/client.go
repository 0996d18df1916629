package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// Failure - проваленная проверка. Любая другая ошибка прогона считается
// неожиданной.
type Failure struct {
	Msg string
}

func (f *Failure) Error() string {
	return f.Msg
}

func failf(format string, args ...any) error {
	return &Failure{Msg: fmt.Sprintf(format, args...)}
}

type response struct {
	Status int
	Body   []byte
	Header http.Header
}

// apiClient выполняет запросы к публичному API с таймаутом на каждый запрос.
type apiClient struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

func (c *apiClient) url(path string) string {
	return c.baseURL + path
}

// do не считает HTTP-статусы ошибкой: проверки статусов делает вызывающий.
func (c *apiClient) do(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration) (*response, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, url, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failf("HTTP %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failf("HTTP %s %s failed: read body: %v", method, url, err)
	}
	return &response{Status: resp.StatusCode, Body: raw, Header: resp.Header}, nil
}

func (c *apiClient) get(ctx context.Context, path, token string) (*response, error) {
	return c.do(ctx, http.MethodGet, c.url(path), bearer(token), nil, 0)
}

func (c *apiClient) delete(ctx context.Context, path, token string) (*response, error) {
	return c.do(ctx, http.MethodDelete, c.url(path), bearer(token), nil, 0)
}

func (c *apiClient) postJSON(ctx context.Context, path, token string, payload any) (*response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}
	header := bearer(token)
	header.Set("Content-Type", "application/json")
	return c.do(ctx, http.MethodPost, c.url(path), header, body, 0)
}

// postFile отправляет файл одним multipart-полем.
func (c *apiClient) postFile(ctx context.Context, path, token, field, fileName, contentType string, data []byte, timeout time.Duration) (*response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	partHeader.Set("Content-Type", contentType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	header := bearer(token)
	header.Set("Content-Type", mw.FormDataContentType())
	return c.do(ctx, http.MethodPost, c.url(path), header, buf.Bytes(), timeout)
}

func bearer(token string) http.Header {
	header := make(http.Header)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}

// expectStatus проверяет код ответа и приводит тело в сообщение об ошибке.
func expectStatus(resp *response, want int, label string) error {
	if resp.Status == want {
		return nil
	}
	detail := ""
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		detail = " payload=" + string(bytes.TrimSpace(resp.Body))
	}
	return failf("%s: expected HTTP %d, got %d.%s", label, want, resp.Status, detail)
}

// decodeObject разбирает тело ответа как JSON-объект. Числа остаются json.Number.
func decodeObject(resp *response, label string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, failf("%s: invalid JSON: %v", label, err)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, failf("%s: JSON is not an object", label)
	}
	return obj, nil
}

func requireKey(payload map[string]any, key, label string) (any, error) {
	v, ok := payload[key]
	if !ok {
		raw, _ := json.Marshal(payload)
		return nil, failf("%s: missing key '%s' in payload=%s", label, key, raw)
	}
	return v, nil
}

func requireString(payload map[string]any, key, label string) (string, error) {
	v, err := requireKey(payload, key, label)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", failf("%s: %s is empty or invalid", label, key)
	}
	return s, nil
}

// requireID принимает id и числом, и строкой с числом.
func requireID(payload map[string]any, key, label string) (int64, error) {
	v, err := requireKey(payload, key, label)
	if err != nil {
		return 0, err
	}
	var raw string
	switch id := v.(type) {
	case json.Number:
		raw = id.String()
	case string:
		raw = id
	default:
		return 0, failf("%s: invalid %s=%v", label, key, v)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, failf("%s: invalid %s=%v", label, key, v)
	}
	return n, nil
}

// containsID ищет в списке объектов элемент с заданным id.
func containsID(payload map[string]any, listKey string, id int64, label string) (bool, error) {
	items, ok := payload[listKey].([]any)
	if !ok {
		return false, failf("%s: '%s' is not a list", label, listKey)
	}
	want := fmt.Sprint(id)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprint(obj["id"]) == want {
			return true, nil
		}
	}
	return false, nil
}
