package google

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/teemow/gcalkit/internal/calendar"
)

// batch encodes queued requests as one multipart/mixed request to the
// batch endpoint and decodes the multipart answer by Content-ID.
type batch struct {
	client   *http.Client
	basePath string
	batchURL string

	items []batchItem
	keys  map[string]struct{}
}

type batchItem struct {
	key string
	req calendar.Request
}

func newBatch(client *http.Client, baseURL, batchURL string) *batch {
	basePath := "/"
	if u, err := url.Parse(baseURL); err == nil && u.Path != "" {
		basePath = u.Path
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return &batch{
		client:   client,
		basePath: basePath,
		batchURL: batchURL,
		keys:     map[string]struct{}{},
	}
}

func (b *batch) Add(req calendar.Request, key string) error {
	if key == "" {
		return calendar.ErrMissingCorrelationKey
	}
	if _, dup := b.keys[key]; dup {
		return fmt.Errorf("%w: %q", calendar.ErrDuplicateBatchKey, key)
	}
	if len(b.items) >= calendar.MaxBatchSize {
		return fmt.Errorf("%w: limit is %d", calendar.ErrBatchTooLarge, calendar.MaxBatchSize)
	}
	b.keys[key] = struct{}{}
	b.items = append(b.items, batchItem{key: key, req: req})
	return nil
}

func (b *batch) Len() int {
	return len(b.items)
}

func (b *batch) Execute(ctx context.Context) (*calendar.BatchResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, item := range b.items {
		if err := b.writePart(mw, item); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.batchURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}

	items, err := b.decode(resp)
	if err != nil {
		return nil, err
	}
	return &calendar.BatchResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Items:      items,
	}, nil
}

func (b *batch) writePart(mw *multipart.Writer, item batchItem) error {
	method, path, err := b.route(item.req)
	if err != nil {
		return err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "application/http")
	header.Set("Content-Transfer-Encoding", "binary")
	header.Set("Content-ID", "<"+item.key+">")
	w, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to encode batch item %s: %w", item.key, err)
	}

	if item.req.Event == nil || item.req.Method == calendar.MethodDelete {
		_, err = fmt.Fprintf(w, "%s %s HTTP/1.1\r\n\r\n", method, path)
		return err
	}

	payload, err := json.Marshal(item.req.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event of batch item %s: %w", item.key, err)
	}
	_, err = fmt.Fprintf(w, "%s %s HTTP/1.1\r\nContent-Type: application/json; charset=UTF-8\r\nContent-Length: %d\r\n\r\n%s",
		method, path, len(payload), payload)
	return err
}

// route maps a request to its REST method and path
func (b *batch) route(req calendar.Request) (string, string, error) {
	events := b.basePath + "calendars/" + url.PathEscape(req.CalendarID) + "/events"
	switch req.Method {
	case calendar.MethodInsert:
		return http.MethodPost, events, nil
	case calendar.MethodUpdate:
		return http.MethodPut, events + "/" + url.PathEscape(req.EventID), nil
	case calendar.MethodDelete:
		return http.MethodDelete, events + "/" + url.PathEscape(req.EventID), nil
	}
	return "", "", fmt.Errorf("unsupported batch method %q", req.Method)
}

func (b *batch) decode(resp *http.Response) (map[string]*calendar.BatchItemResponse, error) {
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("unexpected batch response content type %q", resp.Header.Get("Content-Type"))
	}

	methods := make(map[string]calendar.Method, len(b.items))
	for _, item := range b.items {
		methods[item.key] = item.req.Method
	}

	items := make(map[string]*calendar.BatchItemResponse, len(b.items))
	mr := multipart.NewReader(resp.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read batch response: %w", err)
		}

		key := responseKey(part.Header.Get("Content-ID"))
		item, err := decodeItem(part, methods[key])
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode batch item %s: %w", key, err)
		}
		items[key] = item
	}
	return items, nil
}

// responseKey turns "<response-KEY>" back into KEY
func responseKey(contentID string) string {
	id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(contentID), "<"), ">")
	return strings.TrimPrefix(id, "response-")
}

func decodeItem(r io.Reader, method calendar.Method) (*calendar.BatchItemResponse, error) {
	resp, err := http.ReadResponse(bufio.NewReader(r), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	item := &calendar.BatchItemResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
	}

	if err := googleapi.CheckResponse(resp); err != nil {
		var apiErr *googleapi.Error
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		item.Error = apiErr
		return item, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if method == calendar.MethodDelete || len(bytes.TrimSpace(data)) == 0 {
		return item, nil
	}

	var event gcal.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	item.Event = &event
	return item, nil
}
