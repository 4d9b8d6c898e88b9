package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/catalog/internal/engine"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// indexNotFound is the error type returned when the products index is absent,
// for example after a cluster restart before the index is recreated.
const indexNotFound = "index_not_found_exception"

// ResponseError is a non-2xx answer from Elasticsearch.
type ResponseError struct {
	Op     string
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elasticsearch %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("elasticsearch %s: %d %s: %s", e.Op, e.Status, e.Type, e.Reason)
}

// Unwrap maps the status onto the shared sentinels so callers can use
// errors.Is without knowing about Elasticsearch.
func (e *ResponseError) Unwrap() error {
	switch {
	case e.Type == indexNotFound:
		return engine.ErrUnavailable
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case e.Status == http.StatusTooManyRequests, e.Status >= http.StatusBadGateway:
		return engine.ErrUnavailable
	default:
		return nil
	}
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

func decodeError(op string, res *esapi.Response) error {
	rerr := &ResponseError{Op: op, Status: res.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var er esErrorResponse
	if json.Unmarshal(body, &er) == nil {
		rerr.Type = er.Error.Type
		rerr.Reason = er.Error.Reason
	}
	return rerr
}

func isIndexMissing(err error) bool {
	var rerr *ResponseError
	return errors.As(err, &rerr) && rerr.Type == indexNotFound
}

// transportError wraps a failure to reach the cluster. Anything other than a
// caller cancellation means the engine is unavailable.
func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	return fmt.Errorf("elasticsearch %s: %w: %w", op, engine.ErrUnavailable, err)
}
