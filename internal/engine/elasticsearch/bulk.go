package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
)

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// BulkIndex indexes docs with the bulk NDJSON API without refreshing. Items
// the cluster rejects are reported in the result; only a failed request is
// returned as an error.
func (e *Engine) BulkIndex(ctx context.Context, docs []*domain.SearchDocument) (*engine.BulkResult, error) {
	if len(docs) == 0 {
		return &engine.BulkResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": e.index, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("elasticsearch bulk: encode document %s: %w", doc.ID, err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.index),
		e.client.Bulk.WithRefresh("false"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return nil, transportError("bulk", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError("bulk", res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}

	result := &engine.BulkResult{}
	for _, item := range br.Items {
		if item.Index.Error != nil || item.Index.Status >= 300 {
			reason := fmt.Sprintf("status %d", item.Index.Status)
			if item.Index.Error != nil {
				reason = item.Index.Error.Type + ": " + item.Index.Error.Reason
			}
			result.Failed++
			result.Failures = append(result.Failures, engine.BulkFailure{ID: item.Index.ID, Reason: reason})
			continue
		}
		result.Indexed++
	}

	e.logger.DebugContext(ctx, "bulk indexed products",
		slog.Int("indexed", result.Indexed),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
