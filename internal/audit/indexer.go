package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "financing-portal/internal/common/errors"
	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
)

const defaultHistorySize = 200

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "keyword"},
      "entityType":    {"type": "keyword"},
      "entityId":      {"type": "keyword"},
      "applicationId": {"type": "keyword"},
      "from":          {"type": "keyword"},
      "to":            {"type": "keyword"},
      "edge":          {"type": "keyword"},
      "cascade":       {"type": "boolean"},
      "actor": {
        "properties": {
          "id":   {"type": "keyword"},
          "role": {"type": "keyword"}
        }
      },
      "occurredAt": {"type": "date"}
    }
  }
}`

// Indexer writes every transition event to an Elasticsearch index and
// answers history queries from it.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit", "index": index}),
	}
}

// EnsureIndex creates the index with keyword mappings unless it exists.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(i.index, err)
	}
	defer res.Body.Close()
	// a concurrent creator wins with resource_already_exists_exception
	if res.IsError() && res.StatusCode != 400 {
		return apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("create index: %s", res.String()))
	}
	i.logger.Info("audit index ready", nil)
	return nil
}

// Record indexes ev under its own id so a retried emit overwrites rather
// than duplicates.
func (i *Indexer) Record(ctx context.Context, ev models.TransitionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: ev.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("index event %s: %s", ev.ID, res.String()))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.TransitionEvent `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// History returns the transitions of id in the order they happened. For an
// application id this includes its offers and contracts.
func (i *Indexer) History(ctx context.Context, id string, limit int) ([]models.TransitionEvent, error) {
	if limit <= 0 || limit > defaultHistorySize {
		limit = defaultHistorySize
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"entityId": id}},
					map[string]interface{}{"term": map[string]interface{}{"applicationId": id}},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"occurredAt": map[string]interface{}{"order": "asc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	size := limit
	res, err := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}.Do(ctx, i.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(i.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return []models.TransitionEvent{}, nil
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("search: %s", res.String()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(i.index, fmt.Errorf("decode response: %w", err))
	}
	events := make([]models.TransitionEvent, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		events = append(events, hit.Source)
	}
	i.logger.Debug("history loaded", map[string]interface{}{"id": id, "count": len(events)})
	return events, nil
}
