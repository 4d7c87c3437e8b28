package jira

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const fieldCacheTTL = time.Hour

// Field is one entry of Jira's field catalogue.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// fieldCache memoizes the instance's field catalogue. The catalogue
// changes only when admins add custom fields, so a stale copy is served
// when a refresh fails rather than failing the caller.
type fieldCache struct {
	client *Client

	mu        sync.Mutex
	fields    []Field
	fetchedAt time.Time
	now       func() time.Time
}

func newFieldCache(client *Client) *fieldCache {
	return &fieldCache{client: client, now: time.Now}
}

func (fc *fieldCache) get(ctx context.Context, force bool) ([]Field, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fresh := !fc.fetchedAt.IsZero() && fc.now().Sub(fc.fetchedAt) < fieldCacheTTL
	if fresh && !force {
		return fc.fields, nil
	}

	var fetched []Field
	err := fc.client.do(ctx, http.MethodGet, "/rest/api/3/field", nil, &fetched)
	if err != nil {
		if len(fc.fields) > 0 {
			fc.client.logger.Warn("field catalogue refresh failed, serving cached copy",
				"error", err, "age", fc.now().Sub(fc.fetchedAt).String())
			return fc.fields, nil
		}
		return nil, err
	}
	fc.fields = fetched
	fc.fetchedAt = fc.now()
	return fc.fields, nil
}

// Fields returns the cached field catalogue, refreshing it when older
// than an hour.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	return c.fields.get(ctx, false)
}

// RefreshFields forces a catalogue fetch, bypassing the TTL.
func (c *Client) RefreshFields(ctx context.Context) ([]Field, error) {
	return c.fields.get(ctx, true)
}

// FieldNames returns the catalogue's display names, for search-language
// assistance.
func (c *Client) FieldNames(ctx context.Context) ([]string, error) {
	fields, err := c.Fields(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
