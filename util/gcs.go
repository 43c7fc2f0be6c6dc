// util/gcs.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var ErrGCSEmptyName = errors.New("Object name cannot be empty")

const gcsReadOnlyScope = "https://www.googleapis.com/auth/devstorage.read_only"

// GCSClient reads objects from a Google Cloud Storage bucket through the
// JSON API. Scenery buckets are public, so credentials are optional.
type GCSClient struct {
	hc     *http.Client
	bucket string
	base   string // https://storage.googleapis.com/storage/v1/b/<bucket>/o
}

type GCSClientConfig struct {
	Context context.Context
	// Service account JSON; nil means anonymous access.
	Credentials []byte
	Timeout     time.Duration
	// Endpoint override, used by tests.
	BaseURL string
}

func MakeGCSClient(bucket string, config GCSClientConfig) (*GCSClient, error) {
	if bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	endpoint := Select(config.BaseURL != "", strings.TrimSuffix(config.BaseURL, "/"), "https://storage.googleapis.com")
	c := &GCSClient{
		hc:     &http.Client{},
		bucket: bucket,
		base:   endpoint + "/storage/v1/b/" + url.PathEscape(bucket) + "/o",
	}

	if config.Credentials != nil {
		ctx := config.Context
		if ctx == nil {
			ctx = context.Background()
		}
		jwt, err := google.JWTConfigFromJSON(config.Credentials, gcsReadOnlyScope)
		if err != nil {
			return nil, fmt.Errorf("%s: bad credentials: %w", bucket, err)
		}
		c.hc = oauth2.NewClient(ctx, jwt.TokenSource(ctx))
	}
	c.hc.Timeout = Select(config.Timeout != 0, config.Timeout, 30*time.Second)

	return c, nil
}

type GCSObject struct {
	Name string `json:"name"`
	Size string `json:"size"` // the API encodes uint64 as a string
}

type GCSListResponse struct {
	Items         []GCSObject `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// get issues a GET for the given URL and returns the body of a 200
// response.
func (g *GCSClient) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", g.bucket, resp.Status)
	}
	return resp.Body, nil
}

// List returns the sizes of the objects in the bucket whose names start
// with prefix, keyed by object name.
func (g *GCSClient) List(ctx context.Context, prefix string) (map[string]int64, error) {
	sizes := make(map[string]int64)

	q := url.Values{"projection": {"noAcl"}}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	for {
		body, err := g.get(ctx, g.base+"?"+q.Encode())
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}
		var page GCSListResponse
		err = json.NewDecoder(body).Decode(&page)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}

		for _, obj := range page.Items {
			if sizes[obj.Name], err = strconv.ParseInt(obj.Size, 10, 64); err != nil {
				return nil, fmt.Errorf("%s: size: %w", obj.Name, err)
			}
		}

		if page.NextPageToken == "" {
			return sizes, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}

// GetReader returns the contents of the named object; the caller must
// close it.
func (g *GCSClient) GetReader(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if objectName == "" {
		return nil, ErrGCSEmptyName
	}
	r, err := g.get(ctx, g.base+"/"+url.PathEscape(objectName)+"?alt=media")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", objectName, err)
	}
	return r, nil
}
