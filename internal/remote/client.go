// Package remote talks to the CouchDB mirror holding the shared sync
// document. It owns transport concerns only: credential injection, rate
// limiting, retries, and mapping HTTP failures onto the sync error
// taxonomy. Reconciliation policy lives in the sync engine.
package remote

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/errors"
)

// Client is an HTTP client for one CouchDB database.
// Reads are retried with exponential backoff because they are idempotent;
// writes are attempted once and surface conflicts to the caller.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	baseURL     string
	database    string

	// newBackOff is a seam for tests to drop the retry delays.
	newBackOff func() backoff.BackOff
}

// NewClient creates a client for the given CouchDB base URL and database.
// Rate limited to keep a misbehaving timer loop from hammering the mirror.
func NewClient(baseURL, database string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 4),
		logger:      logger,
		baseURL:     baseURL,
		database:    database,
		newBackOff:  defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(bo, 3)
}

// wait blocks until the rate limiter allows a request.
func (c *Client) wait(ctx context.Context) error {
	return c.rateLimiter.Wait(ctx)
}

// documentURL builds the sync document URL with basic-auth userinfo
// injected from the credentials. The HTTP client turns userinfo into an
// Authorization header; url.UserPassword escapes reserved characters.
func (c *Client) documentURL(creds Credentials) (*url.URL, error) {
	base := c.baseURL
	if creds.URL != "" {
		base = creds.URL
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "remote URL is not a valid URL")
	}
	if creds.Username != "" {
		u.User = url.UserPassword(creds.Username, creds.Password)
	}
	return u.JoinPath(c.database, domain.SyncDocumentID), nil
}

// Ping checks that the database answers with the given credentials.
func (c *Client) Ping(ctx context.Context, creds Credentials) error {
	if err := c.wait(ctx); err != nil {
		return errors.Wrap(err, errors.CodeSyncUnreachable, "rate limit wait interrupted")
	}

	docURL, err := c.documentURL(creds)
	if err != nil {
		return err
	}
	dbURL := *docURL
	dbURL.Path = "/" + c.database

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dbURL.String(), nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create ping request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.SyncUnreachable("remote database did not answer").WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.SyncUnauthorized("remote database rejected credentials")
	default:
		return errors.SyncUnreachable("remote database answered with an unexpected status").
			WithDetails(resp.StatusCode)
	}
}

// GetDocument fetches the sync document. Transient failures (network
// errors, 5xx) are retried with exponential backoff; auth rejections,
// missing documents and malformed payloads fail immediately.
func (c *Client) GetDocument(ctx context.Context, creds Credentials) (*domain.SyncDocument, error) {
	docURL, err := c.documentURL(creds)
	if err != nil {
		return nil, err
	}

	operation := func() (*domain.SyncDocument, error) {
		if err := c.wait(ctx); err != nil {
			return nil, backoff.Permanent(errors.SyncUnreachable("rate limit wait interrupted").WithCause(err))
		}
		return c.fetchDocument(ctx, docURL)
	}

	doc, err := backoff.RetryWithData(operation, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) fetchDocument(ctx context.Context, docURL *url.URL) (*domain.SyncDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, errors.CodeInternal, "create fetch request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("sync document fetch failed", "error", err)
		return nil, errors.SyncUnreachable("remote database did not answer").WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(errors.NotFound("no sync document on remote"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(errors.SyncUnauthorized("remote database rejected credentials"))
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, errors.SyncUnreachable("remote database answered with a server error").
			WithDetails(resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, backoff.Permanent(errors.SyncUnreachable("remote database answered with an unexpected status").
			WithDetails(resp.StatusCode))
	}

	var doc domain.SyncDocument
	if err := json.UnmarshalRead(resp.Body, &doc); err != nil {
		return nil, backoff.Permanent(errors.SyncMalformedDoc("sync document is not valid JSON").WithCause(err))
	}
	if doc.ID != domain.SyncDocumentID {
		return nil, backoff.Permanent(errors.SyncMalformedDoc("remote document has an unexpected id").
			WithDetails(doc.ID))
	}
	if doc.Coins == nil {
		doc.Coins = []domain.Coin{}
	}
	if doc.Tags == nil {
		doc.Tags = []domain.TagDefinition{}
	}
	return &doc, nil
}

// putResponse is CouchDB's write acknowledgement.
type putResponse struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// PutDocument writes the sync document and returns the new revision.
// The document must carry the revision of the version it intends to
// replace; a mismatch comes back as a conflict. Writes are not retried.
func (c *Client) PutDocument(ctx context.Context, creds Credentials, doc *domain.SyncDocument) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", errors.SyncUnreachable("rate limit wait interrupted").WithCause(err)
	}

	docURL, err := c.documentURL(creds)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "serialize sync document")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, docURL.String(), bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "create put request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("sync document push failed", "error", err)
		return "", errors.SyncUnreachable("remote database did not answer").WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusConflict:
		io.Copy(io.Discard, resp.Body)
		return "", errors.Conflict("remote document changed since last pull")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return "", errors.SyncUnauthorized("remote database rejected credentials")
	default:
		io.Copy(io.Discard, resp.Body)
		return "", errors.SyncUnreachable("remote database answered with an unexpected status").
			WithDetails(resp.StatusCode)
	}

	var ack putResponse
	if err := json.UnmarshalRead(resp.Body, &ack); err != nil {
		return "", errors.SyncMalformedDoc("write acknowledgement is not valid JSON").WithCause(err)
	}
	if !ack.OK || ack.Rev == "" {
		return "", errors.SyncMalformedDoc("write acknowledgement is incomplete")
	}
	return ack.Rev, nil
}
