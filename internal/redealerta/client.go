package redealerta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rede-alerta/alertsync/internal/alert"
)

const (
	// DefaultRequestTimeout bounds every remote call. The upstream service
	// imposes no timeout of its own, so an unresponsive host would otherwise
	// block the submit flow indefinitely.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultCategory is sent when the user picked no category. Matches the
	// placeholder the report screen has always submitted.
	DefaultCategory = "Relato"
)

// Client is the typed HTTP client for the Rede Alerta service.
// All failures are mapped into the alert error taxonomy; callers never see
// raw transport or HTTP errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	validate   *validator.Validate
	logger     *logrus.Logger
}

// New creates a client for the service at baseURL. A non-positive timeout
// selects DefaultRequestTimeout.
func New(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		validate:   validator.New(),
		logger:     logger,
	}
}

// List fetches every alert currently known to the service
func (c *Client) List(ctx context.Context) ([]alert.Alert, error) {
	var raw []wireAlert
	if err := c.roundTrip(ctx, http.MethodGet, "/alertas/", nil, &raw, 0); err != nil {
		return nil, err
	}

	out := make([]alert.Alert, 0, len(raw))
	for _, w := range raw {
		a, err := w.toAlert()
		if err != nil {
			return nil, &alert.DecodeError{Err: err}
		}
		out = append(out, a)
	}

	c.logger.WithFields(logrus.Fields{
		"client": "redealerta",
		"count":  len(out),
	}).Debug("Fetched alert list")
	return out, nil
}

// Create submits a new report and returns the service's authoritative copy.
// The draft is validated locally first; a rejected draft returns a
// ValidationError without touching the network.
func (c *Client) Create(ctx context.Context, d alert.Draft) (alert.Alert, error) {
	d.Normalize()
	if err := c.validate.Struct(d); err != nil {
		return alert.Alert{}, &alert.ValidationError{Detail: validationDetail(err)}
	}

	payload := createPayload{
		Titulo:    d.Title,
		Tipo:      d.Category,
		Descricao: d.Description,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
	}
	if payload.Tipo == "" {
		payload.Tipo = DefaultCategory
	}
	if !d.HasFix {
		// Service contract: uncaptured location is carried as (0, 0)
		payload.Latitude = 0
		payload.Longitude = 0
	}

	var w wireAlert
	if err := c.roundTrip(ctx, http.MethodPost, "/alertas/", payload, &w, 0); err != nil {
		return alert.Alert{}, err
	}

	a, err := w.toAlert()
	if err != nil {
		return alert.Alert{}, &alert.DecodeError{Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"client":   "redealerta",
		"alert_id": a.ID,
	}).Info("Report created")
	return a, nil
}

// UpdateStatus changes the status of an existing alert
func (c *Client) UpdateStatus(ctx context.Context, id int64, status alert.Status) (alert.Alert, error) {
	path := fmt.Sprintf("/alertas/%d/status", id)

	var w wireAlert
	if err := c.roundTrip(ctx, http.MethodPut, path, statusPayload{Status: string(status)}, &w, id); err != nil {
		return alert.Alert{}, err
	}

	a, err := w.toAlert()
	if err != nil {
		return alert.Alert{}, &alert.DecodeError{Err: err}
	}
	return a, nil
}

// Delete removes an alert. Deleting an id the service no longer knows
// returns a NotFoundError.
func (c *Client) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/alertas/%d", id)
	return c.roundTrip(ctx, http.MethodDelete, path, nil, nil, id)
}

// Regions fetches the selectable service regions
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	var out []Region
	if err := c.roundTrip(ctx, http.MethodGet, "/regioes/", nil, &out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Profile fetches a user record for the profile screen
func (c *Client) Profile(ctx context.Context, id int64) (User, error) {
	var out User
	path := fmt.Sprintf("/usuarios/%d", id)
	if err := c.roundTrip(ctx, http.MethodGet, path, nil, &out, id); err != nil {
		return User{}, err
	}
	return out, nil
}

// roundTrip executes one request and maps the outcome into the error
// taxonomy. When notFoundID is non-zero a 404 becomes a NotFoundError for
// that id; other 4xx responses become ValidationErrors carrying the
// service's detail message.
//
// The request runs on a context detached from the caller: abandoning a
// screen cancels the caller's wait but must not abort the round trip, since
// the engine still reconciles a late response. Only the client timeout
// bounds the request.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload, out any, notFoundID int64) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request payload")
		}
		body = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &alert.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusNoContent:
		// Success - decode below
	case resp.StatusCode == http.StatusNotFound && notFoundID != 0:
		return &alert.NotFoundError{ID: notFoundID}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &alert.ValidationError{Detail: c.errorDetail(resp)}
	default:
		return &alert.NetworkError{Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &alert.DecodeError{Err: err}
	}
	return nil
}

// errorDetail extracts the detail message from an error body, falling back
// to the HTTP status text when the body is not the expected shape
func (c *Client) errorDetail(resp *http.Response) string {
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fmt.Sprintf("request rejected (HTTP %d)", resp.StatusCode)
}

// validationDetail flattens validator output into one human-readable line
func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
