package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mantongash/cartsync/internal/collection"
	"github.com/mantongash/cartsync/pkg/config"
	"github.com/mantongash/cartsync/pkg/enums"
	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
	"github.com/mantongash/cartsync/pkg/types"
)

// Remote is the authoritative server surface the engine talks to. Guests
// never go through it.
type Remote interface {
	List(ctx context.Context, category enums.Category) ([]types.Item, error)
	Add(ctx context.Context, category enums.Category, item types.Item) error
	Remove(ctx context.Context, category enums.Category, productRef string) error
	Update(ctx context.Context, category enums.Category, productRef string, quantity int) error
	Clear(ctx context.Context, category enums.Category) error
}

// TokenSource supplies the bearer token attached to every server call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource holding a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// HTTPRemote implements Remote over the collection API.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

// NewHTTPRemote builds a Remote bound to the configured server.
func NewHTTPRemote(cfg config.SyncConfig, tokens TokenSource) (*HTTPRemote, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.ServerBaseURL), "/")
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "server base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "server base url is invalid")
	}
	if tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token source is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRemote{
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}, nil
}

type addRequest struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity,omitempty"`
}

type updateRequest struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

type listEnvelope struct {
	Data collection.CollectionDTO `json:"data"`
}

func (r *HTTPRemote) List(ctx context.Context, category enums.Category) ([]types.Item, error) {
	body, err := r.do(ctx, http.MethodGet, r.endpoint(category, ""), nil)
	if err != nil {
		return nil, err
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode collection response")
	}
	items := make([]types.Item, 0, len(envelope.Data.Items))
	for _, item := range envelope.Data.Items {
		items = append(items, types.Item{
			ProductRef: item.ProductRef,
			Quantity:   item.Quantity,
			AddedAt:    item.AddedAt,
		})
	}
	return items, nil
}

func (r *HTTPRemote) Add(ctx context.Context, category enums.Category, item types.Item) error {
	payload := addRequest{ProductRef: item.ProductRef}
	if category.UsesQuantity() {
		payload.Quantity = item.Quantity
	}
	_, err := r.do(ctx, http.MethodPost, r.endpoint(category, "add"), payload)
	return err
}

func (r *HTTPRemote) Remove(ctx context.Context, category enums.Category, productRef string) error {
	_, err := r.do(ctx, http.MethodDelete, r.endpoint(category, "remove/"+url.PathEscape(productRef)), nil)
	return err
}

func (r *HTTPRemote) Update(ctx context.Context, category enums.Category, productRef string, quantity int) error {
	_, err := r.do(ctx, http.MethodPut, r.endpoint(category, "update"), updateRequest{
		ProductRef: productRef,
		Quantity:   quantity,
	})
	return err
}

func (r *HTTPRemote) Clear(ctx context.Context, category enums.Category) error {
	_, err := r.do(ctx, http.MethodDelete, r.endpoint(category, "clear"), nil)
	return err
}

func (r *HTTPRemote) endpoint(category enums.Category, suffix string) string {
	endpoint := fmt.Sprintf("%s/api/v1/%s", r.baseURL, category)
	if suffix != "" {
		endpoint += "/" + suffix
	}
	return endpoint
}

func (r *HTTPRemote) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "resolve access token")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call collection server")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read server response")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, serverError(resp.StatusCode, raw)
	}
	return raw, nil
}

func serverError(status int, body []byte) error {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("server rejected request (%d): %s", status, envelope.Error.Message))
	}
	return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("server rejected request (%d)", status))
}
