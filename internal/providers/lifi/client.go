package lifi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/httpx"
	"github.com/gabrielantonyxaviour/moltrades/internal/metrics"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"github.com/rs/zerolog"
)

const (
	DefaultSlippage   = 0.03
	DefaultIntegrator = "moltrades"

	// codeNoQuote is the LI.FI NoQuoteError code.
	codeNoQuote = 1002
)

type Client struct {
	http       *httpx.Client
	statusHTTP *httpx.Client
	baseURL    string
	apiKey     string
	integrator string
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

func WithIntegrator(tag string) Option {
	return func(c *Client) {
		if strings.TrimSpace(tag) != "" {
			c.integrator = strings.TrimSpace(tag)
		}
	}
}

// WithStatusHTTP sets a separate transport for status queries. Quotes always
// go through the client given to New.
func WithStatusHTTP(h *httpx.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.statusHTTP = h
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log.With().Str("component", "lifi").Logger() }
}

// New builds a client. httpClient should be configured without retries: a
// quote is never retried internally.
func New(httpClient *httpx.Client, opts ...Option) *Client {
	c := &Client{
		http:       httpClient,
		statusHTTP: httpClient,
		baseURL:    registry.LiFiBaseURL,
		integrator: DefaultIntegrator,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is an upstream rejection as reported by the composition service.
type APIError struct {
	HTTPStatus int    `json:"http_status"`
	Code       int    `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lifi %d (code %d): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("lifi %d: %s", e.HTTPStatus, e.Message)
}

type ActionQuoteInput struct {
	FromChain   int64
	FromToken   string
	FromAddress string
	ToChain     int64
	// ToToken and ToAmount default to the first action's token and amount.
	ToToken           string
	ToAmount          string
	Actions           []model.ComposedAction
	ToFallbackAddress string
	Slippage          float64
	AllowBridges      []string
	DenyBridges       []string
}

type contractCallsRequest struct {
	FromChain         int64                  `json:"fromChain"`
	FromToken         string                 `json:"fromToken"`
	FromAddress       string                 `json:"fromAddress"`
	ToChain           int64                  `json:"toChain"`
	ToToken           string                 `json:"toToken"`
	ToAmount          string                 `json:"toAmount"`
	ContractCalls     []model.ComposedAction `json:"contractCalls"`
	ToFallbackAddress string                 `json:"toFallbackAddress,omitempty"`
	Slippage          float64                `json:"slippage"`
	Integrator        string                 `json:"integrator,omitempty"`
	AllowBridges      []string               `json:"allowBridges,omitempty"`
	DenyBridges       []string               `json:"denyBridges,omitempty"`
}

// QuoteAction requests a route that ends in the given destination calls.
func (c *Client) QuoteAction(ctx context.Context, in ActionQuoteInput) (model.Quote, error) {
	if len(in.Actions) == 0 {
		return model.Quote{}, clierr.New(clierr.CodeUsage, "at least one contract call is required")
	}
	if in.FromChain <= 0 || in.ToChain <= 0 {
		return model.Quote{}, clierr.New(clierr.CodeUsage, "source and destination chains are required")
	}
	if in.FromChain != registry.SolanaChainID && !common.IsHexAddress(in.FromAddress) {
		return model.Quote{}, clierr.New(clierr.CodeUsage, "from address must be a valid EVM address")
	}
	if strings.TrimSpace(in.FromToken) == "" {
		return model.Quote{}, clierr.New(clierr.CodeUsage, "from token is required")
	}
	slippage, err := normalizeSlippage(in.Slippage)
	if err != nil {
		return model.Quote{}, err
	}
	body := contractCallsRequest{
		FromChain:         in.FromChain,
		FromToken:         in.FromToken,
		FromAddress:       in.FromAddress,
		ToChain:           in.ToChain,
		ToToken:           firstNonEmpty(in.ToToken, in.Actions[0].FromTokenAddress),
		ToAmount:          firstNonEmpty(in.ToAmount, in.Actions[0].FromAmount),
		ContractCalls:     in.Actions,
		ToFallbackAddress: firstNonEmpty(in.ToFallbackAddress, in.FromAddress),
		Slippage:          slippage,
		Integrator:        c.integrator,
		AllowBridges:      in.AllowBridges,
		DenyBridges:       in.DenyBridges,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return model.Quote{}, clierr.Wrap(clierr.CodeInternal, "encode contract calls request", err)
	}

	started := time.Now()
	var resp quoteResponse
	_, err = httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/quote/contractCalls", buf, c.headers(), &resp)
	if err != nil {
		err = classify(err)
		c.observe("action", started, err)
		return model.Quote{}, err
	}
	quote, err := normalizeQuote(resp, in.FromChain, in.ToChain, in.FromAddress)
	c.observe("action", started, err)
	if err != nil {
		return model.Quote{}, err
	}
	c.log.Debug().Str("quote_id", quote.ID).Str("tool", quote.Tool).Int64("from_chain", in.FromChain).Int64("to_chain", in.ToChain).Msg("received action quote")
	return quote, nil
}

type TransferQuoteInput struct {
	FromChain    int64
	ToChain      int64
	FromToken    string
	ToToken      string
	FromAmount   string
	FromAddress  string
	ToAddress    string
	Slippage     float64
	AllowBridges []string
	DenyBridges  []string
}

// QuoteTransfer requests a plain token transfer route with no destination
// call.
func (c *Client) QuoteTransfer(ctx context.Context, in TransferQuoteInput) (model.Quote, error) {
	if in.FromChain <= 0 || in.ToChain <= 0 {
		return model.Quote{}, clierr.New(clierr.CodeUsage, "source and destination chains are required")
	}
	if strings.TrimSpace(in.FromAmount) == "" || strings.TrimSpace(in.FromAddress) == "" {
		return model.Quote{}, clierr.New(clierr.CodeUsage, "amount and from address are required")
	}
	slippage, err := normalizeSlippage(in.Slippage)
	if err != nil {
		return model.Quote{}, err
	}
	vals := url.Values{}
	vals.Set("fromChain", strconv.FormatInt(in.FromChain, 10))
	vals.Set("toChain", strconv.FormatInt(in.ToChain, 10))
	vals.Set("fromToken", in.FromToken)
	vals.Set("toToken", in.ToToken)
	vals.Set("fromAmount", in.FromAmount)
	vals.Set("fromAddress", in.FromAddress)
	vals.Set("toAddress", firstNonEmpty(in.ToAddress, in.FromAddress))
	vals.Set("slippage", strconv.FormatFloat(slippage, 'f', -1, 64))
	if c.integrator != "" {
		vals.Set("integrator", c.integrator)
	}
	if len(in.AllowBridges) > 0 {
		vals.Set("allowBridges", strings.Join(in.AllowBridges, ","))
	}
	if len(in.DenyBridges) > 0 {
		vals.Set("denyBridges", strings.Join(in.DenyBridges, ","))
	}

	started := time.Now()
	var resp quoteResponse
	_, err = httpx.DoBodyJSON(ctx, c.http, http.MethodGet, c.baseURL+"/quote?"+vals.Encode(), nil, c.headers(), &resp)
	if err != nil {
		err = classify(err)
		c.observe("transfer", started, err)
		return model.Quote{}, err
	}
	quote, err := normalizeQuote(resp, in.FromChain, in.ToChain, in.FromAddress)
	c.observe("transfer", started, err)
	return quote, err
}

// Status queries the bridge leg identified by key. Answers such as NOT_FOUND
// are returned as data, not errors.
func (c *Client) Status(ctx context.Context, key model.StatusKey) (model.StatusResponse, error) {
	if strings.TrimSpace(key.TxHash) == "" {
		return model.StatusResponse{}, clierr.New(clierr.CodeUsage, "status query requires a transaction hash")
	}
	vals := url.Values{}
	vals.Set("txHash", key.TxHash)
	if key.Bridge != "" {
		vals.Set("bridge", key.Bridge)
	}
	if key.FromChain > 0 {
		vals.Set("fromChain", strconv.FormatInt(key.FromChain, 10))
	}
	if key.ToChain > 0 {
		vals.Set("toChain", strconv.FormatInt(key.ToChain, 10))
	}
	var resp statusResponse
	if _, err := httpx.DoBodyJSON(ctx, c.statusHTTP, http.MethodGet, c.baseURL+"/status?"+vals.Encode(), nil, c.headers(), &resp); err != nil {
		return model.StatusResponse{}, err
	}
	return resp.toModel(), nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-lifi-api-key": c.apiKey}
}

func (c *Client) observe(kind string, started time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case clierr.Is(err, clierr.CodeUnsupportedRoute):
		outcome = "no_route"
	default:
		outcome = clierr.CodeOf(err).Name()
	}
	c.metrics.ObserveQuote(kind, outcome, time.Since(started))
}

// classify turns an httpx failure into the quote taxonomy. Transport,
// throttling and auth failures keep their own codes.
func classify(err error) error {
	statusErr, ok := httpx.AsStatusError(err)
	if !ok {
		return err
	}
	switch {
	case statusErr.StatusCode == http.StatusTooManyRequests,
		statusErr.StatusCode == http.StatusUnauthorized,
		statusErr.StatusCode == http.StatusForbidden,
		statusErr.StatusCode >= http.StatusInternalServerError:
		return err
	}
	apiErr := &APIError{HTTPStatus: statusErr.StatusCode}
	var body struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	}
	if json.Unmarshal(statusErr.Body, &body) == nil {
		apiErr.Message = body.Message
		apiErr.Code = parseErrorCode(body.Code)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(statusErr.Body))
	}
	if statusErr.StatusCode == http.StatusNotFound || apiErr.Code == codeNoQuote {
		return clierr.Wrap(clierr.CodeUnsupportedRoute, "no route available for the requested action", apiErr)
	}
	return clierr.Wrap(clierr.CodeQuote, "quote request rejected", apiErr)
}

func parseErrorCode(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func normalizeSlippage(v float64) (float64, error) {
	if v == 0 {
		return DefaultSlippage, nil
	}
	if v < 0 || v >= 1 {
		return 0, clierr.New(clierr.CodeUsage, "slippage must be a fraction between 0 and 1")
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseQuantity accepts 0x-prefixed hex or decimal integers.
func parseQuantity(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return new(big.Int), nil
	}
	n := new(big.Int)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		if _, ok := n.SetString(clean[2:], 16); !ok && clean[2:] != "" {
			return nil, fmt.Errorf("invalid hex quantity %q", v)
		}
		return n, nil
	}
	if _, ok := n.SetString(clean, 10); !ok {
		return nil, fmt.Errorf("invalid quantity %q", v)
	}
	return n, nil
}
