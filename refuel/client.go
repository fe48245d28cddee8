package refuel

import (
	"context"
	"math/big"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const limitsCacheKey = "limits"

// Limits are the accepted deposit bounds of a refuel pair, in wei of the source native token.
type Limits struct {
	Min *big.Int
	Max *big.Int
}

// ClientOptions configure the refuel API client.
type ClientOptions struct {
	LimitsURL      string        // Refuel chains endpoint.
	PriceURL       string        // Price endpoint taking fsym and tsyms.
	CacheTTL       time.Duration // Lifetime of fetched limits and prices.
	RequestTimeout time.Duration // Timeout of one request when ctx has no deadline.
	RateLimit      float64       // Requests per second, 0 disables limiting.
}

// Client reads refuel limits and native token prices over HTTP.
type Client struct {
	http      *fasthttp.Client
	limitsURL string
	priceURL  string
	timeout   time.Duration
	cache     *cache.Cache
	limiter   *rate.Limiter
	logger    *logrus.Logger
}

// NewClient creates a client.
//
// Parameters:
// - opts: endpoints and limits.
// - logger: the logger for request failures.
//
// Returns:
// - *Client: the client.
func NewClient(opts ClientOptions, logger *logrus.Logger) *Client {
	c := &Client{
		http:      &fasthttp.Client{Name: "stargate-bridger"},
		limitsURL: opts.LimitsURL,
		priceURL:  strings.TrimRight(opts.PriceURL, "/"),
		timeout:   opts.RequestTimeout,
		cache:     cache.New(opts.CacheTTL, 2*opts.CacheTTL+time.Minute),
		logger:    logger,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// weiAmount accepts limits encoded either as JSON strings or JSON numbers.
type weiAmount struct {
	*big.Int
}

func (w *weiAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return errors.Errorf("bad amount %s", data)
	}
	w.Int = v
	return nil
}

type chainsResponse struct {
	Success bool `json:"success"`
	Result  []struct {
		ChainID uint64 `json:"chainId"`
		Limits  []struct {
			ChainID   uint64    `json:"chainId"`
			IsEnabled bool      `json:"isEnabled"`
			MinAmount weiAmount `json:"minAmount"`
			MaxAmount weiAmount `json:"maxAmount"`
		} `json:"limits"`
	} `json:"result"`
}

// Limits returns the deposit bounds from srcChainID towards dstChainID.
//
// Parameters:
// - ctx: the context for the request.
// - srcChainID: the EVM chain id funds leave from.
// - dstChainID: the EVM chain id gas arrives on.
//
// Returns:
// - *Limits: the bounds in source wei.
// - error: an error if the API fails or the pair is missing or disabled.
func (c *Client) Limits(ctx context.Context, srcChainID, dstChainID uint64) (*Limits, error) {
	var doc *chainsResponse
	if cached, ok := c.cache.Get(limitsCacheKey); ok {
		doc = cached.(*chainsResponse)
	} else {
		body, err := c.get(ctx, c.limitsURL)
		if err != nil {
			return nil, err
		}
		doc = &chainsResponse{}
		if err := json.Unmarshal(body, doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode refuel chains")
		}
		c.cache.SetDefault(limitsCacheKey, doc)
	}

	for _, chain := range doc.Result {
		if chain.ChainID != srcChainID {
			continue
		}
		for _, limit := range chain.Limits {
			if limit.ChainID != dstChainID {
				continue
			}
			if !limit.IsEnabled {
				return nil, errors.Errorf("refuel from %d to %d is not enabled", srcChainID, dstChainID)
			}
			if limit.MinAmount.Int == nil || limit.MaxAmount.Int == nil {
				return nil, errors.Errorf("refuel from %d to %d has no limits", srcChainID, dstChainID)
			}
			return &Limits{Min: limit.MinAmount.Int, Max: limit.MaxAmount.Int}, nil
		}
	}
	return nil, errors.Errorf("refuel from %d to %d is not offered", srcChainID, dstChainID)
}

// Price returns the USDT price of a token symbol.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	key := "price:" + symbol
	if cached, ok := c.cache.Get(key); ok {
		return cached.(float64), nil
	}

	q := url.Values{}
	q.Set("fsym", symbol)
	q.Set("tsyms", "USDT")
	body, err := c.get(ctx, c.priceURL+"?"+q.Encode())
	if err != nil {
		return 0, err
	}

	var prices map[string]float64
	if err := json.Unmarshal(body, &prices); err != nil {
		return 0, errors.Wrapf(err, "failed to decode %s price", symbol)
	}
	price, ok := prices["USDT"]
	if !ok || price <= 0 {
		return 0, errors.Errorf("no USDT price for %s", symbol)
	}

	c.cache.SetDefault(key, price)
	return price, nil
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.WithField("url", requestURL).WithError(err).Warn("Refuel API request failed")
		return nil, errors.Wrapf(err, "failed to request %s", requestURL)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, errors.Errorf("request %s failed with status %d", requestURL, resp.StatusCode())
	}

	// The body is released with the response.
	return append([]byte(nil), resp.Body()...), nil
}
