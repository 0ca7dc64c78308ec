package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wms-budget/internal/domain"
	"wms-budget/internal/store"
)

const usd = "USD"

type exchangeRate struct {
	Currency  string          `json:"currency"`
	RateToUSD decimal.Decimal `json:"rate_to_usd"`
}

// ExchangeRateClient 汇率服务客户端
type ExchangeRateClient struct {
	httpClient *resty.Client
}

func NewExchangeRateClient(baseURL string) *ExchangeRateClient {
	return &ExchangeRateClient{httpClient: newRestyClient(baseURL, 10*time.Second)}
}

// GetExchangeRateToUSD USD 直接返回 1
func (c *ExchangeRateClient) GetExchangeRateToUSD(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == usd {
		return decimal.NewFromInt(1), nil
	}
	if currency == "" {
		return decimal.Zero, domain.NewValidationError("exchange rate", "currency is required")
	}
	rate, err := getResult[exchangeRate](
		c.httpClient.R().SetContext(ctx).SetPathParam("currency", currency),
		"exchange rate", currency, "/exchange-rate/api/v1/rates/{currency}",
	)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.RateToUSD, nil
}

// RateSource 汇率来源
type RateSource interface {
	GetExchangeRateToUSD(ctx context.Context, currency string) (decimal.Decimal, error)
}

// CachedExchangeRates 汇率缓存（Redis），缓存读写失败时直接查询来源
type CachedExchangeRates struct {
	source RateSource
	kv     store.KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedExchangeRates(source RateSource, kv store.KV, ttl time.Duration, logger *zap.Logger) *CachedExchangeRates {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedExchangeRates{source: source, kv: kv, ttl: ttl, logger: logger}
}

func rateCacheKey(currency string) string {
	return "wms:budget:rate:" + currency
}

func (c *CachedExchangeRates) GetExchangeRateToUSD(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	key := rateCacheKey(currency)

	cached, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		if rate, perr := decimal.NewFromString(cached); perr == nil {
			return rate, nil
		}
		c.logger.Warn("Invalid cached exchange rate", zap.String("key", key), zap.String("value", cached))
	case !errors.Is(err, store.ErrMiss):
		c.logger.Warn("Exchange rate cache read failed", zap.String("key", key), zap.Error(err))
	}

	rate, err := c.source.GetExchangeRateToUSD(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.kv.Set(ctx, key, rate.String(), c.ttl); err != nil {
		c.logger.Warn("Exchange rate cache write failed", zap.String("key", key), zap.Error(err))
	}
	return rate, nil
}
