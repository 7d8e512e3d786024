package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tibber-insights/internal/model"

	"github.com/go-resty/resty/v2"
)

// DefaultTibberURL is the Tibber GraphQL endpoint.
const DefaultTibberURL = "https://api.tibber.com/v1-beta/gql"

const userAgent = "tibber-insights/0.2.0"

// TibberError represents an error from the Tibber API.
type TibberError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *TibberError) Error() string {
	return e.Message
}

// TibberClient fetches price and consumption data from the Tibber GraphQL
// API. It implements baseline.FallbackSource.
type TibberClient struct {
	token   string
	baseURL string
	client  *resty.Client
	log     *slog.Logger
}

// NewTibberClient creates a client. If baseURL is empty, DefaultTibberURL
// is used.
func NewTibberClient(token, baseURL string, log *slog.Logger) *TibberClient {
	if baseURL == "" {
		baseURL = DefaultTibberURL
	}
	if log == nil {
		log = slog.Default()
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	return &TibberClient{
		token:   token,
		baseURL: baseURL,
		client:  client,
		log:     log,
	}
}

const priceQuery = `{
  viewer {
    homes {
      currentSubscription {
        priceInfo {
          current { total currency level startsAt }
          today { total currency level startsAt }
          tomorrow { total currency level startsAt }
        }
      }
    }
  }
}`

const consumptionQuery = `query($hours: Int!) {
  viewer {
    homes {
      consumption(resolution: HOURLY, last: $hours) {
        nodes { from to unitPrice unitPriceVAT currency }
      }
    }
  }
}`

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type wirePrice struct {
	Total    *float64 `json:"total"`
	Currency string   `json:"currency"`
	Level    string   `json:"level"`
	StartsAt string   `json:"startsAt"`
}

type priceData struct {
	Viewer struct {
		Homes []struct {
			CurrentSubscription struct {
				PriceInfo struct {
					Current  *wirePrice  `json:"current"`
					Today    []wirePrice `json:"today"`
					Tomorrow []wirePrice `json:"tomorrow"`
				} `json:"priceInfo"`
			} `json:"currentSubscription"`
		} `json:"homes"`
	} `json:"viewer"`
}

type consumptionData struct {
	Viewer struct {
		Homes []struct {
			Consumption struct {
				Nodes []struct {
					From         string   `json:"from"`
					To           string   `json:"to"`
					UnitPrice    *float64 `json:"unitPrice"`
					UnitPriceVAT *float64 `json:"unitPriceVAT"`
					Currency     string   `json:"currency"`
				} `json:"nodes"`
			} `json:"consumption"`
		} `json:"homes"`
	} `json:"viewer"`
}

// PriceData fetches current, today, and tomorrow prices. Tomorrow is empty
// before Nord Pool publishes it (around 13:00). Responses may be cached for
// local development; see cache.go.
func (c *TibberClient) PriceData(ctx context.Context) (*model.PriceData, error) {
	if err := c.validateToken(); err != nil {
		return nil, err
	}

	if cache := GetCache(); cache != nil {
		if cached, found := cache.Get(priceCacheKey); found {
			c.log.Debug("tibber cache hit", "key", "prices")
			return cached, nil
		}
	}

	var data priceData
	if err := c.query(ctx, gqlRequest{Query: priceQuery}, &data); err != nil {
		return nil, err
	}

	if len(data.Viewer.Homes) == 0 {
		return nil, &TibberError{Code: "NO_HOMES", Message: "no homes found in Tibber account"}
	}
	// Use the first home; multi-home aggregation is out of scope.
	info := data.Viewer.Homes[0].CurrentSubscription.PriceInfo
	if info.Current == nil || info.Current.Total == nil {
		return nil, &TibberError{Code: "NO_PRICE", Message: "no current price data available"}
	}

	current := toPoint(*info.Current)
	out := &model.PriceData{
		Current:  &current,
		Today:    toPoints(info.Today),
		Tomorrow: toPoints(info.Tomorrow),
	}
	c.log.Debug("tibber price data fetched",
		"today", len(out.Today), "tomorrow", len(out.Tomorrow), "current", current.Total)

	if cache := GetCache(); cache != nil {
		cache.Set(priceCacheKey, out)
	}
	return out, nil
}

// Consumption fetches the trailing hourly consumption nodes, which carry
// the historical unit prices used by the baseline fallback.
func (c *TibberClient) Consumption(ctx context.Context, hours int) ([]model.ConsumptionPoint, error) {
	if err := c.validateToken(); err != nil {
		return nil, err
	}
	if hours < 1 {
		return nil, fmt.Errorf("hours must be >= 1, got %d", hours)
	}

	var data consumptionData
	req := gqlRequest{Query: consumptionQuery, Variables: map[string]any{"hours": hours}}
	if err := c.query(ctx, req, &data); err != nil {
		return nil, err
	}
	if len(data.Viewer.Homes) == 0 {
		return nil, &TibberError{Code: "NO_HOMES", Message: "no homes found in Tibber account"}
	}

	nodes := data.Viewer.Homes[0].Consumption.Nodes
	out := make([]model.ConsumptionPoint, 0, len(nodes))
	for _, n := range nodes {
		from, errF := parseISO(n.From)
		to, errT := parseISO(n.To)
		if errF != nil || errT != nil {
			continue
		}
		p := model.ConsumptionPoint{From: from, To: to, Currency: n.Currency}
		if n.UnitPrice != nil {
			p.UnitPrice = *n.UnitPrice
		}
		if n.UnitPriceVAT != nil {
			p.UnitPriceVAT = *n.UnitPriceVAT
		}
		out = append(out, p)
	}
	c.log.Debug("tibber consumption fetched", "hours", hours, "nodes", len(out))
	return out, nil
}

func (c *TibberClient) query(ctx context.Context, body gqlRequest, out any) error {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.token).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", userAgent).
		SetBody(body).
		Post(c.baseURL)
	duration := time.Since(start)
	if err != nil {
		c.log.Warn("tibber request failed", "err", err, "duration", duration)
		return fmt.Errorf("tibber request: %w", err)
	}

	c.log.Debug("tibber response", "status", resp.StatusCode(), "duration", duration)

	switch resp.StatusCode() {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return &TibberError{
			StatusCode: resp.StatusCode(),
			Code:       "UNAUTHORIZED",
			Message:    "invalid API token or insufficient permissions",
		}
	case http.StatusTooManyRequests:
		return &TibberError{
			StatusCode: resp.StatusCode(),
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("rate limit exceeded, retry after: %s", resp.Header().Get("Retry-After")),
		}
	default:
		return &TibberError{
			StatusCode: resp.StatusCode(),
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	var env gqlEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode tibber response: %w", err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return &TibberError{Code: "GRAPHQL_ERROR", Message: "GraphQL errors: " + strings.Join(msgs, ", ")}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode tibber data: %w", err)
	}
	return nil
}

func (c *TibberClient) validateToken() error {
	if c.token == "" {
		return &TibberError{Code: "MISSING_TOKEN", Message: "API token is required"}
	}
	if len(c.token) < 10 {
		return &TibberError{Code: "INVALID_TOKEN_FORMAT", Message: "API token appears to be invalid (too short)"}
	}
	return nil
}

func toPoint(w wirePrice) model.PricePoint {
	p := model.PricePoint{
		Currency: w.Currency,
		Level:    model.PriceLevel(w.Level),
	}
	if w.Total != nil {
		p.Total = *w.Total
	}
	// An unparsable startsAt yields a zero timestamp; the tariff adjuster
	// skips such records with a warning instead of failing the batch.
	if ts, err := parseISO(w.StartsAt); err == nil {
		p.StartsAt = ts
	}
	return p
}

func toPoints(ws []wirePrice) []model.PricePoint {
	out := make([]model.PricePoint, 0, len(ws))
	for _, w := range ws {
		if w.Total == nil || w.StartsAt == "" {
			continue
		}
		out = append(out, toPoint(w))
	}
	return out
}

func parseISO(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05.000-07:00", s)
}
