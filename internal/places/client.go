package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"doof/internal/core/cache"
	"doof/internal/core/errs"
	"doof/internal/core/metrics"
)

// Place 文本检索的单条结果
type Place struct {
	PlaceID string  `json:"place_id"`
	Name    string  `json:"name"`
	Address string  `json:"formatted_address"`
	Lat     float64 `json:"latitude"`
	Lng     float64 `json:"longitude"`
}

// Details 详情，地址组件已拆好
type Details struct {
	Place
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Zipcode      string `json:"zipcode,omitempty"`
}

// Lookup 供 bulk add 与 handler 使用
type Lookup interface {
	Search(ctx context.Context, query string) ([]Place, error)
	Details(ctx context.Context, placeID string) (*Details, error)
}

type Options struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	RPS      float64
	CacheTTL time.Duration
}

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	cache    *cache.Cache
	cacheTTL time.Duration
}

func New(o Options, c *cache.Cache) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.RPS <= 0 {
		o.RPS = 5
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	return &Client{
		apiKey:   o.APIKey,
		baseURL:  strings.TrimRight(o.BaseURL, "/"),
		http:     &http.Client{Timeout: o.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(o.RPS), int(o.RPS)+1),
		cache:    c,
		cacheTTL: o.CacheTTL,
	}
}

type apiLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type apiResult struct {
	PlaceID          string `json:"place_id"`
	Name             string `json:"name"`
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location apiLocation `json:"location"`
	} `json:"geometry"`
	AddressComponents []struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
}

func (r apiResult) place() Place {
	return Place{
		PlaceID: r.PlaceID,
		Name:    r.Name,
		Address: r.FormattedAddress,
		Lat:     r.Geometry.Location.Lat,
		Lng:     r.Geometry.Location.Lng,
	}
}

type searchResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Results      []apiResult `json:"results"`
}

type detailsResponse struct {
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message"`
	Result       apiResult `json:"result"`
}

func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.BadRequest("query is required")
	}
	out, err := cache.GetOrLoadJSON(c.cache, ctx, "places:search:"+strings.ToLower(query), c.cacheTTL,
		func(ctx context.Context) (*[]Place, error) {
			var resp searchResponse
			if err := c.get(ctx, "textsearch", url.Values{"query": {query}, "type": {"restaurant"}}, &resp); err != nil {
				return nil, err
			}
			if err := checkStatus("textsearch", resp.Status, resp.ErrorMessage); err != nil {
				return nil, err
			}
			ps := make([]Place, 0, len(resp.Results))
			for _, r := range resp.Results {
				ps = append(ps, r.place())
			}
			return &ps, nil
		})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (c *Client) Details(ctx context.Context, placeID string) (*Details, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, errs.BadRequest("placeId is required")
	}
	return cache.GetOrLoadJSON(c.cache, ctx, "places:details:"+placeID, c.cacheTTL,
		func(ctx context.Context) (*Details, error) {
			var resp detailsResponse
			q := url.Values{
				"place_id": {placeID},
				"fields":   {"place_id,name,formatted_address,geometry,address_component"},
			}
			if err := c.get(ctx, "details", q, &resp); err != nil {
				return nil, err
			}
			if err := checkStatus("details", resp.Status, resp.ErrorMessage); err != nil {
				return nil, err
			}
			d := &Details{Place: resp.Result.place()}
			for _, comp := range resp.Result.AddressComponents {
				for _, t := range comp.Types {
					switch t {
					case "locality":
						d.City = comp.LongName
					case "sublocality", "sublocality_level_1":
						if d.City == "" {
							d.City = comp.LongName
						}
					case "neighborhood":
						d.Neighborhood = comp.LongName
					case "postal_code":
						d.Zipcode = comp.ShortName
					}
				}
			}
			return d, nil
		})
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	q.Set("key", c.apiKey)
	u := fmt.Sprintf("%s/%s/json?%s", c.baseURL, endpoint, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.PlacesRequests.WithLabelValues(endpoint, "error").Inc()
		return errs.Upstream("places request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.PlacesRequests.WithLabelValues(endpoint, "error").Inc()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.Upstream(fmt.Sprintf("places returned %d", resp.StatusCode), fmt.Errorf("%s", b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.PlacesRequests.WithLabelValues(endpoint, "error").Inc()
		return errs.Upstream("places response decode failed", err)
	}
	metrics.PlacesRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// checkStatus ZERO_RESULTS 不算错误
func checkStatus(endpoint, status, msg string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "NOT_FOUND", "INVALID_REQUEST":
		if endpoint == "details" {
			return errs.NotFound("place not found")
		}
	}
	if msg == "" {
		msg = status
	}
	return errs.Upstream("places: "+msg, nil)
}
