package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Cheertaboi/coupon-form-service/internal/cache"
	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

var ErrCourseNotFound = errors.New("course not found")

const (
	seatProductClass = "Seat"
	certificateAttr  = "certificate_type"
	auditSeat        = "Audit"
)

// Client resolves course seat offerings from the catalog API. Concurrent
// lookups of the same course share one request and results are cached per
// course id.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger

	group singleflight.Group
	seats *cache.Cache[[]models.SeatOffering]
}

type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    hc,
		log:     logger.With("component", "catalog"),
		seats:   cache.New[[]models.SeatOffering](opts.CacheTTL),
	}
}

type courseResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Products []product `json:"products"`
}

type product struct {
	ID              int              `json:"id"`
	ProductClass    string           `json:"product_class"`
	Structure       string           `json:"structure"`
	AttributeValues []attributeValue `json:"attribute_values"`
	StockRecords    []stockRecord    `json:"stockrecords"`
}

type attributeValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type stockRecord struct {
	ID           int             `json:"id"`
	PriceExclTax decimal.Decimal `json:"price_excl_tax"`
}

// SeatOfferings returns the seats of courseID in catalog order, without the
// Credit seat. The returned slice must not be modified.
func (c *Client) SeatOfferings(ctx context.Context, courseID string) ([]models.SeatOffering, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("%w: empty course id", ErrCourseNotFound)
	}
	if seats, ok := c.seats.Get(courseID); ok {
		return seats, nil
	}

	v, err, shared := c.group.Do(courseID, func() (any, error) {
		seats, err := c.fetch(ctx, courseID)
		if err != nil {
			return nil, err
		}
		c.seats.Set(courseID, seats)
		return seats, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("seat lookup shared", "course_id", courseID)
	}
	return v.([]models.SeatOffering), nil
}

// Invalidate drops the cached seats of courseID.
func (c *Client) Invalidate(courseID string) {
	c.seats.Delete(courseID)
}

// PurgeExpired drops cached offerings past their TTL.
func (c *Client) PurgeExpired() int {
	return c.seats.Purge()
}

func (c *Client) fetch(ctx context.Context, courseID string) ([]models.SeatOffering, error) {
	endpoint := fmt.Sprintf("%s/api/v2/courses/%s/?include_products=true", c.baseURL, url.PathEscape(courseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build course request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "JWT "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch course %s: %w", courseID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch course %s: status %d: %s", courseID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var course courseResponse
	if err := json.NewDecoder(resp.Body).Decode(&course); err != nil {
		return nil, fmt.Errorf("decode course %s: %w", courseID, err)
	}
	seats := seatOfferings(course.Products)
	c.log.Debug("course seats fetched", "course_id", courseID, "seats", len(seats), "elapsed", time.Since(start))
	return seats, nil
}

// seatOfferings groups seat products by display name. Products of the same
// certificate type contribute their stock records to one offering priced by
// the first of them.
func seatOfferings(products []product) []models.SeatOffering {
	var (
		order  []string
		byName = make(map[string]*models.SeatOffering)
	)
	for _, p := range products {
		if p.ProductClass != seatProductClass || len(p.StockRecords) == 0 {
			continue
		}
		name := displayName(p)
		if name == models.SeatTypeCredit {
			continue
		}
		ids := lo.Map(p.StockRecords, func(sr stockRecord, _ int) int { return sr.ID })
		if offer, ok := byName[name]; ok {
			offer.StockRecordIDs = lo.Uniq(append(offer.StockRecordIDs, ids...))
			continue
		}
		price, _ := p.StockRecords[0].PriceExclTax.Float64()
		byName[name] = &models.SeatOffering{
			DisplayName:    name,
			Price:          price,
			StockRecordIDs: ids,
		}
		order = append(order, name)
	}
	return lo.Map(order, func(name string, _ int) models.SeatOffering { return *byName[name] })
}

func displayName(p product) string {
	attr, ok := lo.Find(p.AttributeValues, func(a attributeValue) bool { return a.Name == certificateAttr })
	if !ok {
		return auditSeat
	}
	s, _ := attr.Value.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return auditSeat
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
