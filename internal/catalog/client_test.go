package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

const courseJSON = `{
  "id": "course-v1:edX+DemoX+Demo",
  "name": "Demo",
  "products": [
    {"id": 1, "product_class": "Course", "stockrecords": []},
    {"id": 2, "product_class": "Seat", "attribute_values": [{"name": "certificate_type", "value": "verified"}],
     "stockrecords": [{"id": 11, "price_excl_tax": "50.00"}]},
    {"id": 3, "product_class": "Seat", "attribute_values": [],
     "stockrecords": [{"id": 12, "price_excl_tax": "0.00"}]},
    {"id": 4, "product_class": "Seat", "attribute_values": [{"name": "certificate_type", "value": "credit"}],
     "stockrecords": [{"id": 13, "price_excl_tax": "200.00"}]},
    {"id": 5, "product_class": "Seat", "attribute_values": [{"name": "certificate_type", "value": "verified"}],
     "stockrecords": [{"id": 14, "price_excl_tax": "55.00"}]}
  ]
}`

func newCatalogServer(t *testing.T, hits *int32, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path == "/api/v2/courses/missing/" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "true", r.URL.Query().Get("include_products"))
		assert.Equal(t, "JWT token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSeatOfferings(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits, courseJSON)
	c := NewClient(Options{BaseURL: srv.URL + "/", Token: "token", CacheTTL: time.Minute})

	seats, err := c.SeatOfferings(context.Background(), "course-v1:edX+DemoX+Demo")
	require.NoError(t, err)
	assert.Equal(t, []models.SeatOffering{
		{DisplayName: "Verified", Price: 50, StockRecordIDs: []int{11, 14}},
		{DisplayName: "Audit", Price: 0, StockRecordIDs: []int{12}},
	}, seats)

	_, err = c.SeatOfferings(context.Background(), "course-v1:edX+DemoX+Demo")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "second lookup should be served from cache")

	c.Invalidate("course-v1:edX+DemoX+Demo")
	_, err = c.SeatOfferings(context.Background(), "course-v1:edX+DemoX+Demo")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestPurgeExpired(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits, courseJSON)
	c := NewClient(Options{BaseURL: srv.URL, Token: "token", CacheTTL: time.Millisecond})

	_, err := c.SeatOfferings(context.Background(), "course-v1:edX+DemoX+Demo")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, c.PurgeExpired())
	assert.Zero(t, c.PurgeExpired())
}

func TestSeatOfferingsNotFound(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits, courseJSON)
	c := NewClient(Options{BaseURL: srv.URL, Token: "token"})

	_, err := c.SeatOfferings(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = c.SeatOfferings(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestSeatOfferingsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.SeatOfferings(context.Background(), "ABC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSeatOfferingsSharesInFlightRequest(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write([]byte(courseJSON))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	results := make([][]models.SeatOffering, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seats, err := c.SeatOfferings(context.Background(), "ABC")
			assert.NoError(t, err)
			results[i] = seats
		}(i)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	for _, seats := range results {
		assert.Len(t, seats, 2)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"ascii", "VERIFIED", "Verified"},
		{"leading multibyte rune", "éTUDIANT", "Étudiant"},
		{"single rune", "ü", "Ü"},
		{"blank", "  ", auditSeat},
		{"not a string", 7, auditSeat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := product{AttributeValues: []attributeValue{{Name: certificateAttr, Value: tt.value}}}
			assert.Equal(t, tt.want, displayName(p))
		})
	}
	assert.Equal(t, auditSeat, displayName(product{}))
}

func TestLoadReferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "references.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalogs:
  - {id: "2", name: "Spring"}
  - {id: "1", name: " Autumn "}
enterprise_customers:
  - {id: "ent-1", name: "Acme"}
categories:
  - Partners
  - " Marketing "
`), 0o600))

	refs, err := LoadReferences(path)
	require.NoError(t, err)

	item, ok := refs.Catalog("1")
	require.True(t, ok)
	assert.Equal(t, models.RefItem{ID: "1", Name: "Autumn"}, item)
	assert.Equal(t, []models.RefItem{{ID: "1", Name: "Autumn"}, {ID: "2", Name: "Spring"}}, refs.Catalogs())

	_, ok = refs.EnterpriseCustomer("ent-2")
	assert.False(t, ok)
	assert.Len(t, refs.EnterpriseCustomers(), 1)

	assert.Equal(t, []string{"Marketing", "Partners"}, refs.Categories())
	assert.True(t, refs.HasCategory("Marketing"))
	assert.False(t, refs.HasCategory("marketing"))
}

func TestNewReferencesRejectsDuplicates(t *testing.T) {
	_, err := NewReferences([]models.RefItem{{ID: "1", Name: "a"}, {ID: "1", Name: "b"}}, nil)
	assert.Error(t, err)

	_, err = NewReferences(nil, []models.RefItem{{Name: "nameless"}})
	assert.Error(t, err)

	_, err = NewReferences(nil, nil, "Marketing", "Marketing")
	assert.Error(t, err)

	_, err = NewReferences(nil, nil, " ")
	assert.Error(t, err)
}
