package leads

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	dateLayout      = "2006-01-02"
)

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortBuyerName SortField = "buyerName"
	SortSite      SortField = "site"
	SortUpdatedAt SortField = "updatedAt"
)

var sortColumns = map[SortField]string{
	SortCreatedAt: "created_at",
	SortBuyerName: "buyer_name",
	SortSite:      "site",
	SortUpdatedAt: "updated_at",
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter is the fixed filter set shared by listing and stats.
type Filter struct {
	Search           string
	Site             string
	DateFrom         *time.Time // inclusive, start of day UTC
	DateTo           *time.Time // inclusive, start of day UTC
	PurchaseTimeline models.PurchaseTimeline
	PriceRange       models.PriceRange
	Synced           *bool
}

type ListParams struct {
	Filter
	Page      int
	PageSize  int
	SortBy    SortField
	SortOrder SortOrder
}

// DefaultListParams is the first page of the newest-first feed.
func DefaultListParams() ListParams {
	return ListParams{
		Page:      1,
		PageSize:  DefaultPageSize,
		SortBy:    SortCreatedAt,
		SortOrder: SortDesc,
	}
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Validate checks values set directly rather than parsed from a query.
func (p ListParams) Validate() error {
	verr := &ValidationError{}
	if p.Page < 1 {
		verr.add("page", "must be at least 1")
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		verr.add("page_size", "must be between 1 and 100")
	}
	if _, ok := sortColumns[p.SortBy]; !ok {
		verr.add("sort_by", "must be one of createdAt, buyerName, site, updatedAt")
	}
	if p.SortOrder != SortAsc && p.SortOrder != SortDesc {
		verr.add("sort_order", "must be asc or desc")
	}
	p.Filter.validate(verr)
	return verr.orNil()
}

func (f Filter) validate(verr *ValidationError) {
	if f.PurchaseTimeline != "" {
		if _, ok := models.ParsePurchaseTimeline(string(f.PurchaseTimeline)); !ok {
			verr.add("purchase_timeline", "unknown value")
		}
	}
	if f.PriceRange != "" {
		if _, ok := models.ParsePriceRange(string(f.PriceRange)); !ok {
			verr.add("price_range", "unknown value")
		}
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		verr.add("date_to", "must not be before date_from")
	}
}

// ParseListParams reads listing parameters from a query string. Both
// snake_case and camelCase names are accepted.
func ParseListParams(v url.Values) (ListParams, error) {
	p := DefaultListParams()
	verr := &ValidationError{}

	p.Filter = parseFilter(v, verr)

	if s := get(v, "page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			verr.add("page", "must be a positive integer")
		} else {
			p.Page = n
		}
	}
	if s := get(v, "page_size", "pageSize", "per_page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxPageSize {
			verr.add("page_size", "must be between 1 and 100")
		} else {
			p.PageSize = n
		}
	}
	if s := get(v, "sort_by", "sortBy"); s != "" {
		if _, ok := sortColumns[SortField(s)]; !ok {
			verr.add("sort_by", "must be one of createdAt, buyerName, site, updatedAt")
		} else {
			p.SortBy = SortField(s)
		}
	}
	if s := get(v, "sort_order", "sortOrder"); s != "" {
		switch o := SortOrder(strings.ToLower(s)); o {
		case SortAsc, SortDesc:
			p.SortOrder = o
		default:
			verr.add("sort_order", "must be asc or desc")
		}
	}

	if err := verr.orNil(); err != nil {
		return ListParams{}, err
	}
	return p, nil
}

// ParseFilter reads only the filter part, for stats.
func ParseFilter(v url.Values) (Filter, error) {
	verr := &ValidationError{}
	f := parseFilter(v, verr)
	if err := verr.orNil(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseFilter(v url.Values, verr *ValidationError) Filter {
	f := Filter{
		Search: strings.TrimSpace(get(v, "search", "q")),
		Site:   strings.TrimSpace(get(v, "site")),
	}

	if s := get(v, "date_from", "dateFrom"); s != "" {
		if d, err := time.ParseInLocation(dateLayout, s, time.UTC); err != nil {
			verr.add("date_from", "must be YYYY-MM-DD")
		} else {
			f.DateFrom = &d
		}
	}
	if s := get(v, "date_to", "dateTo"); s != "" {
		if d, err := time.ParseInLocation(dateLayout, s, time.UTC); err != nil {
			verr.add("date_to", "must be YYYY-MM-DD")
		} else {
			f.DateTo = &d
		}
	}
	if s := get(v, "purchase_timeline", "purchaseTimeline"); s != "" {
		f.PurchaseTimeline = models.PurchaseTimeline(s)
	}
	if s := get(v, "price_range", "priceRange"); s != "" {
		f.PriceRange = models.PriceRange(s)
	}
	if s := get(v, "synced"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			verr.add("synced", "must be true or false")
		} else {
			f.Synced = &b
		}
	}

	f.validate(verr)
	return f
}

func get(v url.Values, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k); s != "" {
			return s
		}
	}
	return ""
}

// Page is one page of a listing plus the size of the full match set.
type Page struct {
	Items      []models.Lead `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

func totalPages(total int64, pageSize int) int {
	if total == 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
