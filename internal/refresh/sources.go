package refresh

import (
	"net/http"
	"net/url"

	"github.com/couchcryptid/region-data-service/internal/domain"
	"github.com/couchcryptid/region-data-service/internal/fetch"
	"github.com/couchcryptid/region-data-service/internal/normalize"
)

// Source describes where a category's data comes from and how to read it.
type Source struct {
	Category   domain.Category
	URL        string
	Method     string
	Body       []byte
	Headers    map[string]string
	Policy     fetch.RetryPolicy
	Normalizer normalize.Normalizer
}

func (s Source) request() fetch.Request {
	return fetch.Request{
		Method:  s.Method,
		URL:     s.URL,
		Body:    s.Body,
		Headers: s.Headers,
		Policy:  s.Policy,
	}
}

// PricesSource reads a delimited price feed with a GET.
func PricesSource(sourceURL string, n normalize.Normalizer, policy fetch.RetryPolicy) Source {
	return Source{
		Category:   domain.CategoryPrices,
		URL:        sourceURL,
		Method:     http.MethodGet,
		Policy:     policy,
		Normalizer: n,
	}
}

// SchoolsSource reads a delimited school extract with a GET.
func SchoolsSource(sourceURL string, n normalize.Normalizer, policy fetch.RetryPolicy) Source {
	return Source{
		Category:   domain.CategorySchools,
		URL:        sourceURL,
		Method:     http.MethodGet,
		Policy:     policy,
		Normalizer: n,
	}
}

// ParksSource POSTs an Overpass park query for bbox. Overpass rate limits
// aggressively, so 429s get the extended wait.
func ParksSource(sourceURL string, bbox normalize.BBox, n normalize.Normalizer, policy fetch.RetryPolicy) Source {
	policy.SpecialRetryFor429 = true
	form := url.Values{"data": {normalize.OverpassQuery(bbox)}}
	return Source{
		Category: domain.CategoryParks,
		URL:      sourceURL,
		Method:   http.MethodPost,
		Body:     []byte(form.Encode()),
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		},
		Policy:     policy,
		Normalizer: n,
	}
}
