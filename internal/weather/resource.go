package weather

import (
	"net/url"
	"strings"
)

// Resource describes one kind of upstream data. Params are the client
// supplied query parameters, in the order they appear in the cache key.
type Resource struct {
	Name string
	Path string
	// StationScoped resources are queried with the configured station id.
	StationScoped bool
	Params        []string
	Query         url.Values
}

var (
	Current = Resource{
		Name:          "current",
		Path:          "/v2/pws/observations/current",
		StationScoped: true,
		Query: url.Values{
			"format":           {"json"},
			"numericPrecision": {"decimal"},
		},
	}

	Forecast = Resource{
		Name:   "forecast",
		Path:   "/v3/wx/forecast/daily/5day",
		Params: []string{"geocode", "language"},
		Query: url.Values{
			"format": {"json"},
		},
	}
)

// Key derives the cache key for the given parameter values. Values are
// used verbatim.
func (r Resource) Key(values ...string) string {
	if len(values) == 0 {
		return r.Name
	}
	return r.Name + "_" + strings.Join(values, "_")
}
