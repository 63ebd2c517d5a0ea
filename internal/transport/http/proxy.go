package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/Skotchmaster/agromarket/internal/apiclient"
	"github.com/Skotchmaster/agromarket/internal/logging"
)

const apiPrefix = "/api"

// newAPIProxy passes raw /api calls through to the marketplace backend.
// backendURL already ends in the backend's API root, so /api/products on this
// server reaches <backendURL>/products.
func newAPIProxy(backendURL string) (echo.HandlerFunc, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}

	p := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			pr.Out.URL.RawPath = strings.TrimPrefix(pr.In.URL.RawPath, apiPrefix)
			pr.SetURL(target)
			pr.SetXForwarded()
			// the backend authenticates with bearer tokens; our cookies stay here
			pr.Out.Header.Del("Cookie")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.FromContext(r.Context()).Warn("api_proxy_failed", "path", r.URL.Path, "error", err)
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(apiclient.APIError{
				Status:  http.StatusBadGateway,
				Message: "Marketplace backend is unavailable",
				Path:    r.URL.Path,
			})
		},
	}

	return func(c echo.Context) error {
		p.ServeHTTP(c.Response(), c.Request())
		return nil
	}, nil
}
