package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windowRequest struct {
	Prices []float64 `json:"prices" validate:"len=3"`
	Days   int       `json:"days" default:"2" validate:"gt=0,lte=5"`
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c, _ := newContext(`{"prices":[1,2,3]}`)
	var req windowRequest
	require.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, 2, req.Days)
}

func TestReadAndValidateRequestReportsJSONFieldNames(t *testing.T) {
	c, _ := newContext(`{"prices":[1,2],"days":9}`)
	var req windowRequest
	verrs := ReadAndValidateRequest(c, &req)
	require.Len(t, verrs, 2)
	assert.Equal(t, "prices", verrs[0].Field)
	assert.Equal(t, "ERR_LEN", verrs[0].Code)
	assert.Equal(t, "prices must contain exactly 3 values", verrs[0].Message)
	assert.Equal(t, "days", verrs[1].Field)
	assert.Equal(t, "ERR_LTE", verrs[1].Code)
}

func TestReadAndValidateRequestRejectsMalformedJSON(t *testing.T) {
	c, _ := newContext(`{"prices":`)
	var req windowRequest
	verrs := ReadAndValidateRequest(c, &req)
	require.Len(t, verrs, 1)
	assert.Equal(t, "ERR_MALFORMED", verrs[0].Code)
}

func TestValidateReturnsReadableErrors(t *testing.T) {
	req := windowRequest{Prices: []float64{1}}
	err := Validate(&req)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "prices must contain exactly 3 values", err.Error())
	assert.Equal(t, 2, req.Days)
}

func TestAppErrorResponseWritesStatus(t *testing.T) {
	c, rec := newContext("")
	require.NoError(t, AppErrorResponse(c, ServiceUnavailableError("model unavailable")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusServiceUnavailable, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_SERVICE_UNAVAILABLE", body.Data[0].Code)
}

func TestServerRendersUnknownRouteAsAppError(t *testing.T) {
	s := NewServer(nil, WithCORS(false))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestServerAppliesCORS(t *testing.T) {
	s := NewServer(nil, WithCORS(true, "http://app.test"))
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(echo.HeaderOrigin, "http://app.test")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "http://app.test", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, "ERR_SERVICE_UNAVAILABLE", CodeForStatus(http.StatusServiceUnavailable))
	assert.Equal(t, "ERR_HTTP", CodeForStatus(http.StatusTeapot))
	assert.Equal(t, http.StatusNotFound, NotFoundError("x").Status)
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stockcast-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"close":[1.5,2.5]}`))
		case "/busy":
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithHeader("User-Agent", "stockcast-test"))
	query := map[string][]string{"interval": {"1d"}}

	var got struct {
		Close []float64 `json:"close"`
	}
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/ok", QueryParams: query}, &got))
	assert.Equal(t, []float64{1.5, 2.5}, got.Close)

	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/busy", QueryParams: query}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Temporary())
	assert.Equal(t, 3*time.Second, se.RetryAfter)

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL + "/missing", QueryParams: query}, nil)
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Temporary())
}

func TestServerOptionsWireEcho(t *testing.T) {
	reg := prometheus.NewRegistry()
	var hits int
	s := NewServer(nil,
		WithHost("127.0.0.1"),
		WithPort(9099),
		WithTimeouts(3*time.Second, 0, time.Second),
		WithCORS(false),
		WithLogger(nil),
		WithMetrics("/metrics", reg, time.Minute),
		WithMiddleware(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				hits++
				return next(c)
			}
		}),
	)
	assert.Equal(t, "127.0.0.1:9099", s.Addr())
	assert.Equal(t, 3*time.Second, s.Echo().Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, s.Echo().Server.WriteTimeout)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, hits)
}

func TestAppErrorConstructorsCarryStatusCodes(t *testing.T) {
	cases := map[int]*AppError{
		http.StatusNotFound:            NotFoundError("x"),
		http.StatusBadRequest:          BadRequestError("x"),
		http.StatusServiceUnavailable:  ServiceUnavailableError("x"),
		http.StatusInternalServerError: InternalError("x"),
	}
	for status, err := range cases {
		assert.Equal(t, status, err.Status)
		assert.Equal(t, CodeForStatus(status), err.Code)
	}
}
