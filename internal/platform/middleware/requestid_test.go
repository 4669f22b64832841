package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestID_Generates(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error {
		if c.Get("request_id") == "" {
			t.Error("expected request_id in echo context")
		}
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id in response header")
	}
}

func TestGetRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = GetRequestID(c)
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Error("expected a request id from GetRequestID")
	}
	if seen != rec.Header().Get(RequestIDHeader) {
		t.Error("expected GetRequestID to match the response header")
	}

	// Without the middleware installed the accessor degrades to empty.
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if got := GetRequestID(c); got != "" {
		t.Errorf("expected empty id without middleware, got %q", got)
	}
}

func TestRequestID_HonorsIncoming(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "trace-abc-123" {
		t.Errorf("expected caller-supplied id echoed back, got %q", got)
	}
}
