package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(roles []string) (*echo.Echo, *http.Request) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	return e, req.WithContext(ctx)
}

func probeWithRole(roles []string, required ...string) int {
	e, req := requestWithRoles(roles)
	e.GET("/probe", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RequireRole(required...))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireRole_Allows(t *testing.T) {
	if code := probeWithRole([]string{"technician"}, "technician"); code != http.StatusOK {
		t.Errorf("expected 200 for matching role, got %d", code)
	}
	if code := probeWithRole([]string{"viewer", "technician"}, "technician", "supervisor"); code != http.StatusOK {
		t.Errorf("expected 200 when any required role matches, got %d", code)
	}
}

func TestRequireRole_AdminPassesEverything(t *testing.T) {
	if code := probeWithRole([]string{"admin"}, "technician"); code != http.StatusOK {
		t.Errorf("expected admin to pass, got %d", code)
	}
}

func TestRequireRole_Denies(t *testing.T) {
	if code := probeWithRole([]string{"viewer"}, "technician"); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
	if code := probeWithRole(nil, "technician"); code != http.StatusForbidden {
		t.Errorf("expected 403 with no roles, got %d", code)
	}
}

func TestHasRole(t *testing.T) {
	e, req := requestWithRoles([]string{"admin", "technician"})
	c := e.NewContext(req, httptest.NewRecorder())
	if !HasRole(c, "admin") {
		t.Error("expected admin role to be present")
	}
	if HasRole(c, "supervisor") {
		t.Error("did not expect supervisor role")
	}
}
