package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTenantWithoutParamsReturnsUsage(t *testing.T) {
	srv := &server{}

	for _, target := range []string{
		"/api/create_tenant",
		"/api/create_tenant?tenant=acme",
		"/api/create_tenant?tenant=acme&dataproduct=orders",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		srv.handleCreateTenant(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "missing params answer with usage, not an error")
		assert.Contains(t, rec.Body.String(), "dataproduct_version=")
	}
}
