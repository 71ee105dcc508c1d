package activity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestListByOrgRejectsBadOrgID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/organizations/:orgId/activity", NewHandler(nil).ListByOrg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations/not-a-uuid/activity", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
