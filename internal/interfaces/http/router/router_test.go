package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func serve(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.Prefix())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.Prefix())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	contacts := NewDomainGroup("crm", "/contacts").GET("", ok("contacts"))
	cases := NewDomainGroup("taxcase", "/cases").GET("/:id", ok("case"))

	NewRouter(engine).Register(contacts).Register(cases).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/contacts")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "contacts", w.Body.String())
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/cases/42").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/contacts").Code)
}

func TestRouterMiddlewareOrder(t *testing.T) {
	engine := gin.New()
	var order []string
	mark := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			order = append(order, name)
			c.Next()
		}
	}

	g := NewDomainGroup("test", "/test").Use(mark("group"))
	g.GET("/x", mark("route"), ok("x"))
	NewRouter(engine).Use(mark("api")).Register(g).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/test/x").Code)
	assert.Equal(t, []string{"api", "group", "route"}, order)
}

func TestDomainGroupMethods(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test")
	g.GET("/a", ok("a")).
		POST("/a", ok("b")).
		PUT("/a/:id", ok("c")).
		PATCH("/a/:id", ok("d")).
		DELETE("/a/:id", ok("e")).
		Handle(http.MethodOptions, "/a", ok("f"))
	g.RegisterRoutes(engine.Group("/api/v1"))

	tests := []struct {
		method, target, body string
	}{
		{http.MethodGet, "/api/v1/test/a", "a"},
		{http.MethodPost, "/api/v1/test/a", "b"},
		{http.MethodPut, "/api/v1/test/a/1", "c"},
		{http.MethodPatch, "/api/v1/test/a/1", "d"},
		{http.MethodDelete, "/api/v1/test/a/1", "e"},
		{http.MethodOptions, "/api/v1/test/a", "f"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := serve(engine, tt.method, tt.target)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestDomainGroupSubgroups(t *testing.T) {
	engine := gin.New()
	portal := NewDomainGroup("portal", "/portal")
	portal.Use(func(c *gin.Context) {
		c.Header("X-Realm", "portal")
		c.Next()
	})
	portal.Group("chat", "/chat").GET("/messages", ok("messages"))
	portal.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/portal/chat/messages")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "portal", w.Header().Get("X-Realm"))
}

func TestDomainGroupRoutes(t *testing.T) {
	g := NewDomainGroup("billing", "/invoices")
	g.GET("", ok("")).POST("", ok("")).GET("/:id", ok(""))
	g.Group("payments", "/:id/payments").POST("", ok(""))

	assert.Equal(t, []RouteInfo{
		{Group: "billing", Method: http.MethodGet, Path: "/api/v1/invoices"},
		{Group: "billing", Method: http.MethodPost, Path: "/api/v1/invoices"},
		{Group: "billing", Method: http.MethodGet, Path: "/api/v1/invoices/:id"},
		{Group: "payments", Method: http.MethodPost, Path: "/api/v1/invoices/:id/payments"},
	}, g.Routes("/api/v1"))
	assert.Equal(t, "billing", g.Name())
	assert.Equal(t, "/invoices", g.Prefix())
}
