package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteSet is a list of routes that share middleware. Every set is mounted
// at the root; sets differ only in what runs before their handlers.
type RouteSet struct {
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteSet creates an empty set
func NewRouteSet() *RouteSet {
	return &RouteSet{}
}

// Use appends middleware that runs for this set's routes only
func (s *RouteSet) Use(middleware ...gin.HandlerFunc) *RouteSet {
	s.middleware = append(s.middleware, middleware...)
	return s
}

// GET adds a GET route
func (s *RouteSet) GET(path string, handlers ...gin.HandlerFunc) *RouteSet {
	return s.handle(http.MethodGet, path, handlers)
}

// POST adds a POST route
func (s *RouteSet) POST(path string, handlers ...gin.HandlerFunc) *RouteSet {
	return s.handle(http.MethodPost, path, handlers)
}

func (s *RouteSet) handle(method, path string, handlers []gin.HandlerFunc) *RouteSet {
	s.routes = append(s.routes, route{method: method, path: path, handlers: handlers})
	return s
}

// Mount registers sets on engine, each in its own group
func Mount(engine *gin.Engine, sets ...*RouteSet) {
	for _, s := range sets {
		group := engine.Group("/", s.middleware...)
		for _, r := range s.routes {
			group.Handle(r.method, r.path, r.handlers...)
		}
	}
}
