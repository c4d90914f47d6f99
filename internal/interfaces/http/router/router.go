package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Module is one resource of the ledger API: a path prefix, the middleware
// guarding it and its routes. Modules are declared up front and mounted
// onto a gin group in one pass.
type Module struct {
	Name   string
	Prefix string

	guards  []gin.HandlerFunc
	routes  []route
	modules []*Module
}

type route struct {
	method string
	path   string
	chain  []gin.HandlerFunc
}

func NewModule(name, prefix string) *Module {
	return &Module{Name: name, Prefix: prefix}
}

// Guard adds middleware that runs before every route of m and its submodules
func (m *Module) Guard(mw ...gin.HandlerFunc) *Module {
	m.guards = append(m.guards, mw...)
	return m
}

// Handle adds a route; chain is any route-level middleware followed by the handler
func (m *Module) Handle(method, path string, chain ...gin.HandlerFunc) *Module {
	m.routes = append(m.routes, route{method: method, path: path, chain: chain})
	return m
}

func (m *Module) GET(path string, chain ...gin.HandlerFunc) *Module {
	return m.Handle(http.MethodGet, path, chain...)
}

func (m *Module) POST(path string, chain ...gin.HandlerFunc) *Module {
	return m.Handle(http.MethodPost, path, chain...)
}

func (m *Module) DELETE(path string, chain ...gin.HandlerFunc) *Module {
	return m.Handle(http.MethodDelete, path, chain...)
}

// Sub adds a nested module under m's prefix and returns it
func (m *Module) Sub(name, prefix string) *Module {
	sub := NewModule(name, prefix)
	m.modules = append(m.modules, sub)
	return sub
}

func (m *Module) mount(parent *gin.RouterGroup) {
	g := parent.Group(m.Prefix, m.guards...)
	for _, r := range m.routes {
		g.Handle(r.method, r.path, r.chain...)
	}
	for _, sub := range m.modules {
		sub.mount(g)
	}
}

// Mount attaches modules under /api/<version> with mw in front of all of them
func Mount(engine *gin.Engine, version string, mw []gin.HandlerFunc, modules ...*Module) {
	api := engine.Group("/api/"+version, mw...)
	for _, m := range modules {
		if m != nil {
			m.mount(api)
		}
	}
}
