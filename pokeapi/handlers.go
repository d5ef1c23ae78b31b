package pokeapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/seb7887/gofw/ginsrv"
	"github.com/seb7887/gofw/httpx"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/wp"
)

// Handlers exposes one Client per transport backend under /api/:backend.
// Upstream failures are attached with c.Error and rendered by
// ginsrv.ErrorFormatterMiddleware.
type Handlers struct {
	clients map[settings.Backend]*Client
}

func NewHandlers(clients map[settings.Backend]*Client) *Handlers {
	return &Handlers{clients: clients}
}

// FromRegistry wraps the first registered client of each backend, in name
// order.
func FromRegistry(reg *httpx.Registry, pool *wp.Pool) *Handlers {
	clients := make(map[settings.Backend]*Client)
	for _, name := range reg.Names() {
		c, err := reg.Client(name)
		if err != nil {
			continue
		}
		if _, taken := clients[c.Backend()]; !taken {
			clients[c.Backend()] = New(c, pool)
		}
	}
	return NewHandlers(clients)
}

// Backends returns the backends that have a client, sorted.
func (h *Handlers) Backends() []string {
	names := lo.Map(lo.Keys(h.clients), func(b settings.Backend, _ int) string { return string(b) })
	slices.Sort(names)
	return names
}

func (h *Handlers) Routes() []ginsrv.Route {
	return []ginsrv.Route{
		{Method: http.MethodGet, Path: "/api/:backend/pokemon/:name", Handler: h.getByName},
		{Method: http.MethodGet, Path: "/api/:backend/pokemon", Handler: h.list},
		{Method: http.MethodGet, Path: "/api/:backend/batch", Handler: h.getMany},
		{Method: http.MethodPost, Path: "/api/:backend/login", Handler: h.login},
	}
}

func (h *Handlers) client(c *gin.Context) (*Client, bool) {
	backend, err := settings.ParseBackend(c.Param("backend"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return nil, false
	}
	client, ok := h.clients[backend]
	if !ok {
		c.Status(http.StatusNotFound)
		return nil, false
	}
	return client, true
}

func (h *Handlers) getByName(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	p, err := client.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) list(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	limit, err := queryInt(c, "limit", DefaultPageSize)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	page, err := client.List(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) getMany(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	names := strings.Split(c.Query("names"), ",")
	found, err := client.GetMany(c.Request.Context(), names)
	if err != nil && len(found) == 0 {
		_ = c.Error(err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusPartialContent
	}
	c.JSON(status, found)
}

func (h *Handlers) login(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	session, err := client.Login(c.Request.Context(), creds)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
