package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ardnew/usbmidi/bridge"
	"github.com/ardnew/usbmidi/config"
	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/route"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

// Backend is the runtime the API exposes.
type Backend interface {
	Router() *route.Router
	Stats() bridge.Stats
	Display() []string
	Inject(ctx context.Context, b route.Binding, packets []midi.Packet) error
}

// Server serves the HTTP API.
type Server struct {
	backend Backend
	engine  *gin.Engine
}

// New returns a server for backend.
func New(backend Backend) *Server {
	s := &Server{backend: backend, engine: gin.New()}
	s.engine.Use(gin.Recovery(), logRequests())

	s.engine.GET("/health", s.health)
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/routes", s.listRoutes)
		v1.POST("/routes", s.addRoute)
		v1.DELETE("/routes/:handle", s.deleteRoute)
		v1.GET("/stats", s.stats)
		v1.GET("/display", s.display)
		v1.POST("/send", s.send)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errc := make(chan error, 1)
	go func() {
		pkg.LogInfo(pkg.ComponentAPI, "listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		pkg.LogDebug(pkg.ComponentAPI, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// status maps a routing error to an HTTP status.
func status(err error) int {
	switch {
	case errors.Is(err, pkg.ErrUnknownRoute), errors.Is(err, pkg.ErrUnknownInterface):
		return http.StatusNotFound
	case errors.Is(err, pkg.ErrInvalidRoute), errors.Is(err, pkg.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, pkg.ErrFilterRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pkg.ErrNotRunning), errors.Is(err, pkg.ErrQueueFull),
		errors.Is(err, pkg.ErrNoDevice):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "usbmidi",
	})
}

// RouteInfo describes a registered route.
type RouteInfo struct {
	Handle      route.Handle `json:"handle"`
	Name        string       `json:"name,omitempty"`
	Source      string       `json:"source,omitempty"`
	Destination string       `json:"destination,omitempty"`
	Filters     int          `json:"filters"`
}

func info(e route.Entry) RouteInfo {
	ri := RouteInfo{Handle: e.Handle, Name: e.Route.Name, Filters: len(e.Route.Filters)}
	if e.Route.Source != nil {
		ri.Source = e.Route.Source.String()
	}
	if e.Route.Destination != nil {
		ri.Destination = e.Route.Destination.String()
	}
	return ri
}

func (s *Server) listRoutes(c *gin.Context) {
	entries := s.backend.Router().Routes()
	out := make([]RouteInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, info(e))
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}

func (s *Server) addRoute(c *gin.Context) {
	var rc config.Route
	if err := c.ShouldBindJSON(&rc); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	r, err := rc.Build()
	if err != nil {
		fail(c, status(err), err)
		return
	}
	h, err := s.backend.Router().AddRoute(r)
	if err != nil {
		fail(c, status(err), err)
		return
	}
	pkg.LogInfo(pkg.ComponentAPI, "route added", "handle", h, "route", r)
	c.JSON(http.StatusCreated, info(route.Entry{Handle: h, Route: r}))
}

func (s *Server) deleteRoute(c *gin.Context) {
	n, err := strconv.ParseUint(c.Param("handle"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("handle %q: %w", c.Param("handle"), pkg.ErrInvalidParameter))
		return
	}
	if err := s.backend.Router().RemoveRoute(route.Handle(n)); err != nil {
		fail(c, status(err), err)
		return
	}
	pkg.LogInfo(pkg.ComponentAPI, "route removed", "handle", n)
	c.Status(http.StatusNoContent)
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Stats())
}

func (s *Server) display(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lines": s.backend.Display()})
}

// SendRequest injects packets into the router. Packets are 8-digit hex
// USB-MIDI event packets; Raw is a hex MIDI byte stream encoded on Cable.
type SendRequest struct {
	Binding   string   `json:"binding"`
	Interface string   `json:"interface" binding:"required"`
	Packets   []string `json:"packets"`
	Raw       string   `json:"raw"`
	Cable     uint8    `json:"cable"`
}

// ParsePacket parses an 8-digit hex event packet.
func ParsePacket(s string) (midi.Packet, error) {
	var p midi.Packet
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != midi.PacketSize {
		return p, fmt.Errorf("packet %q: %w", s, pkg.ErrInvalidParameter)
	}
	copy(p[:], b)
	return p, nil
}

// ParseHex decodes hex bytes, ignoring spaces.
func ParseHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("hex %q: %w", s, pkg.ErrInvalidParameter)
	}
	return b, nil
}

func (req SendRequest) packets() ([]midi.Packet, error) {
	out := make([]midi.Packet, 0, len(req.Packets))
	for _, s := range req.Packets {
		p, err := ParsePacket(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if req.Raw != "" {
		data, err := ParseHex(req.Raw)
		if err != nil {
			return nil, err
		}
		packets, err := midi.Decode(req.Cable, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pkg.ErrInvalidParameter, err)
		}
		out = append(out, packets...)
	}
	return out, nil
}

func (s *Server) send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	b, err := route.ParseBinding(req.Binding, req.Interface)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	packets, err := req.packets()
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if len(packets) == 0 {
		fail(c, http.StatusBadRequest, fmt.Errorf("no packets: %w", pkg.ErrInvalidParameter))
		return
	}
	if err := s.backend.Inject(c.Request.Context(), b, packets); err != nil {
		fail(c, status(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": len(packets)})
}
