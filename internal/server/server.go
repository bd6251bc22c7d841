package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/velibadmin/console/internal/backend"
	"github.com/velibadmin/console/internal/detail"
	"github.com/velibadmin/console/internal/mapview"
	"github.com/velibadmin/console/internal/models"
	"github.com/velibadmin/console/internal/session"
)

// Fixed user-facing error strings, matching the console's locale.
const (
	msgBadCredentials = "Identifiants incorrects"
	msgUpdateFailed   = "Erreur lors de la mise à jour"
	msgDeleteFailed   = "Erreur lors de la suppression"
)

// Authenticator is the slice of the backend the login flow depends on.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (string, error)
}

type Options struct {
	Gate        *session.Gate
	Auth        Authenticator
	View        mapview.Manager
	Popup       *detail.Controller
	MapboxToken string
}

// Server exposes the console state machine to the browser page. All
// state lives in the gate, the map view and the popup controller; the
// handlers only translate HTTP to operations on them.
type Server struct {
	gate        *session.Gate
	auth        Authenticator
	view        mapview.Manager
	popup       *detail.Controller
	hub         *Hub
	mapboxToken string
	loginBusy   atomic.Bool
	router      *gin.Engine
}

func New(opts Options) *Server {
	s := &Server{
		gate:        opts.Gate,
		auth:        opts.Auth,
		view:        opts.View,
		popup:       opts.Popup,
		hub:         newHub(),
		mapboxToken: opts.MapboxToken,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the HTTP handler for the console.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start launches the hub and the state watcher; both exit with the
// context.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	go s.watchChanges(ctx)
}

// Snapshot is the full console state as one broadcastable unit.
type Snapshot struct {
	Session  session.State    `json:"session"`
	Viewport models.Viewport  `json:"viewport"`
	Stations []models.Station `json:"stations"`
	Selected *models.Station  `json:"selected,omitempty"`
	Editing  bool             `json:"editing"`
	Draft    *detail.Draft    `json:"draft,omitempty"`
	Notice   string           `json:"notice,omitempty"`
	Loading  bool             `json:"loading"`
	MapReady bool             `json:"map_ready"`
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{
		Session:  s.gate.State(),
		Viewport: s.view.Viewport(),
		Stations: s.view.Stations(),
		Notice:   string(s.view.Notice()),
		Loading:  s.view.Loading(),
		MapReady: s.mapboxToken != "",
	}

	if station, open := s.popup.Station(); open {
		selected := station
		snap.Selected = &selected
		snap.Editing = s.popup.Editing()
		if snap.Editing {
			draft := s.popup.Draft()
			snap.Draft = &draft
		}
	}
	return snap
}

// watchChanges turns manager events into websocket pushes, and performs
// the deterministic reset that replaces the original full page reload
// when the session drops.
func (s *Server) watchChanges(ctx context.Context) {
	viewEvents := s.view.Subscribe()
	gateEvents := s.gate.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-gateEvents:
			if state == session.StateUnauthenticated {
				s.view.Reset()
				s.popup.Close()
			}
			s.broadcastSnapshot()
		case <-viewEvents:
			s.broadcastSnapshot()
		}
	}
}

func (s *Server) broadcastSnapshot() {
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		log.Error().Err(err).Msg("encoding state snapshot")
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/", s.handleIndex)
	router.GET("/health", s.handleHealth)

	console := router.Group("/console")
	console.POST("/login", s.handleLogin)
	console.GET("/state", s.handleState)
	console.GET("/ws", s.handleWS)

	authed := console.Group("")
	authed.Use(s.requireSession())
	authed.POST("/logout", s.handleLogout)
	authed.POST("/viewport", s.handleViewport)
	authed.POST("/search", s.handleSearch)
	authed.POST("/select", s.handleSelect)
	authed.POST("/deselect", s.handleDeselect)
	authed.POST("/edit", s.handleEdit)
	authed.POST("/cancel", s.handleCancel)
	authed.POST("/save", s.handleSave)
	authed.POST("/delete", s.handleDelete)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.gate.State() != session.StateAuthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"session":    s.gate.State(),
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleLogin(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	// One login at a time, mirroring the disabled submit button.
	if !s.loginBusy.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "login already in flight"})
		return
	}
	defer s.loginBusy.Store(false)

	token, err := s.auth.Login(c.Request.Context(), creds)
	if err != nil {
		// Network failures and rejections read the same to the user.
		log.Warn().Err(err).Str("username", creds.Username).Msg("login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadCredentials})
		return
	}

	if err := s.gate.Login(token); err != nil {
		log.Error().Err(err).Msg("persisting session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist session"})
		return
	}

	s.broadcastSnapshot()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleLogout(c *gin.Context) {
	s.view.Reset()
	s.popup.Close()
	if err := s.gate.Logout(); err != nil {
		log.Error().Err(err).Msg("logout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear session"})
		return
	}

	s.broadcastSnapshot()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleViewport(c *gin.Context) {
	var vp models.Viewport
	if err := c.ShouldBindJSON(&vp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid viewport"})
		return
	}

	s.view.SetViewport(vp)
	c.JSON(http.StatusAccepted, s.snapshot())
}

func (s *Server) handleSearch(c *gin.Context) {
	var body struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search request"})
		return
	}

	if err := s.view.SearchAddress(c.Request.Context(), body.Address); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrAddressNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": string(mapview.NoticeAddressNotFound)})
		return
	}

	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleSelect(c *gin.Context) {
	var body struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection"})
		return
	}

	if !s.view.Select(body.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not visible"})
		return
	}

	station, _ := s.view.Selected()
	s.popup.Open(station)
	s.broadcastSnapshot()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleDeselect(c *gin.Context) {
	s.view.Deselect()
	s.popup.Close()
	s.broadcastSnapshot()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleEdit(c *gin.Context) {
	if !s.popup.StartEdit() {
		c.JSON(http.StatusConflict, gin.H{"error": "no station selected"})
		return
	}
	s.broadcastSnapshot()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleCancel(c *gin.Context) {
	s.popup.Cancel()
	s.broadcastSnapshot()
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleSave(c *gin.Context) {
	var draft detail.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draft"})
		return
	}

	// The draft only exists inside an edit session; a stray save must
	// not overwrite it before being rejected.
	if !s.popup.Editing() {
		c.JSON(http.StatusConflict, gin.H{"error": detail.ErrNotEditing.Error()})
		return
	}

	s.popup.SetDraft(draft)
	updated, err := s.popup.Save(c.Request.Context())
	if err != nil {
		if errors.Is(err, detail.ErrNotEditing) || errors.Is(err, detail.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": msgUpdateFailed})
		return
	}

	s.view.ApplyUpdate(updated)
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleDelete(c *gin.Context) {
	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delete request"})
		return
	}

	station, open := s.popup.Station()
	if !open {
		c.JSON(http.StatusConflict, gin.H{"error": "no station selected"})
		return
	}

	deleted, err := s.popup.Delete(c.Request.Context(), body.Confirm)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": msgDeleteFailed})
		return
	}
	if !deleted {
		// Confirmation declined: nothing happened, nothing changes.
		c.JSON(http.StatusOK, gin.H{"deleted": false})
		return
	}

	s.view.ApplyDelete(station.ID)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  s.hub,
	}
	s.hub.register <- client

	// Seed the page with the current state right away.
	if data, err := json.Marshal(s.snapshot()); err == nil {
		client.send <- data
	}

	go client.writePump()
	go client.readPump()
}
