// Package rpc implements the local control plane (spec section 6.1): a
// JSON-over-HTTP API fronted by gin, one route per verb. The teacher's
// domain dependency set did not include an HTTP framework, so this
// layer is grounded on the pack's chatee-go example, which uses
// gin-gonic/gin for its own JSON API and google/uuid for per-request
// correlation ids.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eos/internal/actor"
	"eos/internal/eoserr"
	"eos/internal/object"
	"eos/internal/scheduler"
)

type Server struct {
	sys    *scheduler.System
	log    *slog.Logger
	engine *gin.Engine
	http   *http.Server
}

func New(sys *scheduler.System, log *slog.Logger, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(correlationID(log))

	s := &Server{sys: sys, log: log, engine: engine, http: &http.Server{Addr: addr, Handler: engine}}
	s.routes()
	return s
}

func correlationID(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		start := time.Now()
		c.Set("request_id", id)
		c.Next()
		log.Info("rpc request",
			slog.String("request_id", id),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) routes() {
	s.engine.POST("/spawn", s.handleSpawn)
	s.engine.POST("/list", s.handleList)
	s.engine.POST("/send", s.handleSend)
	s.engine.POST("/pause", s.handlePause)
	s.engine.POST("/unpause", s.handleUnpause)
	s.engine.POST("/kill", s.handleKill)
	s.engine.POST("/tick/now", s.handleTickNow)
	s.engine.POST("/tick/set", s.handleTickSet)
	s.engine.POST("/tick/reset", s.handleTickReset)
	s.engine.POST("/shutdown", s.handleShutdown)
	s.engine.POST("/kv/compact", s.handleKVCompact)
	s.engine.GET("/kv/stats", s.handleKVStats)
}

// ListenAndServe runs the HTTP server; it blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// --- response envelopes (spec section 6.1) ---

func done(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"Done": nil})
}

func failed(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch eoserr.KindOf(err) {
	case eoserr.NotFound:
		status = http.StatusNotFound
	case eoserr.InvalidInput, eoserr.IdAlreadyExists:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"Failed": gin.H{"err": err.Error()}})
}

type spawnRequest struct {
	ID     string `json:"id"`
	Script string `json:"script"`
}

func (s *Server) handleSpawn(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, eoserr.Wrap(eoserr.InvalidInput, "malformed spawn request", err))
		return
	}
	id, err := s.sys.Spawn(actor.Props{ID: req.ID, Script: req.Script})
	if err != nil {
		failed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"Spawned": gin.H{"id": id}})
}

func (s *Server) handleList(c *gin.Context) {
	views := s.sys.List()
	actors := make([]gin.H, len(views))
	for i, v := range views {
		actors[i] = gin.H{
			"id":         v.ID,
			"paused":     v.Paused,
			"mailbox":    v.Mailbox,
			"send_queue": v.SendQueue,
		}
	}
	c.JSON(http.StatusOK, gin.H{"Actors": gin.H{"actors": actors}})
}

type sendRequest struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	Payload interface{} `json:"payload"`
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failed(c, eoserr.Wrap(eoserr.InvalidInput, "malformed send request", err))
		return
	}
	if err := s.sys.Send(req.From, req.To, object.FromJSONValue(req.Payload)); err != nil {
		failed(c, err)
		return
	}
	done(c)
}

// bindOptionalID reads a request body holding a bare JSON string or
// null, matching the original's Json<Option<String>> handlers. An
// empty body is treated the same as an explicit null.
func bindOptionalID(c *gin.Context) (*string, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// handlePause pauses a single actor by id, or the whole system when
// the body is null/empty (spec section 6.1; matches the original's
// pause/unpause handlers).
func (s *Server) handlePause(c *gin.Context) {
	id, err := bindOptionalID(c)
	if err != nil {
		failed(c, eoserr.Wrap(eoserr.InvalidInput, "malformed request", err))
		return
	}
	if id == nil {
		s.sys.SetSystemPaused(true)
		done(c)
		return
	}
	if err := s.sys.Pause(*id); err != nil {
		failed(c, err)
		return
	}
	done(c)
}

func (s *Server) handleUnpause(c *gin.Context) {
	id, err := bindOptionalID(c)
	if err != nil {
		failed(c, eoserr.Wrap(eoserr.InvalidInput, "malformed request", err))
		return
	}
	if id == nil {
		s.sys.SetSystemPaused(false)
		done(c)
		return
	}
	if err := s.sys.Unpause(*id); err != nil {
		failed(c, err)
		return
	}
	done(c)
}

// handleKill accepts a bare array of ids and kills each in turn (spec
// section 4.3, section 6.1; matches the original's Json<Vec<String>>).
func (s *Server) handleKill(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		failed(c, eoserr.Wrap(eoserr.InvalidInput, "malformed request", err))
		return
	}
	for _, id := range ids {
		if err := s.sys.Kill(id); err != nil {
			failed(c, err)
			return
		}
	}
	done(c)
}

func (s *Server) handleTickNow(c *gin.Context) {
	s.sys.TickNow()
	done(c)
}

// handleTickSet accepts a bare JSON unsigned integer (spec section
// 6.1; matches the original's Json<u64>).
func (s *Server) handleTickSet(c *gin.Context) {
	var ms int
	if err := c.ShouldBindJSON(&ms); err != nil {
		failed(c, eoserr.Wrap(eoserr.InvalidInput, "malformed request", err))
		return
	}
	if err := s.sys.SetTickMs(ms); err != nil {
		failed(c, err)
		return
	}
	done(c)
}

func (s *Server) handleTickReset(c *gin.Context) {
	s.sys.ResetTickMs()
	done(c)
}

func (s *Server) handleShutdown(c *gin.Context) {
	done(c)
	go s.sys.Shutdown()
}

func (s *Server) handleKVCompact(c *gin.Context) {
	kv := s.sys.KVStore()
	if kv == nil {
		failed(c, eoserr.New(eoserr.NotFound, "kv store not configured"))
		return
	}
	if err := kv.Compact(c.Request.Context()); err != nil {
		failed(c, eoserr.Wrap(eoserr.Transport, "compact failed", err))
		return
	}
	done(c)
}

func (s *Server) handleKVStats(c *gin.Context) {
	kv := s.sys.KVStore()
	if kv == nil {
		failed(c, eoserr.New(eoserr.NotFound, "kv store not configured"))
		return
	}
	stats, err := kv.Stats(c.Request.Context())
	if err != nil {
		failed(c, eoserr.Wrap(eoserr.Transport, "stats failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": stats.Keys, "size_bytes": stats.SizeBytes})
}
