// Package api exposes the ledger over HTTP with gin. Mutating routes
// require a bearer JWT whose subject is the acting address.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/types"
)

// Server holds the HTTP handlers for one ledger.
type Server struct {
	ledger       *greenscore.Ledger
	verifier     TokenVerifier
	logger       *slog.Logger
	allowOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAllowOrigins enables CORS for the given origins.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) { s.allowOrigins = origins }
}

// New creates a Server. verifier authenticates mutating requests.
func New(l *greenscore.Ledger, verifier TokenVerifier, opts ...Option) *Server {
	s := &Server{
		ledger:   l,
		verifier: verifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(s.logger))
	if len(s.allowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  s.allowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:  []string{"Authorization", "Content-Type", headerRequestID},
			ExposeHeaders: []string{headerRequestID},
		}))
	}
	s.Routes(router)
	return router
}

// Routes registers the ledger routes on r.
func (s *Server) Routes(r gin.IRouter) {
	r.GET("/healthz", s.health)
	r.GET("/records", s.listRecords)
	r.GET("/records/:id", s.getRecord)
	r.GET("/stats", s.getStats)
	r.GET("/stats/reconcile", s.reconcile)

	protected := r.Group("/")
	protected.Use(requireBearer(s.verifier))
	protected.POST("/records", s.registerRecord)
	protected.POST("/records/:id/verify", s.verifyRecord)
	protected.PUT("/records/:id/emission", s.updateEmission)
}

type registerRequest struct {
	EntityName     string            `json:"entity_name"`
	EntityType     record.EntityType `json:"entity_type"`
	CarbonEmission *types.Emission   `json:"carbon_emission"`
}

type registerResponse struct {
	EntityID uint64 `json:"entity_id"`
}

type updateEmissionRequest struct {
	CarbonEmission *types.Emission `json:"carbon_emission"`
}

func (s *Server) registerRecord(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.CarbonEmission == nil {
		abort(c, http.StatusBadRequest, codeInvalidRequest, "carbon_emission is required")
		return
	}

	entityID, err := s.ledger.RegisterCarbonRecord(c.Request.Context(),
		principal(c), req.EntityName, req.EntityType, *req.CarbonEmission)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerResponse{EntityID: entityID})
}

func (s *Server) verifyRecord(c *gin.Context) {
	entityID, ok := parseID(c)
	if !ok {
		return
	}
	r, err := s.ledger.VerifyCarbonRecord(c.Request.Context(), principal(c), entityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) updateEmission(c *gin.Context) {
	entityID, ok := parseID(c)
	if !ok {
		return
	}
	var req updateEmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.CarbonEmission == nil {
		abort(c, http.StatusBadRequest, codeInvalidRequest, "carbon_emission is required")
		return
	}

	r, err := s.ledger.UpdateCarbonEmission(c.Request.Context(), principal(c), entityID, *req.CarbonEmission)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// getRecord returns the Not_Found sentinel with 200 on a miss, matching
// the library's GetCarbonRecord.
func (s *Server) getRecord(c *gin.Context) {
	entityID, ok := parseID(c)
	if !ok {
		return
	}
	r, err := s.ledger.GetCarbonRecord(c.Request.Context(), entityID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listRecords(c *gin.Context) {
	var opts record.ListOpts
	var err error
	if v := c.Query("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil || opts.Offset < 0 {
			abort(c, http.StatusBadRequest, codeInvalidRequest, "offset must be a non-negative integer")
			return
		}
	}
	if v := c.Query("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			abort(c, http.StatusBadRequest, codeInvalidRequest, "limit must be a non-negative integer")
			return
		}
	}
	if v := c.Query("entity_type"); v != "" {
		opts.EntityType = record.EntityType(v)
		if !opts.EntityType.Valid() {
			abort(c, http.StatusBadRequest, codeInvalidRequest, "entity_type must be Company or Product")
			return
		}
	}
	if v := c.Query("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			abort(c, http.StatusBadRequest, codeInvalidRequest, "verified must be a boolean")
			return
		}
		opts.Verified = &verified
	}

	records, err := s.ledger.ListCarbonRecords(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*record.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) getStats(c *gin.Context) {
	st, err := s.ledger.GetPlatformStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) reconcile(c *gin.Context) {
	report, err := s.ledger.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) health(c *gin.Context) {
	if err := s.ledger.Ping(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseID(c *gin.Context) (uint64, bool) {
	entityID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, codeInvalidRequest, "id must be an unsigned integer")
		return 0, false
	}
	return entityID, true
}
