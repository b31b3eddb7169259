// Package webhook exposes the sync over HTTP: a health endpoint, an
// on-demand full sync, and a receiver for transaction events pushed by the
// source ledger.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-sync/internal/domain"
	"github.com/dvloznov/budget-sync/internal/logger"
)

// Syncer runs one full orchestrated sync.
type Syncer interface {
	Sync(ctx context.Context) (domain.RunSummary, error)
}

// TransactionImporter imports a single pushed transaction.
type TransactionImporter interface {
	ImportWebhookTransaction(ctx context.Context, tx domain.ExternalTransaction) error
}

// event is the envelope Akahu posts to the webhook.
type event struct {
	Type string                     `json:"type"`
	Item domain.ExternalTransaction `json:"item"`
}

// Server routes webhook traffic to the sync engine.
type Server struct {
	log      zerolog.Logger
	verifier *Verifier
	syncer   Syncer
	importer TransactionImporter
	router   *gin.Engine
}

// NewServer builds the server and its routes. publicKeyPEM is the source
// ledger's signing key; requests with a bad signature are rejected before
// any payload is parsed.
func NewServer(log zerolog.Logger, publicKeyPEM string, syncer Syncer, importer TransactionImporter) (*Server, error) {
	verifier, err := NewVerifier(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		log:      log,
		verifier: verifier,
		syncer:   syncer,
		importer: importer,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/sync", s.handleSync)
	s.router.POST("/receive-transaction", s.handleReceiveTransaction)
	return s, nil
}

// Router exposes the handler for serving and for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("Webhook server started")
	return s.router.Run(addr)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Webhook server is running"})
}

func (s *Server) handleSync(c *gin.Context) {
	ctx := logger.WithContext(c.Request.Context(), s.log)

	summary, err := s.syncer.Sync(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Full sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "sync failed", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "full sync complete",
		"run_id":       summary.RunID,
		"accounts":     len(summary.Results),
		"failures":     summary.Failures,
		"transactions": summary.TotalTransactions(),
	})
}

func (s *Server) handleReceiveTransaction(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "unreadable body"})
		return
	}

	if err := s.verifier.Verify(c.GetHeader("X-Akahu-Signature"), body); err != nil {
		s.log.Error().Err(err).Msg("Invalid webhook caller. Verification failed!")
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid signature"})
		return
	}

	// The body was consumed for signature verification; decode the bytes
	// directly rather than re-binding the request.
	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid payload"})
		return
	}

	if ev.Type != "TRANSACTION_CREATED" {
		s.log.Info().Str("type", ev.Type).Msg("Ignoring webhook event type")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := logger.WithContext(c.Request.Context(), s.log)
	if err := s.importer.ImportWebhookTransaction(ctx, ev.Item); err != nil {
		s.log.Error().Err(err).Str("transaction_id", ev.Item.ID).Msg("Failed to import webhook transaction")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "import failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
