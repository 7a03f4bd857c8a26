// Package linkserver runs the short-lived local HTTP server that walks the
// user through the hosted Link authorization flow and captures the resulting
// credential.
package linkserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/ledgerclerk/clerk/internal/core/ports/repositories"
	"github.com/ledgerclerk/clerk/internal/core/services"
	"github.com/ledgerclerk/clerk/internal/upstream/plaid"
)

const linkPage = `<!DOCTYPE html>
<html>
<head>
  <title>clerk link</title>
  <script src="https://cdn.plaid.com/link/v2/stable/link-initialize.js"></script>
</head>
<body>
  <p>Opening the authorization window&hellip;</p>
  <script>
    const handler = Plaid.create({
      token: %q,
      onSuccess: (publicToken) => {
        window.location.href = "/exchange/" + encodeURIComponent(publicToken);
      },
      onExit: () => {
        document.body.innerHTML = "<p>Authorization cancelled. You can close this window.</p>";
      },
    });
    handler.open();
  </script>
</body>
</html>`

// Server hosts the one-shot link flow. It serves the Link page, exchanges the
// public token from a completed session, persists the credential, and stops.
type Server struct {
	client       *plaid.Client
	linkService  *services.LinkService
	linkRepo     repositories.LinkRepository
	logger       *log.Logger
	countryCodes []string

	// updateItemID selects update mode: the captured credential re-authorizes
	// this existing item instead of creating a new link.
	updateItemID string
	alias        string

	done chan error
}

func New(
	client *plaid.Client,
	linkService *services.LinkService,
	linkRepo repositories.LinkRepository,
	countryCodes []string,
	logger *log.Logger,
) *Server {
	return &Server{
		client:       client,
		linkService:  linkService,
		linkRepo:     linkRepo,
		countryCodes: countryCodes,
		logger:       logger,
		done:         make(chan error, 1),
	}
}

// Run serves the link flow on the given port until one authorization completes
// or ctx is cancelled. alias names the new link; updateItemID, when non-empty,
// re-authorizes an existing one instead.
func (s *Server) Run(ctx context.Context, port, alias, updateItemID string) error {
	s.alias = alias
	s.updateItemID = updateItemID

	var existingToken string
	if updateItemID != "" {
		link, err := s.linkRepo.FindLinkByItemID(ctx, updateItemID)
		if err != nil {
			return fmt.Errorf("finding link to update: %w", err)
		}
		existingToken = link.AccessToken
	}

	linkToken, err := s.client.CreateLinkToken(ctx, "clerk-cli", s.countryCodes, existingToken)
	if err != nil {
		return fmt.Errorf("creating link token: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(linkPage, linkToken)))
	})
	router.GET("/exchange/:public_token", s.handleExchange)

	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.done <- err
		}
	}()

	s.logger.Info("link flow ready", "url", fmt.Sprintf("http://localhost:%s", port))

	var result error
	select {
	case result = <-s.done:
	case <-ctx.Done():
		result = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("link server shutdown", "err", err)
	}
	return result
}

// handleExchange trades the public token for the long-lived credential and
// persists it, then releases Run.
func (s *Server) handleExchange(c *gin.Context) {
	accessToken, itemID, err := s.client.ExchangePublicToken(c.Request.Context(), c.Param("public_token"))
	if err != nil {
		c.String(http.StatusBadGateway, "token exchange failed: %v", err)
		s.done <- fmt.Errorf("exchanging public token: %w", err)
		return
	}

	if s.updateItemID != "" {
		err = s.linkService.Reauthorize(c.Request.Context(), s.updateItemID, accessToken)
	} else {
		_, err = s.linkService.AddLink(c.Request.Context(), s.alias, accessToken)
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "saving link failed: %v", err)
		s.done <- err
		return
	}

	s.logger.Info("link authorized", "item_id", itemID)
	c.String(http.StatusOK, "Linked. You can close this window and return to the terminal.")
	s.done <- nil
}
