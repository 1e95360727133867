// Package server exposes the signal intake over HTTP for forwarders that
// relay the monitored channel, plus a manual reconciliation trigger and the
// metrics endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "server")

// Dispatcher is the engine surface the server forwards to.
type Dispatcher interface {
	DispatchText(ctx context.Context, text string) error
	ReconcileAll(ctx context.Context) error
}

type Server struct {
	Dispatcher Dispatcher
	Bind       string
}

func New(dispatcher Dispatcher, bind string) *Server {
	return &Server{
		Dispatcher: dispatcher,
		Bind:       bind,
	}
}

type signalRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) newEngine() *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowMethods:     []string{"GET", "POST"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/api/signals", s.handleSignal)
	r.POST("/api/reconcile", s.handleReconcile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// handleSignal acks the forwarder immediately and dispatches in the
// background. The forwarder only needs to know the text was accepted; order
// placement latency must not hold its connection open.
func (s *Server) handleSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing text field"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := s.Dispatcher.DispatchText(ctx, req.Text); err != nil {
			log.WithError(err).Error("signal dispatch failed")
		}
	}()
}

func (s *Server) handleReconcile(c *gin.Context) {
	if err := s.Dispatcher.ReconcileAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Bind,
		Handler: s.newEngine(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.Infof("listening on %s", s.Bind)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
