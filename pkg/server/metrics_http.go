package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NicolasHaas/chatd/pkg/version"
)

// StartMetricsHTTP starts the HTTP side channel exposing /metrics in
// Prometheus text exposition format, /healthz, /version and /sessions.
// It runs in the background and stops when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.metricsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

func (s *Server) metricsRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/metrics", s.handleMetrics)
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok\n")
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Current())
	})
	router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"count": s.registry.Count(),
			"users": s.registry.Usernames(),
		})
	})
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("metrics request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(c *gin.Context) {
	m := s.metrics
	w := c.Writer
	uptime := time.Since(m.startTime).Seconds()

	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.Status(http.StatusOK)

	// Write errors to the response are non-actionable.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP chatd_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE chatd_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "chatd_uptime_seconds %f\n", uptime)

	write("chatd_sessions_active", "Current online sessions.", "gauge", int64(s.registry.Count()))
	write("chatd_connections_active", "Current open TCP connections.", "gauge", m.ActiveConnections.Load())
	write("chatd_connections_total", "Lifetime TCP connections accepted.", "counter", m.TotalConnections.Load())
	write("chatd_disconnects_total", "Sessions that ended.", "counter", m.Disconnects.Load())
	write("chatd_protocol_errors_total", "Protocol violations observed.", "counter", m.ProtocolErrors.Load())

	write("chatd_logins_accepted_total", "Logins that produced a session.", "counter", m.LoginsAccepted.Load())
	write("chatd_logins_rejected_total", "Logins refused.", "counter", m.LoginsRejected.Load())
	write("chatd_registrations_total", "Accounts registered.", "counter", m.Registrations.Load())
	write("chatd_registrations_failed_total", "Registrations refused or failed.", "counter", m.RegistrationsFail.Load())

	write("chatd_global_messages_total", "Global chat lines relayed.", "counter", m.GlobalMessages.Load())
	write("chatd_private_messages_total", "Private messages relayed.", "counter", m.PrivateMessages.Load())
	write("chatd_write_failures_total", "Per-recipient delivery failures.", "counter", m.WriteFailures.Load())

	write("chatd_commands_total", "Commands dispatched.", "counter", m.Commands.Load())
	write("chatd_kicks_total", "Users kicked.", "counter", m.Kicks.Load())
	write("chatd_bans_total", "Users banned.", "counter", m.Bans.Load())
	write("chatd_unbans_total", "Users un-banned.", "counter", m.Unbans.Load())
	write("chatd_deletes_total", "Accounts deleted.", "counter", m.Deletes.Load())
	write("chatd_privilege_changes_total", "Promotions and demotions.", "counter", m.PrivilegeChanges.Load())
}
