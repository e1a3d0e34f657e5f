// Package relay exposes the reward-network postback endpoint and forwards
// each accepted event to a Telegram chat. Networks deliver postbacks as GET
// query strings or POST bodies, often both at once; the relay merges the two
// with body values winning.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/coinbot/internal/store/postbacklog"
	"github.com/MarkoPoloResearchLab/coinbot/internal/telegram"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	bannerText          = "Server attivo. Endpoint: GET/POST /postback"
	placeholderValue    = "N/A"
	shutdownGracePeriod = 5 * time.Second
)

// Forwarder delivers one formatted message downstream.
type Forwarder interface {
	SendMessage(ctx context.Context, text string) error
}

// AuditLog records accepted postbacks and detects replays. A transaction
// counts as delivered only once MarkForwarded ran for it; a replay of an
// undelivered row goes through again.
type AuditLog interface {
	Record(ctx context.Context, event postbacklog.Event) error
	MarkForwarded(ctx context.Context, transactionID string) error
	IsForwarded(ctx context.Context, transactionID string) (bool, error)
}

// Config carries the relay's wiring. Forwarder may be nil when Telegram is
// not configured; the endpoint then rejects postbacks with a config error.
// AuditLog may be nil, in which case replay detection is disabled.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	Forwarder      Forwarder
	AuditLog       AuditLog
	Logger         *zap.Logger
}

// Server is the HTTP postback relay.
type Server struct {
	cfg    Config
	logger *zap.Logger
	router *gin.Engine
}

// NewServer wires the relay routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	server := &Server{cfg: cfg, logger: cfg.Logger}
	server.router = server.setupRouter()
	return server, nil
}

// Handler exposes the route tree, mainly for tests.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run serves until the context is cancelled, then drains with a short grace
// period.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("relay listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("relay shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(server.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: server.cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, bannerText)
	})
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/postback", server.handlePostback)
	router.POST("/postback", server.handlePostback)

	return router
}

func (server *Server) handlePostback(ctx *gin.Context) {
	params := mergedParams(ctx)
	event := postbackEvent{
		UserID:         params["userID"],
		TransactionID:  params["transactionID"],
		Revenue:        params["revenue"],
		CurrencyAmount: params["currencyAmount"],
		Hash:           params["hash"],
		IP:             params["ip"],
		Type:           params["type"],
	}

	if event.UserID == "" || event.TransactionID == "" || event.CurrencyAmount == "" {
		ctx.JSON(http.StatusBadRequest, errorResponse("missing_parameters", "userID, transactionID and currencyAmount are required"))
		return
	}
	if server.cfg.Forwarder == nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("telegram_not_configured", "set TELEGRAM_API_TOKEN and TELEGRAM_CHAT_ID"))
		return
	}

	if server.cfg.AuditLog != nil {
		err := server.cfg.AuditLog.Record(ctx.Request.Context(), postbacklog.Event{
			TransactionID:  event.TransactionID,
			UserID:         event.UserID,
			CurrencyAmount: event.CurrencyAmount,
			Payload:        params,
		})
		switch {
		case errors.Is(err, postbacklog.ErrDuplicateTransaction):
			forwarded, lookupErr := server.cfg.AuditLog.IsForwarded(ctx.Request.Context(), event.TransactionID)
			if lookupErr != nil {
				server.logger.Error("postback audit lookup failed", zap.Error(lookupErr))
				ctx.JSON(http.StatusInternalServerError, errorResponse("audit_error", "postback could not be verified"))
				return
			}
			if forwarded {
				server.logger.Info("replayed postback ignored", zap.String("transaction_id", event.TransactionID))
				ctx.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
				return
			}
			// Recorded on an earlier attempt whose forward failed; this
			// retry is the delivery.
		case err != nil:
			server.logger.Error("postback audit write failed", zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, errorResponse("audit_error", "postback could not be recorded"))
			return
		}
	}

	if err := server.cfg.Forwarder.SendMessage(ctx.Request.Context(), formatTelegramMessage(event)); err != nil {
		server.logger.Error("telegram forward failed", zap.String("transaction_id", event.TransactionID), zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("telegram_error", "message could not be delivered"))
		return
	}

	if server.cfg.AuditLog != nil {
		if err := server.cfg.AuditLog.MarkForwarded(ctx.Request.Context(), event.TransactionID); err != nil {
			// The message is delivered; the worst case of a missing mark is
			// one repeated forward on a later replay.
			server.logger.Warn("postback forwarded mark failed",
				zap.String("transaction_id", event.TransactionID),
				zap.Error(err))
		}
	}

	server.logger.Info("postback forwarded",
		zap.String("transaction_id", event.TransactionID),
		zap.String("user_id", event.UserID))
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Messaggio inviato a Telegram!"})
}

type postbackEvent struct {
	UserID         string
	TransactionID  string
	Revenue        string
	CurrencyAmount string
	Hash           string
	IP             string
	Type           string
}

// mergedParams flattens query string and body parameters into one map, body
// values overriding query values. JSON and form bodies are both accepted.
func mergedParams(ctx *gin.Context) map[string]string {
	merged := map[string]string{}
	for key, values := range ctx.Request.URL.Query() {
		if len(values) > 0 {
			merged[key] = values[0]
		}
	}
	switch ctx.ContentType() {
	case gin.MIMEJSON:
		var body map[string]any
		if err := json.NewDecoder(ctx.Request.Body).Decode(&body); err == nil {
			for key, value := range body {
				merged[key] = fmt.Sprint(value)
			}
		}
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		if err := ctx.Request.ParseForm(); err == nil {
			for key, values := range ctx.Request.PostForm {
				if len(values) > 0 {
					merged[key] = values[0]
				}
			}
		}
	}
	return merged
}

func formatTelegramMessage(event postbackEvent) string {
	return "🛎️ *Nuovo Evento Registrato* 🛎️\n" +
		"👤 *Nick:* " + telegram.EscapeMarkdownV2(event.UserID) + "\n" +
		"🆔 *Transaction ID:* " + telegram.EscapeMarkdownV2(event.TransactionID) + "\n" +
		"💰 *Revenue:* " + telegram.EscapeMarkdownV2(orPlaceholder(event.Revenue)) + "\n" +
		"🏆 *Numero Punti:* " + telegram.EscapeMarkdownV2(event.CurrencyAmount) + "\n" +
		"🔒 *Hash:* " + telegram.EscapeMarkdownV2(orPlaceholder(event.Hash)) + "\n" +
		"🌐 *IP Utente:* " + telegram.EscapeMarkdownV2(orPlaceholder(event.IP)) + "\n" +
		"📄 *Tipo Transazione:* " + telegram.EscapeMarkdownV2(orPlaceholder(event.Type))
}

func orPlaceholder(value string) string {
	if value == "" {
		return placeholderValue
	}
	return value
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
