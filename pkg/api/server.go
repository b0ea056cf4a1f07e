// Package api exposes quoting, withdrawal planning and settlement status over HTTP
package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"near-intents/config"
	"near-intents/pkg/intent"
	"near-intents/pkg/logger"
	"near-intents/pkg/parser"
	"near-intents/pkg/quote"
	"near-intents/pkg/types"
	"near-intents/pkg/withdraw"
)

// Planner turns user requests into typed quote requests and withdrawal plans.
// *app.App implements it.
type Planner interface {
	QuoteRequest(ctx context.Context, account string, req types.SwapRequest) (quote.Request, error)
	WithdrawPlan(ctx context.Context, account string, req types.WithdrawRequest) (*withdraw.Spec, error)
}

// Quoter produces aggregated quotes
type Quoter interface {
	QueryQuote(ctx context.Context, req quote.Request) (quote.AggregatedQuote, error)
}

// Server holds the handlers' collaborators
type Server struct {
	planner    Planner
	quotes     Quoter
	status     intent.StatusGetter
	settlement config.SettlementConfig
	log        *logger.Logger
}

// NewServer creates the HTTP API
func NewServer(planner Planner, quotes Quoter, status intent.StatusGetter, settlement config.SettlementConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		planner:    planner,
		quotes:     quotes,
		status:     status,
		settlement: settlement,
		log:        log,
	}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/quote", s.handleQuote)
		v1.POST("/withdraw-plan", s.handleWithdrawPlan)
		v1.GET("/status/:hash", s.handleStatus)
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Debugf("[API] %s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// QuoteRequestBody is the body of POST /v1/quote
type QuoteRequestBody struct {
	Account  string   `json:"account"`
	Amount   string   `json:"amount" binding:"required"`
	TokensIn []string `json:"tokens_in" binding:"required,min=1"`
	TokenOut string   `json:"token_out" binding:"required"`
}

// WithdrawPlanBody is the body of POST /v1/withdraw-plan
type WithdrawPlanBody struct {
	Account  string `json:"account" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Token    string `json:"token" binding:"required"`
	TokenOut string `json:"token_out"`
}

func (s *Server) handleQuote(c *gin.Context) {
	var body QuoteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	swap := types.SwapRequest{Amount: body.Amount, TokenOut: parser.ParseTokenRef(body.TokenOut)}
	for _, ref := range body.TokensIn {
		swap.TokensIn = append(swap.TokensIn, parser.ParseTokenRef(ref))
	}

	req, err := s.planner.QuoteRequest(c.Request.Context(), body.Account, swap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := s.quotes.QueryQuote(c.Request.Context(), req)
	if err != nil {
		writeQuoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, DisplayQuote(req, q))
}

func writeQuoteError(c *gin.Context, err error) {
	var qerr *quote.Error
	var mismatch *quote.AmountMismatchError
	switch {
	case errors.As(err, &qerr):
		resp := gin.H{"error": string(qerr.Kind)}
		if qerr.MinAmount != "" {
			resp["min_amount"] = qerr.MinAmount
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.As(err, &mismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "AMOUNT_MISMATCH", "details": mismatch.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to query quote", "details": err.Error()})
	}
}

func (s *Server) handleWithdrawPlan(c *gin.Context) {
	var body WithdrawPlanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	spec, err := s.planner.WithdrawPlan(c.Request.Context(), body.Account, types.WithdrawRequest{
		Amount:   body.Amount,
		Token:    parser.ParseTokenRef(body.Token),
		TokenOut: parser.ParseTokenRef(body.TokenOut),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// handleStatus returns the relay's current status, or with ?wait=true blocks
// until the intent settles or is reported missing
func (s *Server) handleStatus(c *gin.Context) {
	hash := c.Param("hash")

	if c.Query("wait") == "true" {
		res := intent.WaitForSettlement(c.Request.Context(), s.status, hash, s.settlement, s.log)
		c.JSON(http.StatusOK, types.SwapStatus{IntentHash: hash, Status: string(res.Status), TxHash: res.TxHash})
		return
	}

	res, err := s.status.GetStatus(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get status", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, types.SwapStatus{IntentHash: hash, Status: res.Status, TxHash: res.TxHash()})
}

// DisplayQuote formats an aggregated quote for output
func DisplayQuote(req quote.Request, q quote.AggregatedQuote) types.QuoteDisplay {
	in := make([]string, 0, len(req.TokensIn))
	for _, t := range req.TokensIn {
		in = append(in, t.DefuseAssetID)
	}

	split := make(map[string]string, len(q.AmountsIn))
	for id, v := range q.AmountsIn {
		split[id] = intString(v)
	}

	d := types.QuoteDisplay{
		AmountIn:    intString(q.TotalAmountIn),
		TokensIn:    in,
		AmountOut:   intString(q.TotalAmountOut),
		TokenOut:    req.TokenOut.DefuseAssetID,
		QuoteHashes: append([]string(nil), q.QuoteHashes...),
		Split:       split,
	}
	if !q.ExpirationTime.IsZero() {
		d.ExpiresAt = q.ExpirationTime.UTC().Format(time.RFC3339)
	}
	return d
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
