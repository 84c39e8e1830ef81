package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	eventapp "github.com/revsplit/backend/internal/application/event"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/infrastructure/auth"
	"github.com/revsplit/backend/internal/infrastructure/cache"
	"github.com/revsplit/backend/internal/infrastructure/config"
	"github.com/revsplit/backend/internal/infrastructure/event"
	"github.com/revsplit/backend/internal/infrastructure/persistence"
	"github.com/revsplit/backend/internal/interfaces/http/dto"
	"github.com/revsplit/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

// envelope mirrors dto.Response with the payload left raw
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type testServer struct {
	t         *testing.T
	engine    *gin.Engine
	validator *auth.Validator
	outbox    *event.GormOutboxRepository
}

// newTestServer wires the real services over an in-memory sqlite store and
// mounts the handlers behind JWT auth. Events are written to the outbox and
// two approvals verify a payment.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := persistence.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate())

	ruleRepo := persistence.NewGormRevenueRuleRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	settlementRepo := persistence.NewGormSettlementRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	txScope := persistence.NewGormTransactionScope(db.DB, event.NewOutboxPublisher(serializer))

	settings := apprevenue.DefaultSettings()
	settings.ApprovalQuorum = 2

	rules := apprevenue.NewRevenueRuleService(ruleRepo, entryRepo, txScope, nil)
	approvals := apprevenue.NewApprovalService(paymentRepo, txScope, settings, nil)
	ledger := apprevenue.NewLedgerService(entryRepo, txScope, settings, nil)
	balances := apprevenue.NewBalanceService(entryRepo, cache.NewInMemoryBalanceCache(), settings, nil)
	settlements := apprevenue.NewSettlementService(settlementRepo, txScope, nil)
	payouts := apprevenue.NewPayoutSummaryService(balances, settings, nil)
	ledger.SetBalanceInvalidator(balances)
	settlements.SetBalanceInvalidator(balances)

	ruleHandler := NewRevenueRuleHandler(rules)
	paymentHandler := NewPaymentHandler(approvals, ledger)
	ledgerHandler := NewLedgerHandler(ledger, balances, settlements, payouts)
	outboxHandler := NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, nil))

	v := auth.NewValidator(config.JWTConfig{Secret: "handler-test-secret"})
	engine := gin.New()
	api := engine.Group("/api/v1", middleware.JWTAuthMiddleware(v))

	api.POST("/revenue-rules", ruleHandler.Create)
	api.GET("/revenue-rules", ruleHandler.List)
	api.GET("/revenue-rules/default", ruleHandler.GetDefault)
	api.GET("/revenue-rules/:id", ruleHandler.GetByID)
	api.PATCH("/revenue-rules/:id", ruleHandler.Update)
	api.DELETE("/revenue-rules/:id", ruleHandler.Delete)

	api.POST("/payments", paymentHandler.Record)
	api.GET("/payments", paymentHandler.List)
	api.GET("/payments/:id", paymentHandler.Get)
	api.POST("/payments/:id/approvals", paymentHandler.Approve)
	api.DELETE("/payments/:id/approvals/:approverId", paymentHandler.Revoke)
	api.GET("/payments/:id/approval-status", paymentHandler.ApprovalStatus)
	api.POST("/payments/:id/process", paymentHandler.Process)
	api.POST("/payments/:id/reverse", paymentHandler.Reverse)

	api.GET("/ledger-entries", ledgerHandler.ListEntries)
	api.GET("/balances/:party", ledgerHandler.GetBalance)
	api.GET("/balances/:party/pending-entries", ledgerHandler.PendingEntries)
	api.POST("/settlements", ledgerHandler.CreateSettlement)
	api.GET("/settlements", ledgerHandler.ListSettlements)
	api.GET("/settlements/:id", ledgerHandler.GetSettlement)
	api.GET("/payouts/summary", ledgerHandler.PayoutSummary)

	admin := api.Group("/admin/outbox", middleware.RequireRole(auth.RoleAdmin))
	admin.GET("/dead", outboxHandler.GetDeadLetterEntries)
	admin.POST("/dead/retry-all", outboxHandler.RetryAllDeadEntries)
	admin.GET("/stats", outboxHandler.GetStats)
	admin.GET("/:id", outboxHandler.GetEntry)
	admin.POST("/:id/retry", outboxHandler.RetryDeadEntry)

	return &testServer{t: t, engine: engine, validator: v, outbox: outboxRepo}
}

func (s *testServer) token(subject, role string) string {
	s.t.Helper()
	token, err := s.validator.Issue(subject, role, time.Hour)
	require.NoError(s.t, err)
	return token
}

// do sends a request as subject. A string body is sent verbatim, anything
// else is JSON encoded.
func (s *testServer) do(method, path, subject, role string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.token(subject, role))
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) as(subject string) func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	return func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		return s.do(method, path, subject, "", body)
	}
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}
