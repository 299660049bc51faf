package rpc

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakefarm/farm"
	"stakefarm/history"
	"stakefarm/observability/metrics"
)

// Config wires the HTTP surface to its collaborators.
type Config struct {
	Engine  *farm.Engine
	History *history.Recorder
	Logger  *slog.Logger
	// AdminJWTSecret guards the /v1/admin group. Empty disables auth.
	AdminJWTSecret string
	// RateLimit applies to depositor-facing mutation routes.
	RateLimit RateLimit
}

// Server exposes every engine operation over HTTP.
type Server struct {
	engine  *farm.Engine
	history *history.Recorder
	logger  *slog.Logger
	metrics *metrics.FarmMetrics
	auth    *Authenticator
	limiter *RateLimiter
}

// NewServer builds the server; Router returns the ready-to-serve handler.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.RateLimit
	if limit.RequestsPerMinute == 0 {
		limit = RateLimit{RequestsPerMinute: 600, Burst: 30}
	}
	return &Server{
		engine:  cfg.Engine,
		history: cfg.History,
		logger:  logger,
		metrics: metrics.Farm(),
		auth:    NewAuthenticator(cfg.AdminJWTSecret, logger),
		limiter: NewRateLimiter(limit),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/farm", s.handleFarmInfo)
		r.Get("/funds/{fundID}", s.handleFundInfo)

		r.Route("/deposits", func(r chi.Router) {
			r.With(s.limiter.Middleware).Post("/", s.handleDeposit)
			r.Get("/{account}", s.handleListDeposits)
			r.Route("/{account}/{depositID}", func(r chi.Router) {
				r.Get("/", s.handleGetDeposit)
				r.Get("/rewards", s.handleComputeRewards)
				r.Get("/subscriptions", s.handleSubscriptions)
				r.Get("/subscriptions/{index}", s.handleSubscriptionInfo)
				r.Group(func(r chi.Router) {
					r.Use(s.limiter.Middleware)
					r.Post("/increase", s.handleIncreaseDeposit)
					r.Post("/cooldown", s.handleInitiateCooldown)
					r.Post("/withdraw", s.handleWithdraw)
					r.Post("/withdraw-partial", s.handleWithdrawPartially)
					r.Post("/claim", s.handleClaimRewards)
				})
			})
		})

		r.Route("/rewards/{token}", func(r chi.Router) {
			r.Get("/balance", s.handleRewardBalance)
			r.Get("/rates", s.handleRewardRates)
			r.With(s.limiter.Middleware).Post("/add", s.handleAddRewards)
			r.Post("/rate", s.handleSetRewardRate)
			r.Post("/recover", s.handleRecoverRewardFunds)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/pause", s.handlePauseSwitch)
			r.Post("/close", s.handleCloseFarm)
			r.Post("/cooldown-period", s.handleUpdateCooldownPeriod)
			r.Post("/start-time", s.handleUpdateFarmStartTime)
			r.Post("/recover-erc20", s.handleRecoverERC20)
		})

		if s.history != nil {
			r.Route("/history", func(r chi.Router) {
				r.Get("/accounts/{account}", s.handleHistoryByAccount)
				r.Get("/types/{type}", s.handleHistoryByType)
			})
		}
	})
	return r
}

// request/response plumbing --------------------------------------------------

type depositRequest struct {
	Account   string `json:"account"`
	Liquidity string `json:"liquidity"`
	Locked    bool   `json:"locked"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type rateRequest struct {
	Caller string   `json:"caller"`
	Rates  []string `json:"rates"`
}

type recoverRequest struct {
	Caller string `json:"caller"`
	// Amount is a decimal string; "max" drains the uncommitted balance.
	Amount string `json:"amount"`
}

type pauseRequest struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type cooldownRequest struct {
	Caller string `json:"caller"`
	Period uint64 `json:"period"`
}

type startTimeRequest struct {
	Caller    string `json:"caller"`
	StartTime uint64 `json:"startTime"`
}

type recoverERC20Request struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("rpc: encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func parseAmount(raw string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func amountStrings(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = "0"
			continue
		}
		out[i] = v.String()
	}
	return out
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (s *Server) urlAccount(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	account, ok := parseAddress(chi.URLParam(r, "account"))
	if !ok {
		s.badRequest(w, "invalid account address")
	}
	return account, ok
}

func (s *Server) urlDepositID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "depositID"))
	if err != nil || id < 0 {
		s.badRequest(w, "invalid deposit id")
		return 0, false
	}
	return id, true
}

func (s *Server) urlToken(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	token, ok := parseAddress(chi.URLParam(r, "token"))
	if !ok {
		s.badRequest(w, "invalid token address")
	}
	return token, ok
}

// depositor handlers ---------------------------------------------------------

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		s.badRequest(w, "invalid account address")
		return
	}
	liquidity, ok := parseAmount(req.Liquidity)
	if !ok {
		s.badRequest(w, "invalid liquidity amount")
		return
	}
	depositID, err := s.engine.Deposit(account, liquidity, req.Locked)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ObserveDeposit()
	s.refreshFundGauges()
	s.writeJSON(w, http.StatusCreated, map[string]int{"depositId": depositID})
}

func (s *Server) handleIncreaseDeposit(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		s.badRequest(w, "invalid amount")
		return
	}
	if err := s.engine.IncreaseDeposit(account, depositID, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.refreshFundGauges()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInitiateCooldown(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	if err := s.engine.InitiateCooldown(account, depositID); err != nil {
		s.writeError(w, err)
		return
	}
	s.refreshFundGauges()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	liquidity, err := s.engine.Withdraw(account, depositID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ObserveWithdrawal()
	s.refreshFundGauges()
	s.writeJSON(w, http.StatusOK, map[string]string{"liquidity": liquidity.String()})
}

func (s *Server) handleWithdrawPartially(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		s.badRequest(w, "invalid amount")
		return
	}
	if err := s.engine.WithdrawPartially(account, depositID, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ObserveWithdrawal()
	s.refreshFundGauges()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	rewards, err := s.engine.ClaimRewards(account, depositID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ObserveClaim()
	if info, err := s.engine.Info(); err == nil {
		for i, rt := range info.RewardTokens {
			if i >= len(rewards) {
				break
			}
			amount, _ := new(big.Float).SetInt(rewards[i]).Float64()
			s.metrics.AddRewardsClaimed(rt.Token.Hex(), amount)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"rewards": amountStrings(rewards)})
}

// view handlers --------------------------------------------------------------

func (s *Server) handleFarmInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := s.engine.Info()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleFundInfo(w http.ResponseWriter, r *http.Request) {
	fundID, err := strconv.ParseUint(chi.URLParam(r, "fundID"), 10, 8)
	if err != nil {
		s.badRequest(w, "invalid fund id")
		return
	}
	info, err := s.engine.GetRewardFundInfo(uint8(fundID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"totalLiquidity":   info.TotalLiquidity.String(),
		"rewardsPerSecond": amountStrings(info.RewardsPerSecond),
	})
}

func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	count, err := s.engine.GetNumDeposits(account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"numDeposits": count})
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	deposit, err := s.engine.GetDeposit(account, depositID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deposit)
}

func (s *Server) handleComputeRewards(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	rewards, err := s.engine.ComputeRewards(account, depositID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"rewards": amountStrings(rewards)})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	count, err := s.engine.GetNumSubscriptions(account, depositID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"numSubscriptions": count})
}

func (s *Server) handleSubscriptionInfo(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	depositID, ok := s.urlDepositID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		s.badRequest(w, "invalid subscription index")
		return
	}
	sub, err := s.engine.GetSubscriptionInfo(account, depositID, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleRewardBalance(w http.ResponseWriter, r *http.Request) {
	token, ok := s.urlToken(w, r)
	if !ok {
		return
	}
	balance, err := s.engine.GetRewardBalance(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	asFloat, _ := new(big.Float).SetInt(balance).Float64()
	s.metrics.SetRewardBalance(token.Hex(), asFloat)
	s.writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (s *Server) handleRewardRates(w http.ResponseWriter, r *http.Request) {
	token, ok := s.urlToken(w, r)
	if !ok {
		return
	}
	rates, err := s.engine.GetRewardRates(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"rates": amountStrings(rates)})
}

// reward-token handlers ------------------------------------------------------

func (s *Server) handleAddRewards(w http.ResponseWriter, r *http.Request) {
	token, ok := s.urlToken(w, r)
	if !ok {
		return
	}
	var req struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	from, ok := parseAddress(req.From)
	if !ok {
		s.badRequest(w, "invalid from address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		s.badRequest(w, "invalid amount")
		return
	}
	if err := s.engine.AddRewards(from, token, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetRewardRate(w http.ResponseWriter, r *http.Request) {
	token, ok := s.urlToken(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	rates := make([]*big.Int, 0, len(req.Rates))
	for _, raw := range req.Rates {
		rate, ok := parseAmount(raw)
		if !ok {
			s.badRequest(w, "invalid rate value")
			return
		}
		rates = append(rates, rate)
	}
	if err := s.engine.SetRewardRate(caller, token, rates); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecoverRewardFunds(w http.ResponseWriter, r *http.Request) {
	token, ok := s.urlToken(w, r)
	if !ok {
		return
	}
	var req recoverRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	var amount *big.Int
	if strings.EqualFold(strings.TrimSpace(req.Amount), "max") {
		amount = farm.RecoverMax
	} else {
		parsed, ok := parseAmount(req.Amount)
		if !ok {
			s.badRequest(w, "invalid amount")
			return
		}
		amount = parsed
	}
	recovered, err := s.engine.RecoverRewardFunds(caller, token, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"recovered": recovered.String()})
}

// admin handlers -------------------------------------------------------------

func (s *Server) handlePauseSwitch(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	if err := s.engine.FarmPauseSwitch(caller, req.Paused); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SetPaused(req.Paused)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCloseFarm(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	if err := s.engine.CloseFarm(caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.SetClosed(true)
	s.metrics.SetPaused(true)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateCooldownPeriod(w http.ResponseWriter, r *http.Request) {
	var req cooldownRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	if err := s.engine.UpdateCooldownPeriod(caller, req.Period); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateFarmStartTime(w http.ResponseWriter, r *http.Request) {
	var req startTimeRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	if err := s.engine.UpdateFarmStartTime(caller, req.StartTime); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecoverERC20(w http.ResponseWriter, r *http.Request) {
	var req recoverERC20Request
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, "malformed request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.badRequest(w, "invalid caller address")
		return
	}
	token, ok := parseAddress(req.Token)
	if !ok {
		s.badRequest(w, "invalid token address")
		return
	}
	amount, err := s.engine.RecoverERC20(caller, token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"recovered": amount.String()})
}

// history handlers -----------------------------------------------------------

func (s *Server) handleHistoryByAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.urlAccount(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.history.ByAccount(account.Hex(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryByType(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.history.ByType(chi.URLParam(r, "type"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// refreshFundGauges projects current fund liquidity into the Prometheus
// gauges after any liquidity-changing operation.
func (s *Server) refreshFundGauges() {
	for fundID := uint8(0); fundID < 2; fundID++ {
		info, err := s.engine.GetRewardFundInfo(fundID)
		if err != nil {
			break
		}
		liquidity, _ := new(big.Float).SetInt(info.TotalLiquidity).Float64()
		s.metrics.SetFundLiquidity(strconv.Itoa(int(fundID)), liquidity)
	}
}
