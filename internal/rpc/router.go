// Package rpc serves the operator's HTTP API: transfer admission, ledger and
// batch queries, the sync point, an SSE event stream and prometheus metrics.
package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rollupd/internal/app"
	"rollupd/internal/buildinfo"
	"rollupd/internal/packer"
	"rollupd/internal/pool"
	"rollupd/internal/state"
	"rollupd/internal/types"
)

type Config struct {
	VerifySignatures bool    `mapstructure:"verify-signatures"`
	PubkeyFile       string  `mapstructure:"pubkey-file"`
	TxRate           float64 `mapstructure:"tx-rate"`  // transfers per second, 0 disables the limit
	TxBurst          int     `mapstructure:"tx-burst"`
	TokenDecimals    int32   `mapstructure:"token-decimals"`
}

func DefaultConfig() Config {
	return Config{
		TxRate:        50,
		TxBurst:       100,
		TokenDecimals: 18,
	}
}

type Opt func(*server)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *server) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *server) {
		s.cfg = cfg
	}
}

// WithRegistry turns on signature verification of submitted transfers.
func WithRegistry(r *Registry) Opt {
	return func(s *server) {
		s.registry = r
	}
}

// WithOperator sets the settlement address reported by /node/info.
func WithOperator(addr string) Opt {
	return func(s *server) {
		s.operator = addr
	}
}

type server struct {
	logger   *zap.Logger
	cfg      Config
	eng      *app.Engine
	sync     *packer.SyncPoint
	registry *Registry
	operator string
}

func NewRouter(eng *app.Engine, sp *packer.SyncPoint, opts ...Opt) http.Handler {
	s := &server{
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
		eng:    eng,
		sync:   sp,
	}
	for _, opt := range opts {
		opt(s)
	}

	limit := rate.Inf
	if s.cfg.TxRate > 0 {
		limit = rate.Limit(s.cfg.TxRate)
	}
	limiter := rate.NewLimiter(limit, max(s.cfg.TxBurst, 1))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/node/info", s.nodeInfo)
	mux.HandleFunc("/sync", s.syncPoint)
	mux.HandleFunc("/pool", s.poolInfo)
	mux.HandleFunc("/account/", s.account)
	mux.Handle("/tx", rateLimit(limiter, s.precheckTransfer(http.HandlerFunc(s.submitTx))))
	mux.HandleFunc("/tx/", s.receipt)
	mux.HandleFunc("/batch/", s.batch)
	mux.HandleFunc("/events/stream", s.events)
	return promhttp.InstrumentHandlerCounter(requests, mux)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func onlyGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"time_utc": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) nodeInfo(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":           buildinfo.Version,
		"commit":            buildinfo.Commit,
		"build_date":        buildinfo.Date,
		"go":                buildinfo.Go,
		"platform":          buildinfo.Platform(),
		"operator":          s.operator,
		"fee_receiver":      s.eng.FeeReceiver(),
		"state_root":        hex.EncodeToString(s.eng.StateRoot()),
		"token_decimals":    s.cfg.TokenDecimals,
		"verify_signatures": s.registry != nil,
	})
}

func (s *server) syncPoint(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Get())
}

func (s *server) poolInfo(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"size": s.eng.PoolSize()})
}

func (s *server) account(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	idx, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/account/"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_index")
		return
	}
	acc, err := s.eng.Account(uint32(idx))
	switch {
	case errors.Is(err, state.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "not_found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"index":     idx,
		"pubkey_id": acc.PubkeyID,
		"token_id":  acc.TokenID,
		"balance":   acc.Balance.String(),
		"display":   decimal.NewFromBigInt(acc.Balance, -s.cfg.TokenDecimals).String(),
		"nonce":     acc.Nonce.String(),
	})
}

func (s *server) submitTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	signed, ok := transferFrom(r.Context())
	if !ok {
		reject(w, http.StatusBadRequest, reasonBadBody)
		return
	}
	rec, err := s.eng.AddTransfer(signed)
	switch {
	case errors.Is(err, pool.ErrDuplicate):
		reject(w, http.StatusConflict, reasonDuplicate)
		return
	case errors.Is(err, pool.ErrPoolFull):
		w.Header().Set("Retry-After", "1")
		reject(w, http.StatusServiceUnavailable, reasonPoolFull)
		return
	case err != nil:
		s.logger.Error("add transfer", zap.String("tx", signed.Hash()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	txAdmitted.Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"applied": false,
		"receipt": rec,
	})
}

func (s *server) receipt(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	h := strings.TrimPrefix(r.URL.Path, "/tx/")
	if h == "" {
		writeError(w, http.StatusBadRequest, "bad_hash")
		return
	}
	rec, ok := s.eng.Receipt(strings.ToLower(h))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) batch(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/batch/")
	var (
		hdr types.BatchHeader
		err error
	)
	if rest == "latest" {
		hdr, err = s.eng.LatestBatch()
	} else {
		id, perr := strconv.ParseUint(rest, 10, 64)
		if perr != nil || id == 0 {
			writeError(w, http.StatusBadRequest, "bad_batch")
			return
		}
		hdr, err = s.eng.Batch(id)
	}
	switch {
	case errors.Is(err, app.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, hdr)
	}
}

func (s *server) events(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.eng.SubscribeForSSE()
	defer s.eng.UnsubscribeForSSE(ch)
	_, _ = w.Write([]byte(": connected\n\n"))
	fl.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: push\ndata: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			fl.Flush()
		}
	}
}
