package rpc

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rollupd/internal/codec"
	"rollupd/internal/crypto"
	"rollupd/internal/tx"
)

// maxTxBody bounds a single POST /tx body.
const maxTxBody = 16 << 10

// Rejection reasons reported in the "reason" field and the
// tx_rejected_total metric.
const (
	reasonBadBody        = "bad_body"
	reasonZeroAmount     = "zero_amount"
	reasonNotCompactable = "not_compactable"
	reasonUnknownSender  = "verify:unknown_sender"
	reasonUnknownPubkey  = "verify:unknown_pubkey"
	reasonBadSignature   = "verify:bad_signature"
	reasonRateLimited    = "rate_limited"
	reasonDuplicate      = "duplicate"
	reasonPoolFull       = "pool_full"
)

type transferKey struct{}

func transferFrom(ctx context.Context) (tx.Signed, bool) {
	s, ok := ctx.Value(transferKey{}).(tx.Signed)
	return s, ok
}

func reject(w http.ResponseWriter, code int, reason string) {
	txRejected.WithLabelValues(reason).Inc()
	writeJSON(w, code, map[string]any{"ok": false, "applied": false, "reason": reason})
}

// rateLimit guards the transfer submission endpoint.
func rateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			reject(w, http.StatusTooManyRequests, reasonRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// precheckTransfer decodes the submitted transfer, rejects the ones that
// could never land in a batch and, when a registry is set, checks that the
// signature was made by the key bound to the sender's account.
func (s *server) precheckTransfer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTxBody))
		if err != nil {
			reject(w, http.StatusRequestEntityTooLarge, reasonBadBody)
			return
		}
		signed, err := codec.DecodeTransfer(r.Header.Get("Content-Type"), body)
		if err != nil {
			s.logger.Debug("undecodable transfer", zap.Error(err))
			code := http.StatusBadRequest
			if errors.Is(err, codec.ErrUnsupportedContentType) {
				code = http.StatusUnsupportedMediaType
			}
			reject(w, code, reasonBadBody)
			return
		}
		if signed.Amount.Sign() == 0 {
			reject(w, http.StatusUnprocessableEntity, reasonZeroAmount)
			return
		}
		if err := signed.Compactable(); err != nil {
			reject(w, http.StatusUnprocessableEntity, reasonNotCompactable)
			return
		}
		if s.registry != nil {
			if reason := s.verify(signed); reason != "" {
				s.logger.Debug("transfer failed verification",
					zap.String("tx", signed.Hash()),
					zap.Uint32("from", signed.FromIndex),
					zap.String("reason", reason),
				)
				reject(w, http.StatusUnauthorized, reason)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), transferKey{}, signed)))
	})
}

func (s *server) verify(signed tx.Signed) string {
	acc, err := s.eng.Account(signed.FromIndex)
	if err != nil {
		return reasonUnknownSender
	}
	pk, err := s.registry.Lookup(acc.PubkeyID)
	if err != nil {
		return reasonUnknownPubkey
	}
	sig, err := crypto.SignatureFromBytes(signed.Signature)
	if err != nil {
		return reasonBadSignature
	}
	if err := crypto.Verify(pk, signed.Message(), sig); err != nil {
		return reasonBadSignature
	}
	return ""
}
