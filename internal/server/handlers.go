package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"coinpulse/internal/live"
	"coinpulse/internal/market"
	"coinpulse/internal/service"
)

// rateWindowDays converts a chart timeframe into the span of reference
// rate history the conversion stage needs.
func rateWindowDays(tf market.Timeframe) int {
	days := int(tf.Duration() / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !market.ValidAddress(address) {
		respondError(w, http.StatusBadRequest, "invalid coin address")
		return
	}
	tf, err := market.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid timeframe, expected one of 24h, 7d, 30d, 1y")
		return
	}

	days := rateWindowDays(tf)
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid days, expected a positive integer")
			return
		}
		days = parsed
	}

	result, err := s.svc.GetPriceHistory(r.Context(), address, tf, days)
	if err != nil {
		if errors.Is(err, service.ErrAllSourcesFailed) {
			respondError(w, http.StatusInternalServerError, "all market data sources are unavailable")
			return
		}
		s.logger.Error().Err(err).Str("coin", address).Msg("history request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondOK(w, result, result.Message)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !market.ValidAddress(address) {
		respondError(w, http.StatusBadRequest, "invalid coin address")
		return
	}

	result, err := s.svc.GetRecentActivity(r.Context(), address)
	if err != nil {
		if errors.Is(err, service.ErrAllSourcesFailed) {
			respondError(w, http.StatusInternalServerError, "all market data sources are unavailable")
			return
		}
		s.logger.Error().Err(err).Str("coin", address).Msg("activity request failed")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondOK(w, result, result.Message)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := live.ServeWS(s.hub, w, r, s.logger); err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"activeCoins": len(s.hub.ActiveCoins()),
	}, "")
}
