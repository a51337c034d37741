package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/middleware"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/responses"
	coinsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

const defaultLedgerLimit = 100

type coinBalanceResponse struct {
	BalancePaise int64 `json:"balancePaise"`
}

type ledgerEntryResponse struct {
	EntryID     uuid.UUID        `json:"entryId"`
	AmountPaise int64            `json:"amountPaise"`
	Source      enums.CoinSource `json:"source"`
	ReferenceID *uuid.UUID       `json:"referenceId,omitempty"`
	Note        *string          `json:"note,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// CoinBalance returns the caller's current coin balance.
func CoinBalance(svc coinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coins service unavailable"))
			return
		}

		balance, err := svc.Balance(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coinBalanceResponse{BalancePaise: balance})
	}
}

// CoinHistory returns the caller's coin journal, newest first.
func CoinHistory(svc coinsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coins service unavailable"))
			return
		}

		limit := defaultLedgerLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = parsed
		}

		entries, err := svc.History(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]ledgerEntryResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, ledgerEntryResponse{
				EntryID:     entry.ID,
				AmountPaise: entry.AmountPaise,
				Source:      entry.Source,
				ReferenceID: entry.ReferenceID,
				Note:        entry.Note,
				CreatedAt:   entry.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}
