package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/responses"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/validators"
	inventorysvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

// ProductAvailability returns sellable stock for a product, optionally
// scoped to one variant via the variantId query parameter.
func ProductAvailability(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var variantID *uuid.UUID
		if raw := r.URL.Query().Get("variantId"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid variantId"))
				return
			}
			variantID = &parsed
		}

		availability, err := svc.GetAvailability(r.Context(), productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, availability)
	}
}
