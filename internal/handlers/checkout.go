package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/service"
)

// POST /v1/orders/{orderId}/pix
func startPixHandler(checkout *service.Checkout, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders/{orderId}/pix")
		defer span.End()

		charge, err := checkout.StartPix(ctx, chi.URLParam(r, "orderId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, charge)
	}
}

// POST /v1/orders/{orderId}/boleto
func startBoletoHandler(checkout *service.Checkout, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/orders/{orderId}/boleto")
		defer span.End()

		boleto, err := checkout.StartBoleto(ctx, chi.URLParam(r, "orderId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, boleto)
	}
}

// GET /v1/orders/{orderId}/payment-status
func paymentStatusHandler(checkout *service.Checkout, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := checkout.PaymentStatus(r.Context(), chi.URLParam(r, "orderId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
