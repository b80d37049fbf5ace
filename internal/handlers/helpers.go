package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/adapters/sicoob"
	"github.com/magnani/sicoob-payment/internal/ports"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// handleServiceError converte os erros do checkout em respostas HTTP
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		configErr    *sicoob.ConfigurationError
		validation   *sicoob.ValidationError
		apiErr       *sicoob.APIError
		transportErr *sicoob.TransportError
		decodeErr    *sicoob.DecodeError
	)

	switch {
	case errors.Is(err, ports.ErrOrderNotFound):
		logger.Debug("pedido não encontrado", zap.Error(err))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ports.ErrAlreadySettled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		logger.Debug("erro de validação", zap.String("field", validation.Field), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &configErr):
		logger.Error("integração Sicoob não configurada", zap.String("field", configErr.Field), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, sicoob.ErrCircuitOpen):
		logger.Error("circuito Sicoob aberto", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr):
		if sicoob.IsServerError(err) {
			logger.Error("Sicoob indisponível", zap.Int("status", apiErr.StatusCode), zap.String("body", apiErr.Body))
		} else {
			logger.Warn("requisição recusada pelo Sicoob", zap.Int("status", apiErr.StatusCode), zap.String("body", apiErr.Body))
		}
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &transportErr):
		logger.Error("falha de comunicação com o Sicoob", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &decodeErr):
		logger.Error("resposta do Sicoob inválida", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("erro não tratado", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "erro interno")
	}
}
