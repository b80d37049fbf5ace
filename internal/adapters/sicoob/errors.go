package sicoob

import (
	"errors"
	"fmt"
	"net/http"
)

// Erros sentinela para condições comuns
var (
	// ErrTokenNotFound indica resposta 2xx de autenticação sem access_token
	ErrTokenNotFound = errors.New(MsgTokenNotFound)

	// ErrCircuitOpen indica que o disjuntor está aberto e a chamada não foi feita
	ErrCircuitOpen = errors.New("sicoob: circuito aberto, chamada não realizada")
)

// ConfigurationError indica credencial ou configuração ausente.
// É detectado antes de qualquer chamada de rede.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError representa um erro de validação com detalhes do campo
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError cria um novo ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// TransportError representa falha de rede, TLS ou timeout
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Erro na comunicação HTTPS: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError representa uma resposta fora da faixa 2xx do Sicoob
type APIError struct {
	StatusCode int
	Message    string
	Body       string // corpo bruto para diagnóstico
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Erro na API (Status %d): %s", e.StatusCode, e.Message)
}

// DecodeError indica corpo de resposta ou PDF que não pôde ser decodificado
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.What
	}
	return fmt.Sprintf("%s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsConfiguration retorna true se o erro é de configuração ausente
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsValidation retorna true se o erro é de validação local
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsNotFound retorna true se o erro indica que o recurso não foi encontrado
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsUnauthorized retorna true se o erro indica falha de autenticação
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsServerError retorna true se o erro é do servidor (5xx)
func IsServerError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return false
}

// IsTransport retorna true se o erro ocorreu antes de haver resposta HTTP
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
