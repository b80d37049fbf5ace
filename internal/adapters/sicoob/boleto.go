package sicoob

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/config"
	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/observability"
	"github.com/magnani/sicoob-payment/internal/ports"
)

// BoletoOrder reúne os dados do pedido necessários para emitir o boleto
type BoletoOrder struct {
	OrderID string
	Amount  decimal.Decimal
	Payer   domain.Customer
}

// Boleto representa o boleto emitido, já no esquema interno
type Boleto struct {
	OrderID        string          `json:"order_id"`
	NossoNumero    string          `json:"nosso_numero"`
	SeuNumero      string          `json:"seu_numero"`
	CodigoBarras   string          `json:"codigo_barras"`
	LinhaDigitavel string          `json:"linha_digitavel"`
	Valor          decimal.Decimal `json:"valor"`
	DataVencimento string          `json:"data_vencimento"`
	DataEmissao    string          `json:"data_emissao"`
	QRCode         string          `json:"qr_code"`
	Pagador        json.RawMessage `json:"pagador,omitempty"`
	Instructions   []string        `json:"mensagens_instrucao"`
	PDF            *PDFResult      `json:"pdf,omitempty"`
}

// PDFResult é o resultado da gravação do PDF. Uma falha aqui não
// invalida o boleto, que já foi registrado no banco.
type PDFResult struct {
	File  *ports.StoredFile `json:"file,omitempty"`
	Err   error             `json:"-"`
	Error string            `json:"error,omitempty"`
}

// BoletoService emite boletos na cobrança bancária v3
type BoletoService struct {
	client  *Client
	blobs   ports.BlobStore
	metrics *observability.Metrics
	now     func() time.Time
}

// NewBoletoService cria um novo BoletoService. now pode ser nil.
func NewBoletoService(client *Client, blobs ports.BlobStore, metrics *observability.Metrics, now func() time.Time) *BoletoService {
	if now == nil {
		now = time.Now
	}
	return &BoletoService{
		client:  client,
		blobs:   blobs,
		metrics: metrics,
		now:     now,
	}
}

// BuildBoletoPayload valida configuração e pedido e monta o corpo da inclusão
func BuildBoletoPayload(order BoletoOrder, settings config.BoletoSettings, now time.Time) (*BoletoRequest, error) {
	if settings.AccountNumber == 0 {
		return nil, &ConfigurationError{Field: "account_number", Message: MsgAccountMissing}
	}
	if settings.ContractNumber == 0 {
		return nil, &ConfigurationError{Field: "contract_number", Message: MsgContractMissing}
	}
	if strings.TrimSpace(order.Payer.CPF) == "" || strings.TrimSpace(order.Payer.Name) == "" ||
		!order.Amount.IsPositive() || strings.TrimSpace(order.OrderID) == "" {
		return nil, NewValidationError("order", MsgBoletoOrderIncomplete)
	}

	dueDays := settings.DueDays
	if dueDays <= 0 {
		dueDays = config.DefaultDueDays
	}

	today := now.UTC()
	issue := today.Format(boletoDateLayout)
	due := today.AddDate(0, 0, dueDays).Format(boletoDateLayout)

	return &BoletoRequest{
		NumeroCliente:                   settings.ContractNumber,
		CodigoModalidade:                boletoModalidade,
		NumeroContaCorrente:             settings.AccountNumber,
		CodigoEspecieDocumento:          boletoEspecieDocumento,
		DataEmissao:                     issue,
		SeuNumero:                       order.OrderID,
		IdentificacaoEmissaoBoleto:      boletoEmissaoBeneficiario,
		IdentificacaoDistribuicaoBoleto: boletoDistribuicao,
		Valor:                           json.Number(order.Amount.StringFixed(2)),
		DataVencimento:                  due,
		DataLimitePagamento:             due,
		TipoDesconto:                    boletoSemDesconto,
		TipoMulta:                       boletoSemMulta,
		TipoJurosMora:                   boletoTipoJurosMora,
		NumeroParcela:                   boletoParcelaUnica,
		Pagador: BoletoPagador{
			NumeroCpfCnpj: domain.OnlyDigits(order.Payer.CPF),
			Nome:          strings.TrimSpace(order.Payer.Name),
			Endereco:      strings.TrimSpace(order.Payer.Address),
			Bairro:        strings.TrimSpace(order.Payer.Neighborhood),
			Cidade:        strings.TrimSpace(order.Payer.City),
			Cep:           domain.OnlyDigits(order.Payer.Postcode),
			UF:            strings.TrimSpace(order.Payer.State),
			Email:         strings.TrimSpace(order.Payer.Email),
		},
		MensagensInstrucao: FilterInstructions(settings.Instructions),
		GerarPdf:           true,
		CodigoCadastrarPIX: boletoCadastrarPIX,
	}, nil
}

// FilterInstructions remove instruções vazias mantendo a ordem (máx. 5)
func FilterInstructions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, inst := range in {
		inst = strings.TrimSpace(inst)
		if inst == "" {
			continue
		}
		out = append(out, inst)
		if len(out) == config.MaxInstructions {
			break
		}
	}
	return out
}

// CreateBoleto emite o boleto e grava o PDF retornado
func (s *BoletoService) CreateBoleto(ctx context.Context, order BoletoOrder, settings config.BoletoSettings) (*Boleto, error) {
	ctx, span := tracer.Start(ctx, "BoletoService.CreateBoleto")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.OrderID))

	now := s.now()
	payload, err := BuildBoletoPayload(order, settings, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.client.logger.Info("sicoob: criando boleto",
		zap.String("nome", payload.Pagador.Nome),
		zap.String("valor", payload.Valor.String()),
		zap.String("pedido", payload.SeuNumero),
	)

	resp, err := s.client.doAuthenticated(ctx, "boleto.create", http.MethodPost, s.client.endpoints.Boleto, BoletoScope, payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.client.logger.Error("sicoob: erro ao criar boleto", zap.Error(err))
		return nil, err
	}

	var envelope BoletoEnvelope
	if err := resp.Decode(&envelope); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if envelope.Resultado == nil {
		span.SetStatus(codes.Error, MsgInvalidAPIResponse)
		return nil, &DecodeError{What: MsgInvalidAPIResponse}
	}

	r := envelope.Resultado
	boleto := &Boleto{
		OrderID:        order.OrderID,
		NossoNumero:    r.NossoNumero.String(),
		SeuNumero:      r.SeuNumero.String(),
		CodigoBarras:   r.CodigoBarras,
		LinhaDigitavel: r.LinhaDigitavel,
		Valor:          r.Valor,
		DataVencimento: r.DataVencimento,
		DataEmissao:    r.DataEmissao,
		QRCode:         r.QrCode,
		Pagador:        r.Pagador,
		Instructions:   r.MensagensInstrucao,
	}

	if r.PdfBoleto != "" {
		boleto.PDF = s.savePDF(ctx, r.PdfBoleto, order.OrderID, now)
	}

	s.client.logger.Info("sicoob: boleto criado", zap.String("nosso_numero", boleto.NossoNumero))
	return boleto, nil
}

// savePDF decodifica o PDF em base64 e grava no BlobStore
func (s *BoletoService) savePDF(ctx context.Context, encoded, orderID string, now time.Time) *PDFResult {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		s.metrics.IncBoletoPDF("decode_error")
		return pdfFailure(&DecodeError{What: "Erro ao decodificar PDF do boleto", Err: err})
	}

	name := path.Join(BoletoPDFDir, fmt.Sprintf("boleto-%s-%s.pdf", orderID, now.Format("2006-01-02-15-04-05")))
	file, err := s.blobs.Save(ctx, data, name)
	if err != nil {
		s.metrics.IncBoletoPDF("storage_error")
		s.client.logger.Error("sicoob: erro ao salvar PDF do boleto", zap.String("pedido", orderID), zap.Error(err))
		return pdfFailure(err)
	}

	s.metrics.IncBoletoPDF("saved")
	return &PDFResult{File: file}
}

func pdfFailure(err error) *PDFResult {
	return &PDFResult{Err: err, Error: err.Error()}
}
