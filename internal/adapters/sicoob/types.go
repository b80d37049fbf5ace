package sicoob

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenResponse representa a resposta do endpoint de autenticação OAuth2
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// PixCalendario define o calendário de uma cobrança PIX
type PixCalendario struct {
	Criacao   string `json:"criacao,omitempty"`
	Expiracao int    `json:"expiracao"` // Tempo em segundos até expirar
}

// PixDevedor representa os dados do devedor/pagador
type PixDevedor struct {
	CPF  string `json:"cpf,omitempty"`
	CNPJ string `json:"cnpj,omitempty"`
	Nome string `json:"nome,omitempty"`
}

// PixValor representa o valor da cobrança
type PixValor struct {
	Original string `json:"original"` // Valor como string com 2 casas decimais (ex: "100.00")
}

// PixCobRequest representa uma requisição para criar cobrança PIX imediata
type PixCobRequest struct {
	Calendario         PixCalendario `json:"calendario"`
	Devedor            PixDevedor    `json:"devedor"`
	Valor              PixValor      `json:"valor"`
	Chave              string        `json:"chave"` // Chave PIX do recebedor
	SolicitacaoPagador string        `json:"solicitacaoPagador"`
}

// PixCobResponse representa a resposta de uma cobrança PIX criada
type PixCobResponse struct {
	Calendario         PixCalendario `json:"calendario"`
	TxID               string        `json:"txid"`
	Revisao            int           `json:"revisao"`
	Location           string        `json:"location,omitempty"`
	Status             string        `json:"status"` // ATIVA, CONCLUIDA, REMOVIDA_PELO_USUARIO_RECEBEDOR, REMOVIDA_PELO_PSP
	Devedor            *PixDevedor   `json:"devedor,omitempty"`
	Valor              PixValor      `json:"valor"`
	Chave              string        `json:"chave"`
	SolicitacaoPagador string        `json:"solicitacaoPagador,omitempty"`
	BRCode             string        `json:"brcode,omitempty"`
}

// PixWebhookRequest é o corpo do registro de webhook
type PixWebhookRequest struct {
	WebhookURL string `json:"webhookUrl"`
}

// PixWebhook representa os dados de um webhook configurado
type PixWebhook struct {
	WebhookURL string `json:"webhookUrl"`
	Chave      string `json:"chave"`
	Criacao    string `json:"criacao,omitempty"`
}

// BoletoPagador representa o pagador de um boleto
type BoletoPagador struct {
	NumeroCpfCnpj string `json:"numeroCpfCnpj"`
	Nome          string `json:"nome"`
	Endereco      string `json:"endereco"`
	Bairro        string `json:"bairro"`
	Cidade        string `json:"cidade"`
	Cep           string `json:"cep"`
	UF            string `json:"uf"`
	Email         string `json:"email"`
}

// BoletoRequest representa a inclusão de um boleto na cobrança bancária v3
type BoletoRequest struct {
	NumeroCliente                   int64         `json:"numeroCliente"`
	CodigoModalidade                int           `json:"codigoModalidade"`
	NumeroContaCorrente             int64         `json:"numeroContaCorrente"`
	CodigoEspecieDocumento          string        `json:"codigoEspecieDocumento"`
	DataEmissao                     string        `json:"dataEmissao"`
	SeuNumero                       string        `json:"seuNumero"`
	IdentificacaoEmissaoBoleto      int           `json:"identificacaoEmissaoBoleto"`
	IdentificacaoDistribuicaoBoleto int           `json:"identificacaoDistribuicaoBoleto"`
	Valor                           json.Number   `json:"valor"`
	DataVencimento                  string        `json:"dataVencimento"`
	DataLimitePagamento             string        `json:"dataLimitePagamento"`
	TipoDesconto                    int           `json:"tipoDesconto"`
	TipoMulta                       int           `json:"tipoMulta"`
	TipoJurosMora                   int           `json:"tipoJurosMora"`
	NumeroParcela                   int           `json:"numeroParcela"`
	Pagador                         BoletoPagador `json:"pagador"`
	MensagensInstrucao              []string      `json:"mensagensInstrucao"`
	GerarPdf                        bool          `json:"gerarPdf"`
	CodigoCadastrarPIX              int           `json:"codigoCadastrarPIX"`
}

// BoletoEnvelope é o envelope de resposta da cobrança bancária
type BoletoEnvelope struct {
	Resultado *BoletoResultado `json:"resultado"`
}

// BoletoResultado representa o boleto devolvido pelo Sicoob
type BoletoResultado struct {
	NossoNumero        FlexString      `json:"nossoNumero"`
	SeuNumero          FlexString      `json:"seuNumero"`
	CodigoBarras       string          `json:"codigoBarras"`
	LinhaDigitavel     string          `json:"linhaDigitavel"`
	Valor              decimal.Decimal `json:"valor"`
	DataVencimento     string          `json:"dataVencimento"`
	DataEmissao        string          `json:"dataEmissao"`
	PdfBoleto          string          `json:"pdfBoleto"`
	QrCode             string          `json:"qrCode"`
	Pagador            json.RawMessage `json:"pagador,omitempty"`
	MensagensInstrucao []string        `json:"mensagensInstrucao"`
}

// apiErrorBody reúne os formatos de erro conhecidos (OAuth2, problem+json do
// PIX e a lista de mensagens da cobrança bancária)
type apiErrorBody struct {
	ErrorDescription string `json:"error_description"`
	Detail           string `json:"detail"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	Mensagens        []struct {
		Mensagem string     `json:"mensagem"`
		Codigo   FlexString `json:"codigo"`
	} `json:"mensagens"`
}

// message retorna a primeira descrição de erro preenchida
func (b apiErrorBody) message() string {
	switch {
	case b.ErrorDescription != "":
		return b.ErrorDescription
	case b.Detail != "":
		return b.Detail
	case b.Title != "":
		return b.Title
	case len(b.Mensagens) > 0 && b.Mensagens[0].Mensagem != "":
		return b.Mensagens[0].Mensagem
	case b.Message != "":
		return b.Message
	}
	return ""
}

// FlexString aceita valores JSON numéricos ou string (ex: nossoNumero)
type FlexString string

// UnmarshalJSON implementa json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(strings.TrimSpace(n.String()))
	return nil
}

// String retorna o valor como string
func (f FlexString) String() string {
	return string(f)
}
