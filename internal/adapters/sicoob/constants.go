package sicoob

import "time"

const (
	// Produção
	AuthURLProd   = "https://auth.sicoob.com.br/auth/realms/cooperado/protocol/openid-connect/token"
	PixURLProd    = "https://api.sicoob.com.br/pix/api/v2"
	BoletoURLProd = "https://api.sicoob.com.br/cobranca-bancaria/v3/boletos"
)

// Escopos OAuth2 exigidos por cada produto
const (
	PixScope    = "cob.read cob.write cobv.write cobv.read lotecobv.write lotecobv.read pix.write pix.read webhook.read webhook.write payloadlocation.write payloadlocation.read"
	BoletoScope = "boletos_inclusao boletos_consulta boletos_alteracao"
)

const (
	// RequestTimeout é o limite de cada chamada HTTP ao Sicoob
	RequestTimeout = 30 * time.Second

	// PixChargeExpiration é a validade da cobrança imediata (30 horas)
	PixChargeExpiration = 108000

	// BoletoPDFDir é o diretório onde os PDFs de boleto são gravados
	BoletoPDFDir = "sicoob-boletos"
)

// Campos fixos do boleto (cobrança bancária v3)
const (
	boletoModalidade          = 1
	boletoEspecieDocumento    = "DM"
	boletoEmissaoBeneficiario = 1
	boletoDistribuicao        = 1
	boletoSemDesconto         = 0
	boletoSemMulta            = 0
	boletoTipoJurosMora       = 3
	boletoParcelaUnica        = 1
	boletoCadastrarPIX        = 1
	boletoDateLayout          = "2006-01-02"
)

// Mensagens exibidas ao lojista
const (
	MsgClientIDMissing       = "ID do Cliente não configurado."
	MsgCertificateMissing    = "Certificado digital não configurado ou não encontrado."
	MsgTokenNotFound         = "Token de acesso não encontrado na resposta."
	MsgUnknownAPIError       = "Erro desconhecido na API."
	MsgInvalidAPIResponse    = "Resposta da API inválida."
	MsgPixKeyMissing         = "Chave PIX não configurada."
	MsgPixKeyNotProvided     = "Chave PIX não fornecida."
	MsgPixDescriptionMissing = "Descrição do PIX não configurada."
	MsgPixOrderIncomplete    = "Dados do pedido incompletos (CPF, nome ou valor)."
	MsgWebhookURLInvalid     = "URL do webhook inválida."
	MsgAccountMissing        = "Número da conta corrente não configurado."
	MsgContractMissing       = "Número do contrato não configurado."
	MsgBoletoOrderIncomplete = "Dados do pedido incompletos (CPF, nome, valor ou ID do pedido)."
)
