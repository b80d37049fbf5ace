// Package sicoob implementa o adaptador para as APIs PIX e Cobrança Bancária do Sicoob.
//
// Este pacote implementa:
//   - Obtenção de token OAuth2 (client_credentials com mTLS)
//   - PIX imediato (cobranças)
//   - Registro, consulta e remoção do webhook da chave PIX
//   - Emissão de boletos com gravação do PDF
//
// # Autenticação
//
// O Sicoob autentica o lojista pelo certificado digital (mTLS). Você precisa:
//   - Client ID (do portal do desenvolvedor Sicoob)
//   - Certificado .pem (certificado e chave no mesmo arquivo) ou .pfx/.p12
//
// Nenhum client secret é enviado. Cada operação pede um token novo para o
// escopo da API usada; não há cache de token.
//
// # Início Rápido
//
// Criar o cliente:
//
//	client, err := sicoob.NewClient(cfg.Sicoob, nil, logger)
//
// Criar uma cobrança PIX:
//
//	pix := sicoob.NewPixService(client)
//	charge, err := pix.CreateCharge(ctx, sicoob.ChargeRequest{
//	    Payer:       sicoob.PixPayer{CPF: "73371160041", Name: "João Silva Santos"},
//	    Amount:      decimal.RequireFromString("100.00"),
//	    Key:         cfg.Pix.Key,
//	    Description: cfg.Pix.Description,
//	})
//
// O pagador usa charge.BRCode (copia e cola) ou o QR Code gerado a partir dele.
//
// Emitir um boleto:
//
//	boletos := sicoob.NewBoletoService(client, blobStore, metrics, nil)
//	b, err := boletos.CreateBoleto(ctx, sicoob.BoletoOrder{
//	    OrderID: "1234",
//	    Amount:  order.Total,
//	    Payer:   order.Customer,
//	}, cfg.Boleto)
//
// Se o PDF não puder ser gravado o boleto continua válido; a falha fica em b.PDF.Err.
//
// # Tratamento de Erros
//
// O pacote fornece erros tipados para condições comuns:
//
//	if sicoob.IsConfiguration(err) {
//	    // Client ID ou certificado ausente; nenhuma chamada foi feita
//	}
//	if sicoob.IsUnauthorized(err) {
//	    // Certificado não aceito pelo Sicoob
//	}
//	if errors.Is(err, sicoob.ErrTokenNotFound) {
//	    // Autenticação respondeu 2xx sem access_token
//	}
//
// # Documentação da API
//
// Para mais detalhes, consulte a documentação oficial:
// https://developers.sicoob.com.br
package sicoob
