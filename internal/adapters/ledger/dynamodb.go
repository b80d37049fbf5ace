package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/ports"
)

// PixTxIDIndex é o GSI que indexa os pedidos pelo txid da cobrança PIX
const PixTxIDIndex = "pix_txid-index"

// DynamoAPI é o subconjunto do cliente DynamoDB usado pelo livro de pedidos
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// orderItem é o formato do pedido na tabela.
// Tabela: PK id (S); GSI pix_txid-index com PK pix_txid (S), projeção ALL.
type orderItem struct {
	ID            string            `dynamodbav:"id"`
	Total         string            `dynamodbav:"total"`
	Status        string            `dynamodbav:"status"`
	PaymentMethod string            `dynamodbav:"payment_method"`
	Customer      domain.Customer   `dynamodbav:"customer"`
	Meta          map[string]string `dynamodbav:"meta"`
	PixTxID       string            `dynamodbav:"pix_txid,omitempty"`
	Notes         []noteItem        `dynamodbav:"notes"`
	StockReduced  bool              `dynamodbav:"stock_reduced"`
	CreatedAt     string            `dynamodbav:"created_at"`
	UpdatedAt     string            `dynamodbav:"updated_at"`
}

type noteItem struct {
	ID        string `dynamodbav:"id"`
	Text      string `dynamodbav:"text"`
	CreatedAt string `dynamodbav:"created_at"`
}

// Dynamo implementa o OrderLedger sobre DynamoDB
type Dynamo struct {
	ddb       DynamoAPI
	tableName string
	now       func() time.Time
}

var (
	_ ports.OrderLedger = (*Dynamo)(nil)
	_ ports.Inventory   = (*Dynamo)(nil)
)

// NewDynamoDBClient cria o cliente DynamoDB.
// Com endpoint informado (DynamoDB local) usa credenciais estáticas.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if endpoint != "" {
		// O DynamoDB local não valida credenciais, mas o SDK exige alguma
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar configuração AWS: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewDynamo cria o livro de pedidos sobre a tabela informada
func NewDynamo(ddb DynamoAPI, tableName string) *Dynamo {
	if tableName == "" {
		tableName = "orders"
	}
	return &Dynamo{ddb: ddb, tableName: tableName, now: time.Now}
}

func (d *Dynamo) key(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func (d *Dynamo) timestamp() string {
	return d.now().UTC().Format(time.RFC3339Nano)
}

// Save grava ou substitui um pedido
func (d *Dynamo) Save(ctx context.Context, order *domain.Order) error {
	it := toOrderItem(order, d.timestamp())
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("erro ao serializar pedido: %w", err)
	}

	_, err = d.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("erro ao salvar pedido: %w", err)
	}
	return nil
}

// Get busca um pedido pelo id
func (d *Dynamo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := d.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.key(orderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar pedido: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ports.ErrOrderNotFound
	}
	return decodeOrder(out.Item)
}

// FindBySettlementKey consulta o GSI de txid filtrando pedidos PIX
func (d *Dynamo) FindBySettlementKey(ctx context.Context, txid string) (*domain.Order, error) {
	out, err := d.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(PixTxIDIndex),
		KeyConditionExpression: aws.String("#txid = :txid"),
		FilterExpression:       aws.String("#pm = :pm"),
		ExpressionAttributeNames: map[string]string{
			"#txid": "pix_txid",
			"#pm":   "payment_method",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":txid": &types.AttributeValueMemberS{Value: txid},
			":pm":   &types.AttributeValueMemberS{Value: domain.PaymentMethodPix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar pedido por txid: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ports.ErrOrderNotFound
	}
	return decodeOrder(out.Items[0])
}

// ApplySettlement grava a liquidação com UpdateItem condicional ao status
func (d *Dynamo) ApplySettlement(ctx context.Context, orderID string, record domain.SettlementRecord) error {
	expr, names, values := metaSetExpression(record.Metadata())
	names["#id"] = "id"
	names["#status"] = "status"
	names["#updated_at"] = "updated_at"
	values[":processing"] = &types.AttributeValueMemberS{Value: string(domain.OrderStatusProcessing)}
	values[":completed"] = &types.AttributeValueMemberS{Value: string(domain.OrderStatusCompleted)}
	values[":now"] = &types.AttributeValueMemberS{Value: d.timestamp()}

	_, err := d.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(d.tableName),
		Key:                                 d.key(orderID),
		ConditionExpression:                 aws.String("attribute_exists(#id) AND NOT (#status IN (:processing, :completed))"),
		UpdateExpression:                    aws.String("SET #status = :processing, #updated_at = :now" + expr),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			if len(cfe.Item) == 0 {
				return ports.ErrOrderNotFound
			}
			return ports.ErrAlreadySettled
		}
		return fmt.Errorf("erro ao liquidar pedido: %w", err)
	}
	return nil
}

// AppendNote adiciona uma nota ao final da lista do pedido
func (d *Dynamo) AppendNote(ctx context.Context, orderID, note string) error {
	entry, err := attributevalue.Marshal([]noteItem{{
		ID:        uuid.NewString(),
		Text:      note,
		CreatedAt: d.timestamp(),
	}})
	if err != nil {
		return fmt.Errorf("erro ao serializar nota: %w", err)
	}

	_, err = d.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 d.key(orderID),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		UpdateExpression:    aws.String("SET #notes = list_append(if_not_exists(#notes, :empty), :note)"),
		ExpressionAttributeNames: map[string]string{
			"#id":    "id",
			"#notes": "notes",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":note":  entry,
		},
	})
	return mapConditionError(err, "erro ao adicionar nota")
}

// UpdatePaymentMeta grava os dados da cobrança e, quando houver, o txid indexado
func (d *Dynamo) UpdatePaymentMeta(ctx context.Context, orderID string, status domain.OrderStatus, meta map[string]string) error {
	expr, names, values := metaSetExpression(meta)
	names["#id"] = "id"
	names["#updated_at"] = "updated_at"
	values[":now"] = &types.AttributeValueMemberS{Value: d.timestamp()}

	update := "SET #updated_at = :now" + expr
	if status != "" {
		names["#status"] = "status"
		values[":status"] = &types.AttributeValueMemberS{Value: string(status)}
		update += ", #status = :status"
	}
	if txid := meta[domain.MetaPixTxID]; txid != "" {
		names["#txid"] = "pix_txid"
		values[":txid"] = &types.AttributeValueMemberS{Value: txid}
		update += ", #txid = :txid"
	}

	_, err := d.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       d.key(orderID),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return mapConditionError(err, "erro ao atualizar pedido")
}

// ReduceStock marca a baixa de estoque; uma segunda chamada não tem efeito
func (d *Dynamo) ReduceStock(ctx context.Context, orderID string) error {
	_, err := d.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 d.key(orderID),
		ConditionExpression: aws.String("attribute_exists(#id) AND (attribute_not_exists(#stock) OR #stock = :false)"),
		UpdateExpression:    aws.String("SET #stock = :true"),
		ExpressionAttributeNames: map[string]string{
			"#id":    "id",
			"#stock": "stock_reduced",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			if len(cfe.Item) == 0 {
				return ports.ErrOrderNotFound
			}
			return nil
		}
		return fmt.Errorf("erro ao baixar estoque: %w", err)
	}
	return nil
}

// metaSetExpression monta as cláusulas SET para os metadados em ordem estável
func metaSetExpression(meta map[string]string) (string, map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	if len(meta) == 0 {
		return "", names, values
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names["#meta"] = "meta"
	expr := ""
	for i, k := range keys {
		nk := fmt.Sprintf("#m%d", i)
		vk := fmt.Sprintf(":m%d", i)
		names[nk] = k
		values[vk] = &types.AttributeValueMemberS{Value: meta[k]}
		expr += fmt.Sprintf(", #meta.%s = %s", nk, vk)
	}
	return expr, names, values
}

func mapConditionError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return ports.ErrOrderNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func toOrderItem(o *domain.Order, now string) orderItem {
	meta := make(map[string]string, len(o.Meta))
	for k, v := range o.Meta {
		meta[k] = v
	}
	notes := make([]noteItem, 0, len(o.Notes))
	for _, n := range o.Notes {
		notes = append(notes, noteItem{ID: n.ID, Text: n.Text, CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano)})
	}
	created := now
	if !o.CreatedAt.IsZero() {
		created = o.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return orderItem{
		ID:            o.ID,
		Total:         o.Total.StringFixed(2),
		Status:        string(o.Status),
		PaymentMethod: o.PaymentMethod,
		Customer:      o.Customer,
		Meta:          meta,
		PixTxID:       meta[domain.MetaPixTxID],
		Notes:         notes,
		CreatedAt:     created,
		UpdatedAt:     now,
	}
}

func decodeOrder(av map[string]types.AttributeValue) (*domain.Order, error) {
	var it orderItem
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("erro ao decodificar pedido: %w", err)
	}

	total, err := decimal.NewFromString(it.Total)
	if err != nil {
		return nil, fmt.Errorf("total inválido no pedido %s: %w", it.ID, err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)

	order := &domain.Order{
		ID:            it.ID,
		Total:         total,
		Status:        domain.OrderStatus(it.Status),
		PaymentMethod: it.PaymentMethod,
		Customer:      it.Customer,
		Meta:          it.Meta,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
	if order.Meta == nil {
		order.Meta = make(map[string]string)
	}
	for _, n := range it.Notes {
		ts, _ := time.Parse(time.RFC3339Nano, n.CreatedAt)
		order.Notes = append(order.Notes, domain.Note{ID: n.ID, Text: n.Text, CreatedAt: ts})
	}
	return order, nil
}
