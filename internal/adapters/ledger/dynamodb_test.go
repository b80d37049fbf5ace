package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/ports"
)

// fakeDynamo registra as chamadas e devolve respostas configuradas
type fakeDynamo struct {
	items     map[string]map[string]types.AttributeValue
	updates   []*dynamodb.UpdateItemInput
	queries   []*dynamodb.QueryInput
	updateErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	txid := in.ExpressionAttributeValues[":txid"].(*types.AttributeValueMemberS).Value
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if v, ok := item["pix_txid"].(*types.AttributeValueMemberS); ok && v.Value == txid {
			out = append(out, item)
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func TestDynamo_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	d := NewDynamo(fake, "orders")

	if err := d.Save(ctx, pixOrder("1", "tx-1", domain.OrderStatusPending)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := d.FindBySettlementKey(ctx, "tx-1")
	if err != nil {
		t.Fatalf("FindBySettlementKey() error = %v", err)
	}
	if got.ID != "1" || got.Total.StringFixed(2) != "100.00" || got.Customer.Name != "João Silva Santos" {
		t.Errorf("unexpected order %+v", got)
	}

	q := fake.queries[0]
	if *q.IndexName != PixTxIDIndex {
		t.Errorf("IndexName = %s", *q.IndexName)
	}
	if pm := q.ExpressionAttributeValues[":pm"].(*types.AttributeValueMemberS).Value; pm != domain.PaymentMethodPix {
		t.Errorf("payment method filter = %s", pm)
	}

	if _, err := d.FindBySettlementKey(ctx, "tx-9"); !errors.Is(err, ports.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := d.Get(ctx, "404"); !errors.Is(err, ports.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestDynamo_ApplySettlementExpression(t *testing.T) {
	fake := newFakeDynamo()
	d := NewDynamo(fake, "orders")

	if err := d.ApplySettlement(context.Background(), "1", testRecord("tx-1")); err != nil {
		t.Fatalf("ApplySettlement() error = %v", err)
	}

	in := fake.updates[0]
	if !strings.Contains(*in.ConditionExpression, "NOT (#status IN (:processing, :completed))") {
		t.Errorf("ConditionExpression = %s", *in.ConditionExpression)
	}
	if !strings.HasPrefix(*in.UpdateExpression, "SET #status = :processing") {
		t.Errorf("UpdateExpression = %s", *in.UpdateExpression)
	}

	// Cada metadado da liquidação vira uma cláusula #meta.#mN
	for k, v := range testRecord("tx-1").Metadata() {
		found := false
		for nk, name := range in.ExpressionAttributeNames {
			if name != k {
				continue
			}
			vk := ":" + strings.TrimPrefix(nk, "#")
			if got := in.ExpressionAttributeValues[vk].(*types.AttributeValueMemberS).Value; got != v {
				t.Errorf("meta %s = %s, want %s", k, got, v)
			}
			found = true
		}
		if !found {
			t.Errorf("meta %s missing from update", k)
		}
	}
}

func TestDynamo_ApplySettlementConditionFailure(t *testing.T) {
	existing, err := attributevalue.MarshalMap(map[string]string{"id": "1", "status": "processing"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"already settled", &types.ConditionalCheckFailedException{Item: existing}, ports.ErrAlreadySettled},
		{"missing order", &types.ConditionalCheckFailedException{}, ports.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDynamo()
			fake.updateErr = tt.err
			d := NewDynamo(fake, "orders")

			err := d.ApplySettlement(context.Background(), "1", testRecord("tx-1"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDynamo_UpdatePaymentMetaIndexesTxID(t *testing.T) {
	fake := newFakeDynamo()
	d := NewDynamo(fake, "orders")

	err := d.UpdatePaymentMeta(context.Background(), "1", domain.OrderStatusOnHold, map[string]string{
		domain.MetaPixTxID: "tx-1",
	})
	if err != nil {
		t.Fatalf("UpdatePaymentMeta() error = %v", err)
	}

	in := fake.updates[0]
	if !strings.Contains(*in.UpdateExpression, "#txid = :txid") || !strings.Contains(*in.UpdateExpression, "#status = :status") {
		t.Errorf("UpdateExpression = %s", *in.UpdateExpression)
	}
	if in.ExpressionAttributeNames["#txid"] != "pix_txid" {
		t.Errorf("txid attribute = %s", in.ExpressionAttributeNames["#txid"])
	}
}

func TestDynamo_ReduceStockIsIdempotent(t *testing.T) {
	existing, err := attributevalue.MarshalMap(map[string]any{"id": "1", "stock_reduced": true})
	if err != nil {
		t.Fatal(err)
	}
	fake := newFakeDynamo()
	fake.updateErr = &types.ConditionalCheckFailedException{Item: existing}
	d := NewDynamo(fake, "orders")

	if err := d.ReduceStock(context.Background(), "1"); err != nil {
		t.Errorf("ReduceStock() on already reduced order error = %v", err)
	}
}
