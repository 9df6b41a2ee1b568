package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-bill-must-split/internal/classification"
	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GenerateContent(ctx context.Context, req llm.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// stubClient answers every request with respond and counts calls.
type stubClient struct {
	respond func(req llm.GenerateRequest) (string, error)
	calls   atomic.Int64
}

func (s *stubClient) GenerateContent(_ context.Context, req llm.GenerateRequest) (string, error) {
	s.calls.Add(1)
	return s.respond(req)
}

type fakeRecorder struct {
	receipts []string
	steps    []classification.Step
	llmCalls int
	mu       sync.Mutex
}

func (f *fakeRecorder) ObserveReceipt(engine string, _ *model.ClassifiedReceipt, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = append(f.receipts, engine)
}

func (f *fakeRecorder) ObserveStep(step classification.Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
}

func (f *fakeRecorder) ObserveLLMCalls(_ string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.llmCalls += n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func restaurantReceipt() ([]model.ReceiptItem, model.ReceiptContext) {
	items := []model.ReceiptItem{
		model.NewReceiptItem("2 Burgers", dec("20.00")),
		model.NewReceiptItem("Tax", dec("1.60")),
		model.NewReceiptItem("Tip", dec("4.00")),
		model.NewReceiptItem("Total", dec("25.60")),
	}
	subtotal, total := dec("20.00"), dec("25.60")
	rctx := model.NewReceiptContext(items, model.ContextOptions{
		Subtotal:    &subtotal,
		Total:       &total,
		ReceiptType: model.ReceiptTypeRestaurant,
	})
	return items, rctx
}

func mysteryItems(n int) []model.ReceiptItem {
	items := make([]model.ReceiptItem, n)
	for i := range items {
		items[i] = model.NewReceiptItem(fmt.Sprintf("Mystery dish %d", i+1), dec("7.50"))
	}
	return items
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{input: "chain", want: KindChain},
		{input: " Strategy-Chain ", want: KindChain},
		{input: "batch", want: KindBatch},
		{input: "BATCH_LLM", want: KindBatch},
		{input: "gemini", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, KindChain, cfg.Kind)
	assert.Equal(t, 5, cfg.LLMBudget)
	assert.True(t, cfg.EnableLLM)
	assert.InDelta(t, 0.8, cfg.Chain.HighConfidenceThreshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.Chain.MediumConfidenceThreshold, 1e-9)
	for _, kind := range AllKinds() {
		assert.NotEqual(t, string(kind), kind.Description())
	}
}

func TestEngine_ChainRoundTrip(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", concurrency), func(t *testing.T) {
			items, rctx := restaurantReceipt()
			cfg := DefaultConfig()
			cfg.Concurrency = concurrency

			receipt, err := New(nil, nil).Classify(context.Background(), items, rctx, cfg)
			require.NoError(t, err)

			require.Len(t, receipt.FoodItems, 1)
			assert.Equal(t, "2 Burgers", receipt.FoodItems[0].Name)

			require.NotNil(t, receipt.Tax)
			assert.GreaterOrEqual(t, receipt.Tax.ClassificationConfidence, 0.85)
			require.NotNil(t, receipt.Tip)
			assert.GreaterOrEqual(t, receipt.Tip.ClassificationConfidence, 0.55)
			require.NotNil(t, receipt.Total)
			assert.GreaterOrEqual(t, receipt.Total.ClassificationConfidence, 0.95)

			assert.True(t, receipt.SumMatchesTotal(0.02))
			assert.Equal(t, "chain", receipt.Engine)
			assert.Equal(t, model.StatusValid, receipt.ValidationStatus)
			assert.Empty(t, receipt.Issues)

			all := receipt.AllItems()
			require.Len(t, all, len(items))
			for i, item := range all {
				assert.Equal(t, i, item.Position)
				assert.Equal(t, items[i].Name, item.Name)
			}
		})
	}
}

func TestEngine_ChainSmallFoodLinesStayFood(t *testing.T) {
	items := []model.ReceiptItem{
		model.NewReceiptItem("Cheeseburger", dec("12.50")),
		model.NewReceiptItem("Caesar Salad", dec("9.00")),
		model.NewReceiptItem("Fries", dec("4.50")),
		model.NewReceiptItem("Iced Tea", dec("2.40")),
		model.NewReceiptItem("Soda", dec("2.00")),
		model.NewReceiptItem("Subtotal", dec("30.40")),
		model.NewReceiptItem("Tax", dec("2.43")),
		model.NewReceiptItem("Total", dec("32.83")),
	}
	subtotal, total := dec("30.40"), dec("32.83")
	rctx := model.NewReceiptContext(items, model.ContextOptions{
		Subtotal:    &subtotal,
		Total:       &total,
		ReceiptType: model.ReceiptTypeRestaurant,
	})

	cfg := DefaultConfig()
	cfg.EnableLLM = false

	receipt, err := New(nil, nil).Classify(context.Background(), items, rctx, cfg)
	require.NoError(t, err)

	names := make([]string, len(receipt.FoodItems))
	for i, item := range receipt.FoodItems {
		names[i] = item.Name
	}
	assert.Equal(t, []string{"Cheeseburger", "Caesar Salad", "Fries", "Iced Tea", "Soda"}, names)

	require.NotNil(t, receipt.Subtotal)
	assert.Equal(t, "Subtotal", receipt.Subtotal.Name)
	require.NotNil(t, receipt.Tax)
	assert.Equal(t, "Tax", receipt.Tax.Name)
	require.NotNil(t, receipt.Total)
	assert.Equal(t, "Total", receipt.Total.Name)
	assert.Empty(t, receipt.UnknownItems)

	assert.True(t, receipt.SumMatchesTotal(0.01))
	assert.NotContains(t, issueTypes(receipt.Issues), model.IssueDuplicate)
}

func TestEngine_ChainUsesLLMForUnrecognizedLines(t *testing.T) {
	client := new(mockClient)
	client.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req llm.GenerateRequest) bool {
		return req.APIKey == "test-key"
	})).Return(`{"category":"food","confidence":0.9,"reasoning":"dish name"}`, nil).Once()

	items := mysteryItems(1)
	rctx := model.NewReceiptContext(items, model.ContextOptions{})

	receipt, err := New(client, secrets.NewMemory("test-key")).Classify(context.Background(), items, rctx, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, receipt.FoodItems, 1)
	assert.Equal(t, model.MethodLLM, receipt.FoodItems[0].ClassificationMethod)
	assert.Equal(t, "dish name", receipt.FoodItems[0].Reasoning)
	client.AssertExpectations(t)
}

func TestEngine_ChainSkipsLLMWhenDisabled(t *testing.T) {
	client := new(mockClient)
	items := mysteryItems(2)
	rctx := model.NewReceiptContext(items, model.ContextOptions{})

	cfg := DefaultConfig()
	cfg.EnableLLM = false

	receipt, err := New(client, secrets.NewMemory("test-key")).Classify(context.Background(), items, rctx, cfg)
	require.NoError(t, err)

	assert.Len(t, receipt.UnknownItems, 2)
	client.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
}

func TestEngine_ChainBudgetSharedAcrossWorkers(t *testing.T) {
	client := &stubClient{respond: func(llm.GenerateRequest) (string, error) {
		time.Sleep(time.Millisecond)
		return `{"category":"food","confidence":0.9}`, nil
	}}
	recorder := &fakeRecorder{}

	items := mysteryItems(12)
	rctx := model.NewReceiptContext(items, model.ContextOptions{})
	cfg := DefaultConfig()
	cfg.LLMBudget = 3
	cfg.Concurrency = 6

	receipt, err := New(client, secrets.NewMemory("k"), WithRecorder(recorder)).
		Classify(context.Background(), items, rctx, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(3), client.calls.Load())
	assert.Equal(t, 3, recorder.llmCalls)
	assert.Len(t, receipt.FoodItems, 3)
	assert.Len(t, receipt.UnknownItems, 9)
	assert.Equal(t, len(items), receipt.ItemCount())
	assert.Equal(t, []string{"chain"}, recorder.receipts)
	assert.NotEmpty(t, recorder.steps)
}

func TestEngine_BatchRoundTrip(t *testing.T) {
	client := new(mockClient)
	client.On("GenerateContent", mock.Anything, mock.Anything).Return(
		"```json\n"+`{"classifications":[
			{"itemNumber":1,"category":"food","confidence":0.95,"reasoning":"burgers"},
			{"itemNumber":2,"category":"tax","confidence":0.97},
			{"itemNumber":3,"category":"tip","confidence":0.9},
			{"itemNumber":4,"category":"total","confidence":0.98}
		]}`+"\n```", nil).Once()

	items, rctx := restaurantReceipt()
	cfg := DefaultConfig()
	cfg.Kind = KindBatch

	receipt, err := New(client, secrets.NewMemory("test-key")).Classify(context.Background(), items, rctx, cfg)
	require.NoError(t, err)

	assert.Equal(t, "batch", receipt.Engine)
	assert.Len(t, receipt.FoodItems, 1)
	require.NotNil(t, receipt.Tax)
	require.NotNil(t, receipt.Tip)
	require.NotNil(t, receipt.Total)
	assert.True(t, receipt.SumMatchesTotal(0.02))
	assert.Equal(t, model.StatusValid, receipt.ValidationStatus)
	client.AssertExpectations(t)
}

func TestEngine_BatchWithoutBudgetFallsBack(t *testing.T) {
	client := new(mockClient)
	items, rctx := restaurantReceipt()
	cfg := DefaultConfig()
	cfg.Kind = KindBatch
	cfg.LLMBudget = 0

	receipt, err := New(client, secrets.NewMemory("test-key")).Classify(context.Background(), items, rctx, cfg)
	require.NoError(t, err)

	assert.Contains(t, issueTypes(receipt.Issues), model.IssueFallbackUsed)
	client.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
}

func TestEngine_InvalidKind(t *testing.T) {
	items, rctx := restaurantReceipt()
	cfg := DefaultConfig()
	cfg.Kind = "quantum"

	_, err := New(nil, nil).Classify(context.Background(), items, rctx, cfg)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestEngine_CanceledContext(t *testing.T) {
	items, rctx := restaurantReceipt()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, nil).Classify(ctx, items, rctx, DefaultConfig())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEngine_EmptyReceipt(t *testing.T) {
	rctx := model.NewReceiptContext(nil, model.ContextOptions{})

	receipt, err := New(nil, nil).Classify(context.Background(), nil, rctx, DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, receipt.ItemCount())
	assert.Contains(t, issueTypes(receipt.Issues), model.IssueMissingTotal)
}

func issueTypes(issues []model.ValidationIssue) []model.IssueType {
	out := make([]model.IssueType, len(issues))
	for i, issue := range issues {
		out[i] = issue.Type
	}
	return out
}
