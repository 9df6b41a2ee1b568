package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/the-bill-must-split/internal/classification"
	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// lineJob is one receipt line waiting for the chain.
type lineJob struct {
	item     model.ReceiptItem
	position int
}

// lineResult is the chain's answer for one line.
type lineResult struct {
	item     model.ClassifiedReceiptItem
	position int
}

// newChain builds the per-receipt chain. The LLM budget is fresh for every
// receipt and shared by every worker classifying its lines.
func (e *Engine) newChain(cfg Config, budget *llm.CallBudget) *classification.Chain {
	strategies := []classification.Strategy{e.price, e.pattern}
	if cfg.EnableLLM && e.client != nil && e.keys != nil {
		strategies = append(strategies, classification.NewLLMStrategy(classification.LLMStrategyConfig{
			Client:  e.client,
			Keys:    e.keys,
			Budget:  budget,
			Cache:   e.cache,
			Logger:  e.logger,
			Timeout: e.llmConfig.Timeout,
			Enabled: true,
		}))
	}

	logStep := classification.LogObserver(e.logger)
	observer := func(step classification.Step) {
		logStep(step)
		if e.recorder != nil {
			e.recorder.ObserveStep(step)
		}
	}

	return classification.NewChain(strategies, cfg.Chain, classification.WithObserver(observer))
}

// classifyChain runs every line through the strategy chain and returns the
// assembled receipt with the number of LLM calls spent.
func (e *Engine) classifyChain(ctx context.Context, items []model.ReceiptItem, rctx model.ReceiptContext, cfg Config) (*model.ClassifiedReceipt, int, error) {
	budget := llm.NewCallBudget(cfg.LLMBudget)
	chain := e.newChain(cfg, budget)

	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	var classified []model.ClassifiedReceiptItem
	if workers <= 1 {
		classified = make([]model.ClassifiedReceiptItem, 0, len(items))
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, budget.Used(), err
			}
			result := chain.Classify(ctx, item, i, rctx)
			classified = append(classified, model.NewClassifiedReceiptItem(item, i, result))
		}
	} else {
		classified = e.classifyParallel(ctx, chain, items, rctx, workers)
		if err := ctx.Err(); err != nil {
			return nil, budget.Used(), err
		}
	}

	e.logger.Debug("Strategy chain finished",
		"strategies", chain.StrategyNames(),
		"items", len(items),
		"workers", workers,
		"llm_calls", budget.Used(),
		"llm_budget", budget.Limit())

	return model.NewClassifiedReceipt(classified), budget.Used(), nil
}

// classifyParallel fans lines out to workers. Results are slotted back by
// position so the outcome does not depend on scheduling.
func (e *Engine) classifyParallel(
	ctx context.Context,
	chain *classification.Chain,
	items []model.ReceiptItem,
	rctx model.ReceiptContext,
	workers int,
) []model.ClassifiedReceiptItem {
	// Create work channel
	workChan := make(chan lineJob, len(items))
	for i, item := range items {
		workChan <- lineJob{item: item, position: i}
	}
	close(workChan)

	resultsChan := make(chan lineResult, len(items))

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			lineWorker(ctx, e.logger, workerID, chain, rctx, workChan, resultsChan)
		}(i)
	}

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	slots := make([]*model.ClassifiedReceiptItem, len(items))
	for result := range resultsChan {
		item := result.item
		slots[result.position] = &item
	}

	classified := make([]model.ClassifiedReceiptItem, 0, len(items))
	for _, slot := range slots {
		if slot != nil {
			classified = append(classified, *slot)
		}
	}
	return classified
}

// lineWorker classifies lines from workChan until it is drained or ctx is done.
func lineWorker(
	ctx context.Context,
	logger *slog.Logger,
	workerID int,
	chain *classification.Chain,
	rctx model.ReceiptContext,
	workChan <-chan lineJob,
	resultsChan chan<- lineResult,
) {
	for job := range workChan {
		select {
		case <-ctx.Done():
			logger.Debug("Line worker stopping", "worker", workerID, "error", ctx.Err())
			return
		default:
		}

		result := chain.Classify(ctx, job.item, job.position, rctx)
		resultsChan <- lineResult{
			item:     model.NewClassifiedReceiptItem(job.item, job.position, result),
			position: job.position,
		}
	}
}
