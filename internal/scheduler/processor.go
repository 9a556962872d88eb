package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"go.opentelemetry.io/otel/attribute"

	"github.com/panda-miner/internal/dataset"
	"github.com/panda-miner/internal/miner"
	"github.com/panda-miner/internal/repository"
	"github.com/panda-miner/internal/storage"
	"github.com/panda-miner/pkg/compression"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/telemetry"
	"github.com/panda-miner/pkg/utils"
	"github.com/panda-miner/pkg/writer"
)

// ProcessorConfig holds processor configuration.
type ProcessorConfig struct {
	Storage       storage.Storage
	Tasks         repository.TaskRepository
	Results       repository.ResultRepository
	Miner         miner.Miner
	ParserOptions *dataset.ParserOptions
	// ResultCompression is applied to uploaded result documents.
	ResultCompression compression.Type
	Logger            utils.Logger
}

// MiningProcessor downloads a task's dataset, mines it, uploads the result
// document and records the outcome.
type MiningProcessor struct {
	storage    storage.Storage
	tasks      repository.TaskRepository
	results    repository.ResultRepository
	miner      miner.Miner
	parserOpts *dataset.ParserOptions
	writer     *writer.JSONWriter[*model.MiningResult]
	logger     utils.Logger
}

// NewMiningProcessor creates a new MiningProcessor.
func NewMiningProcessor(cfg *ProcessorConfig) *MiningProcessor {
	logger := cfg.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	parserOpts := cfg.ParserOptions
	if parserOpts == nil {
		parserOpts = dataset.DefaultParserOptions()
	}

	return &MiningProcessor{
		storage:    cfg.Storage,
		tasks:      cfg.Tasks,
		results:    cfg.Results,
		miner:      cfg.Miner,
		parserOpts: parserOpts,
		writer:     writer.NewCompressedJSONWriter[*model.MiningResult](cfg.ResultCompression),
		logger:     logger,
	}
}

// Process runs one task. Tasks whose dataset has nothing to mine end as
// Empty without error. A run cut short by its timeout still has its partial
// result stored before the task is marked Failed.
func (p *MiningProcessor) Process(ctx context.Context, task *Task) (status model.TaskStatus, err error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.process",
		attribute.String("task.uuid", task.TaskUUID),
		attribute.String("task.dataset_key", task.DatasetKey),
	)
	defer func() {
		span.SetAttributes(attribute.String("task.status", status.String()))
		telemetry.EndSpan(span, err)
	}()

	log := p.logger.WithFields(map[string]interface{}{
		"tid":     task.TaskUUID,
		"dataset": task.DatasetKey,
	})

	ds, err := p.loadDataset(ctx, task)
	if err != nil {
		if apperrors.IsEmptyDataset(err) {
			log.Info("Dataset has nothing to mine")
			return p.finish(ctx, task, model.TaskStatusEmpty, apperrors.GetErrorMessage(err), nil)
		}
		return p.finish(ctx, task, model.TaskStatusFailed, err.Error(), err)
	}
	summary := ds.Summary()
	log.Info("Loaded dataset: %d transactions, %d items, %d elements",
		summary.Transactions, summary.Items, summary.Elements)

	result, mineErr := p.miner.Mine(ctx, ds, task.Params)
	if result != nil {
		result.TaskUUID = task.TaskUUID
		if err := p.store(ctx, task, result); err != nil {
			if mineErr == nil {
				return p.finish(ctx, task, model.TaskStatusFailed, err.Error(), err)
			}
			log.Warn("Failed to store partial result: %v", err)
		}
	}
	if mineErr != nil {
		info := mineErr.Error()
		if result != nil {
			info = fmt.Sprintf("%s (partial result: %d patterns)", info, len(result.Patterns))
		}
		return p.finish(ctx, task, model.TaskStatusFailed, info, mineErr)
	}

	info := fmt.Sprintf("%d patterns, cost %.2f -> %.2f, %s",
		len(result.Patterns), result.InitialCost, result.FinalCost, result.StopReason)
	return p.finish(ctx, task, model.TaskStatusCompleted, info, nil)
}

func (p *MiningProcessor) loadDataset(ctx context.Context, task *Task) (*dataset.Dataset, error) {
	rc, err := p.storage.Download(ctx, task.DatasetKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	format := task.Format
	if format == "" {
		format = dataset.FormatFromPath(task.DatasetKey)
	}
	return dataset.Read(ctx, rc, datasetName(task.DatasetKey), format, p.parserOpts)
}

// store uploads the result document and saves the result row.
func (p *MiningProcessor) store(ctx context.Context, task *Task, result *model.MiningResult) error {
	var buf bytes.Buffer
	if err := p.writer.Write(result, &buf); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to encode result", err)
	}

	key := task.DefaultResultKey()
	if err := p.storage.Upload(ctx, key, &buf); err != nil {
		return err
	}
	task.ResultKey = key

	if p.results != nil {
		if err := p.results.SaveResult(ctx, result); err != nil {
			return err
		}
	}
	if p.tasks != nil && task.ID != 0 {
		if err := p.tasks.SetResultKey(ctx, task.ID, key); err != nil {
			return err
		}
	}
	return nil
}

// finish records the terminal status. Status updates use a context that
// survives cancellation of the run itself.
func (p *MiningProcessor) finish(ctx context.Context, task *Task, status model.TaskStatus, info string, cause error) (model.TaskStatus, error) {
	task.Status = status
	task.StatusInfo = info
	if p.tasks != nil && task.ID != 0 {
		if err := p.tasks.UpdateStatusWithInfo(context.WithoutCancel(ctx), task.ID, status, info); err != nil {
			p.logger.Error("Failed to update status of task %s to %s: %v", task.TaskUUID, status, err)
			if cause == nil {
				cause = err
			}
		}
	}
	return status, cause
}

// datasetName derives a display name from a storage key, so
// "retail/retail.dat.gz" becomes "retail".
func datasetName(key string) string {
	base := path.Base(compression.TrimExt(key))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = base[:len(base)-len(ext)]
	}
	return base
}
