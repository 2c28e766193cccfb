package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/types"
)

// CreateModel registers a learning model
func (s *Store) CreateModel(ctx context.Context, model *types.LearningModel) error {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if err := model.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	model.CreatedAt = ts
	model.UpdatedAt = ts

	config, err := docJSON(model.Config)
	if err != nil {
		return err
	}
	metrics, err := docJSON(model.Metrics)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_models (id, name, kind, version, config, metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, model.ID, model.Name, model.Kind, model.Version, config, metrics,
		model.CreatedAt, model.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}
	return nil
}

func scanModel(scan func(dest ...interface{}) error) (*types.LearningModel, error) {
	var model types.LearningModel
	var config, metrics sql.NullString
	var trained sql.NullTime
	if err := scan(&model.ID, &model.Name, &model.Kind, &model.Version,
		&config, &metrics, &model.CreatedAt, &model.UpdatedAt, &trained); err != nil {
		return nil, err
	}
	var err error
	if model.Config, err = scanDoc(config); err != nil {
		return nil, err
	}
	if model.Metrics, err = scanDoc(metrics); err != nil {
		return nil, err
	}
	if trained.Valid {
		model.LastTrainedAt = &trained.Time
	}
	return &model, nil
}

// GetModel retrieves a learning model by ID
func (s *Store) GetModel(ctx context.Context, id string) (*types.LearningModel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, version, config, metrics, created_at, updated_at, last_trained_at
		FROM learning_models WHERE id = ?
	`, id)
	model, err := scanModel(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return model, nil
}

// ListModels returns all learning models
func (s *Store) ListModels(ctx context.Context) ([]*types.LearningModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, version, config, metrics, created_at, updated_at, last_trained_at
		FROM learning_models ORDER BY name, version
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []*types.LearningModel
	for rows.Next() {
		model, err := scanModel(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, model)
	}
	return models, rows.Err()
}

// DeleteModel deletes a model and its training examples
func (s *Store) DeleteModel(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q querier) error {
		reader := s.reader(q)
		ok, err := reader.Exists(ctx, types.KindLearningModel, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(types.KindLearningModel, id)
		}

		plan, err := s.engine.PlanDelete(ctx, reader, types.KindLearningModel, id)
		if err != nil {
			return err
		}
		return applyDeletePlan(ctx, q, plan)
	})
}

// AddTrainingExample records an input/output pair against a model
func (s *Store) AddTrainingExample(ctx context.Context, ex *types.TrainingExample) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if err := ex.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	ex.CreatedAt = now()

	input, err := json.Marshal(ex.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	output, err := json.Marshal(ex.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	metadata, err := docJSON(ex.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, trainingExampleRefs(ex)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO training_examples (id, model_id, input, output, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ex.ID, ex.ModelID, string(input), string(output), metadata, ex.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert training example: %w", err)
		}
		return nil
	})
}

// ListTrainingExamples returns a model's training examples, oldest first
func (s *Store) ListTrainingExamples(ctx context.Context, modelID string) ([]*types.TrainingExample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_id, input, output, metadata, created_at
		FROM training_examples
		WHERE model_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list training examples: %w", err)
	}
	defer rows.Close()

	var examples []*types.TrainingExample
	for rows.Next() {
		var ex types.TrainingExample
		var input, output string
		var metadata sql.NullString
		if err := rows.Scan(&ex.ID, &ex.ModelID, &input, &output, &metadata, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &ex.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
		if err := json.Unmarshal([]byte(output), &ex.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
		doc, err := scanDoc(metadata)
		if err != nil {
			return nil, err
		}
		ex.Metadata = doc
		examples = append(examples, &ex)
	}
	return examples, rows.Err()
}

// MarkModelTrained stamps last_trained_at and replaces the model's metrics
func (s *Store) MarkModelTrained(ctx context.Context, id string, metrics types.Doc) error {
	marshaled, err := docJSON(metrics)
	if err != nil {
		return err
	}

	ts := now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE learning_models
		SET metrics = ?, last_trained_at = ?, updated_at = ?
		WHERE id = ?
	`, marshaled, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to mark model trained: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(types.KindLearningModel, id)
	}
	return nil
}
