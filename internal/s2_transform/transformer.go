package s2_transform

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// Transformer fits encoding and scaling parameters on the training
// partition and applies the identical fitted state to both partitions.
// Fitting never sees test data; applying never mutates the fit.
type Transformer struct {
	schema contracts.Schema
	store  *artifact.Store
	logger *logger.Logger
}

// Output is the S2 artifact payload: the fitted transformer plus both
// transformed partitions, persisted as one unit.
type Output struct {
	Transformer contracts.TransformerState `json:"transformer"`
	Train       contracts.FeatureMatrix    `json:"train"`
	Test        contracts.FeatureMatrix    `json:"test"`
}

// NewTransformer creates the transformation stage.
func NewTransformer(schema contracts.Schema, store *artifact.Store, log *logger.Logger) *Transformer {
	return &Transformer{schema: schema, store: store, logger: log}
}

// Run fits on train, applies to train and test, and writes the S2 artifact.
func (t *Transformer) Run(ctx context.Context, runID string, split contracts.DatasetSplit, upstream contracts.ArtifactRef) (Output, contracts.ArtifactRef, error) {
	state, err := Fit(t.schema, split.Train)
	if err != nil {
		return Output{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageTransformation, contracts.ErrSchemaDrift,
				fmt.Errorf("fit transformer: %w", err))
	}

	train, err := ApplyAll(state, t.schema, split.Train)
	if err != nil {
		return Output{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageTransformation, contracts.ErrSchemaDrift,
				fmt.Errorf("transform train partition: %w", err))
	}

	test, err := ApplyAll(state, t.schema, split.Test)
	if err != nil {
		return Output{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageTransformation, contracts.ErrSchemaDrift,
				fmt.Errorf("transform test partition: %w", err))
	}

	out := Output{Transformer: state, Train: train, Test: test}

	ref, err := t.store.Write(runID, contracts.StageTransformation, out,
		[]contracts.ArtifactRef{upstream}, map[string]string{
			"features":   strconv.Itoa(len(state.FeatureNames)),
			"train_rows": strconv.Itoa(len(train.Rows)),
			"test_rows":  strconv.Itoa(len(test.Rows)),
		})
	if err != nil {
		return Output{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageTransformation, contracts.ErrSchemaDrift,
				fmt.Errorf("persist transform artifact: %w", err))
	}

	t.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"features": len(state.FeatureNames),
	}).Info("Features transformed")

	return out, ref, nil
}

// Fit derives encoding and scaling parameters from the training partition
// only. Categorical columns get a one-hot category order learned from the
// observed training values; numeric columns get standard-scaler parameters.
func Fit(schema contracts.Schema, train []contracts.Record) (contracts.TransformerState, error) {
	if len(train) == 0 {
		return contracts.TransformerState{}, fmt.Errorf("empty training partition")
	}

	state := contracts.TransformerState{
		Categories: make(map[string][]string),
		Means:      make(map[string]float64),
		Stddevs:    make(map[string]float64),
	}

	for _, col := range schema.CategoricalColumns() {
		seen := make(map[string]bool)
		for _, rec := range train {
			val, ok := rec.Field(col.Name)
			if !ok {
				return contracts.TransformerState{}, fmt.Errorf("column %s absent from input", col.Name)
			}
			if val.Str != "" {
				seen[val.Str] = true
			}
		}

		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		state.Categories[col.Name] = cats
	}

	for _, col := range schema.NumericColumns() {
		var sum, sumSq float64
		n := float64(len(train))
		for _, rec := range train {
			val, ok := rec.Field(col.Name)
			if !ok {
				return contracts.TransformerState{}, fmt.Errorf("column %s absent from input", col.Name)
			}
			sum += val.Num
			sumSq += val.Num * val.Num
		}

		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		if std == 0 {
			std = 1 // constant column: pass through centered
		}

		state.Means[col.Name] = mean
		state.Stddevs[col.Name] = std
	}

	state.FeatureNames = featureNames(schema, state)
	return state, nil
}

// featureNames builds the output feature order: numerics in schema order,
// then one-hot columns in schema order with learned category order.
func featureNames(schema contracts.Schema, state contracts.TransformerState) []string {
	var names []string
	for _, col := range schema.NumericColumns() {
		names = append(names, col.Name)
	}
	for _, col := range schema.CategoricalColumns() {
		for _, cat := range state.Categories[col.Name] {
			names = append(names, col.Name+"="+cat)
		}
	}
	return names
}

// Apply encodes one record with fitted state. Pure: identical input yields
// identical output, and state is never modified. Categories unseen during
// fitting encode as an all-zero one-hot block rather than an error.
func Apply(state contracts.TransformerState, schema contracts.Schema, rec contracts.Record) ([]float64, error) {
	features := make([]float64, 0, len(state.FeatureNames))

	for _, col := range schema.NumericColumns() {
		val, ok := rec.Field(col.Name)
		if !ok {
			return nil, fmt.Errorf("column %s absent from input", col.Name)
		}
		features = append(features, (val.Num-state.Means[col.Name])/state.Stddevs[col.Name])
	}

	for _, col := range schema.CategoricalColumns() {
		val, ok := rec.Field(col.Name)
		if !ok {
			return nil, fmt.Errorf("column %s absent from input", col.Name)
		}
		for _, cat := range state.Categories[col.Name] {
			if val.Str == cat {
				features = append(features, 1)
			} else {
				features = append(features, 0)
			}
		}
	}

	return features, nil
}

// ApplyAll encodes a partition into a feature matrix with labels.
func ApplyAll(state contracts.TransformerState, schema contracts.Schema, records []contracts.Record) (contracts.FeatureMatrix, error) {
	matrix := contracts.FeatureMatrix{
		Rows:   make([][]float64, 0, len(records)),
		Labels: make([]float64, 0, len(records)),
	}

	for _, rec := range records {
		row, err := Apply(state, schema, rec)
		if err != nil {
			return contracts.FeatureMatrix{}, err
		}
		matrix.Rows = append(matrix.Rows, row)
		matrix.Labels = append(matrix.Labels, rec.Label())
	}

	return matrix, nil
}
