package s3_train

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/s2_transform"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// Trainer fits a logistic-regression risk model on the transformed training
// matrix and scores it on the held-out test matrix. Given identical inputs,
// configuration, and seed the resulting metric is reproducible.
type Trainer struct {
	cfg    contracts.TrainingConfig
	store  *artifact.Store
	logger *logger.Logger
}

// NewTrainer creates the training stage.
func NewTrainer(cfg contracts.TrainingConfig, store *artifact.Store, log *logger.Logger) *Trainer {
	return &Trainer{cfg: cfg, store: store, logger: log}
}

// Run fits the candidate model and writes the S3 artifact. The candidate
// bundle has no version yet; the pusher assigns one at promotion time.
func (t *Trainer) Run(ctx context.Context, runID string, in s2_transform.Output, upstream contracts.ArtifactRef) (contracts.ModelBundle, contracts.ArtifactRef, error) {
	weights, bias, err := Fit(in.Train, t.cfg)
	if err != nil {
		return contracts.ModelBundle{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageTraining, contracts.ErrTrainingFailure,
				fmt.Errorf("fit model: %w", err))
	}

	metric := Accuracy(weights, bias, in.Test)

	bundle := contracts.ModelBundle{
		Weights:     weights,
		Bias:        bias,
		Transformer: in.Transformer,
		Metric:      metric,
		TrainedAt:   time.Now().UTC(),
		Config:      t.cfg,
	}

	ref, err := t.store.Write(runID, contracts.StageTraining, bundle,
		[]contracts.ArtifactRef{upstream}, map[string]string{
			"metric":   strconv.FormatFloat(metric, 'f', 6, 64),
			"features": strconv.Itoa(len(weights)),
			"epochs":   strconv.Itoa(t.cfg.Epochs),
		})
	if err != nil {
		return contracts.ModelBundle{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageTraining, contracts.ErrTrainingFailure,
				fmt.Errorf("persist model artifact: %w", err))
	}

	t.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"metric": metric,
	}).Info("Candidate model trained")

	return bundle, ref, nil
}

// Fit runs full-batch gradient descent on the logistic loss. Deterministic:
// weights start at zero, so no randomness enters the optimization at all;
// the configured seed is recorded for lineage only.
func Fit(train contracts.FeatureMatrix, cfg contracts.TrainingConfig) ([]float64, float64, error) {
	n := len(train.Rows)
	if n == 0 {
		return nil, 0, fmt.Errorf("empty training matrix")
	}
	if len(train.Labels) != n {
		return nil, 0, fmt.Errorf("labels length %d does not match rows %d", len(train.Labels), n)
	}

	d := len(train.Rows[0])
	if d == 0 {
		return nil, 0, fmt.Errorf("training matrix has zero features")
	}
	for i, row := range train.Rows {
		if len(row) != d {
			return nil, 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), d)
		}
	}

	// Flatten into a gonum matrix once.
	flat := make([]float64, 0, n*d)
	for _, row := range train.Rows {
		flat = append(flat, row...)
	}
	x := mat.NewDense(n, d, flat)
	y := mat.NewVecDense(n, train.Labels)

	w := mat.NewVecDense(d, nil)
	var b float64

	p := mat.NewVecDense(n, nil)
	diff := mat.NewVecDense(n, nil)
	gradW := mat.NewVecDense(d, nil)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		// p = sigmoid(Xw + b)
		p.MulVec(x, w)
		for i := 0; i < n; i++ {
			p.SetVec(i, sigmoid(p.AtVec(i)+b))
		}

		// diff = p - y
		diff.SubVec(p, y)

		// gradW = X^T diff / n + l2*w
		gradW.MulVec(x.T(), diff)
		gradW.ScaleVec(1/float64(n), gradW)
		gradW.AddScaledVec(gradW, cfg.L2Penalty, w)

		gradB := mat.Sum(diff) / float64(n)

		w.AddScaledVec(w, -cfg.LearningRate, gradW)
		b -= cfg.LearningRate * gradB

		if !finite(w, b) {
			return nil, 0, fmt.Errorf("optimization diverged at epoch %d", epoch)
		}
	}

	weights := make([]float64, d)
	copy(weights, w.RawVector().Data)
	return weights, b, nil
}

// Score returns the positive-class probability for one encoded row.
func Score(weights []float64, bias float64, row []float64) float64 {
	var z float64
	for i, w := range weights {
		z += w * row[i]
	}
	return sigmoid(z + bias)
}

// Accuracy scores a fitted model against a labeled matrix at the 0.5
// decision threshold.
func Accuracy(weights []float64, bias float64, test contracts.FeatureMatrix) float64 {
	if len(test.Rows) == 0 {
		return 0
	}

	correct := 0
	for i, row := range test.Rows {
		pred := 0.0
		if Score(weights, bias, row) >= 0.5 {
			pred = 1.0
		}
		if pred == test.Labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(test.Rows))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func finite(w *mat.VecDense, b float64) bool {
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return false
	}
	for _, v := range w.RawVector().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
