package contracts

import "time"

// DatasetSplit is the train/test partition produced once by ingestion and
// owned read-only by every later stage.
type DatasetSplit struct {
	Train []Record `json:"train"`
	Test  []Record `json:"test"`
	Ratio float64  `json:"ratio"`
	Seed  int64    `json:"seed"`
}

// RuleViolation is one hard schema-check failure. Order matters: violations
// are reported in rule-evaluation order (presence, then type, then domain).
type RuleViolation struct {
	Column string    `json:"column"`
	Rule   ErrorKind `json:"rule"`
	Detail string    `json:"detail"`
}

// DriftWarning records a train/test distribution distance above threshold.
// Drift is advisory: it never blocks the pipeline.
type DriftWarning struct {
	Column    string  `json:"column"`
	Statistic float64 `json:"statistic"`
	Threshold float64 `json:"threshold"`
}

// Verdict is the validation stage output. Passed is all-or-nothing; a single
// violation fails the whole run.
type Verdict struct {
	Passed     bool            `json:"passed"`
	Violations []RuleViolation `json:"violations,omitempty"`
	Warnings   []DriftWarning  `json:"warnings,omitempty"`
}

// TransformerState holds fitted encoding and scaling parameters. It is a pure
// function of the training partition; applying it never changes it.
type TransformerState struct {
	// One-hot category order per categorical column.
	Categories map[string][]string `json:"categories"`

	// Standard-scaler parameters per numeric column.
	Means   map[string]float64 `json:"means"`
	Stddevs map[string]float64 `json:"stddevs"`

	// Feature order of the output matrix.
	FeatureNames []string `json:"feature_names"`
}

// FeatureMatrix is a transformed partition ready for fitting or scoring.
type FeatureMatrix struct {
	Rows   [][]float64 `json:"rows"`
	Labels []float64   `json:"labels"`
}

// TrainingConfig records the hyperparameters a model was fit with.
type TrainingConfig struct {
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	L2Penalty    float64 `json:"l2_penalty"`
	Seed         int64   `json:"seed"`
}

// ModelBundle is a trained estimator plus the transformer state it was fit
// with; the two always travel together. Exactly one bundle version holds
// production status in the registry at any time.
type ModelBundle struct {
	Version     string           `json:"version"`
	Weights     []float64        `json:"weights"`
	Bias        float64          `json:"bias"`
	Transformer TransformerState `json:"transformer"`
	Metric      float64          `json:"metric"`
	TrainedAt   time.Time        `json:"trained_at"`
	Config      TrainingConfig   `json:"config"`
}

// Decision is the evaluation stage output: the single promotion gate.
type Decision struct {
	Accepted         bool     `json:"accepted"`
	CandidateMetric  float64  `json:"candidate_metric"`
	ProductionMetric *float64 `json:"production_metric"`
	Margin           float64  `json:"margin"`
}

// RunSummary is the result of one training-trigger invocation: the stage the
// run reached, the promotion outcome if it got that far, and the failure
// classification if it did not.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	RanToStage  Stage         `json:"ran_to_stage"`
	Accepted    *bool         `json:"accepted"`
	Metric      *float64      `json:"metric"`
	Version     string        `json:"version,omitempty"`
	ErrorKind   ErrorKind     `json:"error,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Artifacts   []ArtifactRef `json:"artifacts,omitempty"`
}

// Failed reports whether the run halted before promotion was decided.
func (r RunSummary) Failed() bool {
	return r.ErrorKind != ""
}
