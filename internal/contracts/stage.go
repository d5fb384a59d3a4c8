package contracts

// Pipeline stage definitions.
// Every log line, artifact directory, and run summary uses these constants.
//
// Pipeline flow:
//   S0 → S1 → S2 → S3 → S4 → S5
//   Ingestion  Validation  Transformation  Training  Evaluation  Pusher

// Stage represents a training pipeline stage.
type Stage string

const (
	// StageIngestion S0: pull records from the source and split train/test.
	// Location: internal/s0_ingest/
	StageIngestion Stage = "S0_INGESTION"

	// StageValidation S1: schema and drift checks on the ingested split.
	// Location: internal/s1_validate/
	StageValidation Stage = "S1_VALIDATION"

	// StageTransformation S2: fit encoder/scaler on train, apply to both partitions.
	// Location: internal/s2_transform/
	StageTransformation Stage = "S2_TRANSFORMATION"

	// StageTraining S3: fit the model, score it on the held-out partition.
	// Location: internal/s3_train/
	StageTraining Stage = "S3_TRAINING"

	// StageEvaluation S4: compare candidate against production, gate promotion.
	// Location: internal/s4_evaluate/
	StageEvaluation Stage = "S4_EVALUATION"

	// StagePusher S5: upload the accepted candidate and repoint production.
	// Location: internal/s5_push/
	StagePusher Stage = "S5_PUSHER"
)

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// ShortName returns the abbreviated stage name (e.g., "S0", "S1").
func (s Stage) ShortName() string {
	switch s {
	case StageIngestion:
		return "S0"
	case StageValidation:
		return "S1"
	case StageTransformation:
		return "S2"
	case StageTraining:
		return "S3"
	case StageEvaluation:
		return "S4"
	case StagePusher:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageIngestion,
		StageValidation,
		StageTransformation,
		StageTraining,
		StageEvaluation,
		StagePusher,
	}
}

// IsValidStage checks if a stage string is valid.
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
