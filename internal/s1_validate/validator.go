package s1_validate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// Validator checks the ingested split against the declared schema. Hard
// checks (presence, type, domain) are all-or-nothing for the run; the
// train/test drift check is a recorded warning and never blocks.
type Validator struct {
	schema         contracts.Schema
	driftThreshold float64
	store          *artifact.Store
	logger         *logger.Logger
}

// NewValidator creates the validation stage.
func NewValidator(schema contracts.Schema, driftThreshold float64, store *artifact.Store, log *logger.Logger) *Validator {
	return &Validator{
		schema:         schema,
		driftThreshold: driftThreshold,
		store:          store,
		logger:         log,
	}
}

// Run validates the split, writes the verdict artifact, and returns a stage
// error when the verdict failed. The verdict artifact is written either way
// so failed runs stay diagnosable.
func (v *Validator) Run(ctx context.Context, runID string, split contracts.DatasetSplit, upstream contracts.ArtifactRef) (contracts.Verdict, contracts.ArtifactRef, error) {
	verdict := v.Check(split)

	ref, err := v.store.Write(runID, contracts.StageValidation, verdict,
		[]contracts.ArtifactRef{upstream}, map[string]string{
			"passed":     strconv.FormatBool(verdict.Passed),
			"violations": strconv.Itoa(len(verdict.Violations)),
			"warnings":   strconv.Itoa(len(verdict.Warnings)),
		})
	if err != nil {
		return verdict, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageValidation, contracts.ErrTypeMismatch,
				fmt.Errorf("persist verdict artifact: %w", err))
	}

	for _, w := range verdict.Warnings {
		v.logger.WithFields(map[string]interface{}{
			"run_id":    runID,
			"column":    w.Column,
			"statistic": w.Statistic,
			"threshold": w.Threshold,
		}).Warn("Train/test drift above threshold")
	}

	if !verdict.Passed {
		first := verdict.Violations[0]
		return verdict, ref,
			contracts.NewStageError(contracts.StageValidation, first.Rule,
				fmt.Errorf("column %s: %s", first.Column, first.Detail))
	}

	return verdict, ref, nil
}

// Check produces the verdict for a split. Deterministic: re-running on an
// unchanged split yields an identical verdict.
func (v *Validator) Check(split contracts.DatasetSplit) contracts.Verdict {
	var violations []contracts.RuleViolation

	// Rule order per column: presence, then type, then domain.
	for _, col := range v.schema.Columns {
		if vio, ok := checkPresence(col); !ok {
			violations = append(violations, vio)
			continue
		}
		colViolations := checkColumn(col, split)
		violations = append(violations, colViolations...)
	}

	verdict := contracts.Verdict{
		Passed:     len(violations) == 0,
		Violations: violations,
	}

	// Drift is advisory only; compute it regardless of hard-check outcome.
	verdict.Warnings = v.driftWarnings(split)

	return verdict
}

// checkPresence verifies the column exists on the record type at all.
func checkPresence(col contracts.ColumnSpec) (contracts.RuleViolation, bool) {
	if _, ok := (contracts.Record{}).Field(col.Name); !ok {
		return contracts.RuleViolation{
			Column: col.Name,
			Rule:   contracts.ErrMissingColumn,
			Detail: "column not present in dataset",
		}, false
	}
	return contracts.RuleViolation{}, true
}

// checkColumn runs type and domain rules over both partitions.
func checkColumn(col contracts.ColumnSpec, split contracts.DatasetSplit) []contracts.RuleViolation {
	var violations []contracts.RuleViolation

	check := func(records []contracts.Record) {
		for _, rec := range records {
			val, _ := rec.Field(col.Name)

			// Type rule.
			switch col.Type {
			case contracts.ColumnNumeric, contracts.ColumnBinary:
				if val.Kind != contracts.ValueNumeric {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrTypeMismatch,
						Detail: fmt.Sprintf("record %d: expected numeric value", rec.ID),
					})
					continue
				}
				if math.IsNaN(val.Num) || math.IsInf(val.Num, 0) {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrTypeMismatch,
						Detail: fmt.Sprintf("record %d: non-finite value", rec.ID),
					})
					continue
				}
			case contracts.ColumnCategorical:
				if val.Kind != contracts.ValueCategorical {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrTypeMismatch,
						Detail: fmt.Sprintf("record %d: expected categorical value", rec.ID),
					})
					continue
				}
			}

			// Domain rule.
			switch col.Type {
			case contracts.ColumnNumeric:
				if val.Num < col.Min || val.Num > col.Max {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrDomainViolation,
						Detail: fmt.Sprintf("record %d: value %v outside [%v, %v]", rec.ID, val.Num, col.Min, col.Max),
					})
				}
			case contracts.ColumnBinary:
				if val.Num != 0 && val.Num != 1 {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrDomainViolation,
						Detail: fmt.Sprintf("record %d: value %v not in {0, 1}", rec.ID, val.Num),
					})
				}
			case contracts.ColumnCategorical:
				if col.Required && val.Str == "" {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrDomainViolation,
						Detail: fmt.Sprintf("record %d: required value is empty", rec.ID),
					})
					continue
				}
				if !inDomain(val.Str, col.Domain) {
					violations = append(violations, contracts.RuleViolation{
						Column: col.Name,
						Rule:   contracts.ErrDomainViolation,
						Detail: fmt.Sprintf("record %d: value %q not in domain", rec.ID, val.Str),
					})
				}
			}
		}
	}

	check(split.Train)
	check(split.Test)

	return violations
}

func inDomain(v string, domain []string) bool {
	for _, d := range domain {
		if v == d {
			return true
		}
	}
	return false
}

// driftWarnings computes the Kolmogorov-Smirnov statistic between train and
// test for every numeric column and records the ones above threshold.
func (v *Validator) driftWarnings(split contracts.DatasetSplit) []contracts.DriftWarning {
	if len(split.Train) == 0 || len(split.Test) == 0 {
		return nil
	}

	var warnings []contracts.DriftWarning
	for _, col := range v.schema.NumericColumns() {
		trainVals := columnValues(split.Train, col.Name)
		testVals := columnValues(split.Test, col.Name)
		if len(trainVals) == 0 || len(testVals) == 0 {
			continue
		}

		sort.Float64s(trainVals)
		sort.Float64s(testVals)

		ks := stat.KolmogorovSmirnov(trainVals, nil, testVals, nil)
		if ks > v.driftThreshold {
			warnings = append(warnings, contracts.DriftWarning{
				Column:    col.Name,
				Statistic: ks,
				Threshold: v.driftThreshold,
			})
		}
	}

	return warnings
}

func columnValues(records []contracts.Record, col string) []float64 {
	vals := make([]float64, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.Field(col); ok && v.Kind == contracts.ValueNumeric && !math.IsNaN(v.Num) {
			vals = append(vals, v.Num)
		}
	}
	return vals
}
