package usecases

import (
	"context"
	"fmt"

	"github.com/sophialabs/contractmock/internal/domain/scenario"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
	"github.com/sophialabs/contractmock/internal/infrastructure/services"
)

// LoadScenariosUseCase reads every scenario file, runs the full validation
// pipeline, and builds the immutable scenario set.
type LoadScenariosUseCase struct {
	repo      *filesystem.Repository
	validator *services.Validator
	logger    ports.Logger
}

// NewLoadScenariosUseCase creates a new use case.
func NewLoadScenariosUseCase(repo *filesystem.Repository, validator *services.Validator, logger ports.Logger) *LoadScenariosUseCase {
	return &LoadScenariosUseCase{repo: repo, validator: validator, logger: logger}
}

// Execute loads and validates all scenario files. The report aggregates
// every finding across files; on any error-severity finding the returned set
// is nil. The error return covers IO failures only.
func (uc *LoadScenariosUseCase) Execute(_ context.Context) (*scenario.Set, services.Report, error) {
	files, err := uc.repo.ReadAll()
	if err != nil {
		return nil, services.Report{}, fmt.Errorf("failed to read scenario files: %w", err)
	}

	var report services.Report
	var valid []*scenario.Scenario
	for _, f := range files {
		sc, findings := uc.validator.ValidateFile(f.Path, f.Data)
		report.Findings = append(report.Findings, findings...)
		if sc != nil {
			valid = append(valid, sc)
		}
	}
	report.Findings = append(report.Findings, uc.validator.ValidateSet(valid)...)

	for _, w := range report.Warnings() {
		uc.logger.Warn("scenario warning", "finding", w.String())
	}
	if report.HasErrors() {
		return nil, report, nil
	}

	set := scenario.NewSet(valid)
	uc.logger.Info("scenarios loaded", "files", len(files), "scenarios", set.Len())
	return set, report, nil
}
