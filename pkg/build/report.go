package build

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/doc-toc/pkg/models"
	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// WriteReport saves the build report as YAML, creating parent directories as needed
func WriteReport(report *models.BuildReport, path string) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: marshaling YAML build report: %w", utils.ErrParsing, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating report dir: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing build report '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

// LoadReport reads a build report previously written by WriteReport
func LoadReport(path string) (*models.BuildReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading build report '%s': %w", utils.ErrFilesystem, path, err)
	}
	var report models.BuildReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML build report '%s': %w", utils.ErrParsing, path, err)
	}
	return &report, nil
}
