package types

import "fmt"

// Source identifies where a memory record came from
type Source string

const (
	SourceUserInput       Source = "user_input"
	SourceCoachInput      Source = "coach_input"
	SourceDeviceSync      Source = "device_sync"
	SourceGoogleFit       Source = "google_fit"
	SourceLabImport       Source = "lab_import"
	SourceSystemGenerated Source = "system_generated"
	SourceAdminManual     Source = "admin_manual"
)

// defaultConfidence is applied to sources without a dedicated score
const defaultConfidence = 0.80

// AllSources returns all valid sources
func AllSources() []Source {
	return []Source{
		SourceUserInput,
		SourceCoachInput,
		SourceDeviceSync,
		SourceGoogleFit,
		SourceLabImport,
		SourceSystemGenerated,
		SourceAdminManual,
	}
}

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceUserInput,
		SourceCoachInput,
		SourceDeviceSync,
		SourceGoogleFit,
		SourceLabImport,
		SourceSystemGenerated,
		SourceAdminManual:
		return true
	default:
		return false
	}
}

// DefaultConfidence returns the confidence assigned to a record of this
// source when the caller did not supply one
func (s Source) DefaultConfidence() float64 {
	switch s {
	case SourceUserInput, SourceCoachInput:
		return 0.95
	case SourceDeviceSync:
		return 0.90
	case SourceLabImport:
		return 1.0
	case SourceSystemGenerated:
		return 0.80
	default:
		return defaultConfidence
	}
}

// String returns the string representation of the source
func (s Source) String() string {
	return string(s)
}

// ParseSource parses a string into a Source
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.IsValid() {
		return "", fmt.Errorf("invalid source: %s", s)
	}
	return src, nil
}
