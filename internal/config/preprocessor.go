package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxConfigFileSize bounds any JSON options file this package loads.
const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// PreprocessorOptions mirrors the track preprocessor's Options (spec §4.D):
// fitness-function weights, curvature/width limits, and search tolerances.
// Fields are pointers so a partial JSON document only overrides what it
// names; Get* accessors supply the rest, following the teacher's
// TuningConfig idiom.
type PreprocessorOptions struct {
	EpsD *float64 `json:"eps_d,omitempty"`
	EpsK *float64 `json:"eps_k,omitempty"`
	EpsN *float64 `json:"eps_n,omitempty"`
	EpsC *float64 `json:"eps_c,omitempty"`

	MaximumKappa           *float64 `json:"maximum_kappa,omitempty"`
	MaximumDKappa          *float64 `json:"maximum_dkappa,omitempty"`
	MaximumDN              *float64 `json:"maximum_dn,omitempty"`
	MaximumDistanceFind    *float64 `json:"maximum_distance_find,omitempty"`
	AdaptionAspectRatioMax *float64 `json:"adaption_aspect_ratio_max,omitempty"`

	PrintLevel *int `json:"print_level,omitempty"`
}

// DefaultPreprocessorOptions returns an empty options struct; the Get*
// accessors carry the actual spec §4.D defaults so a zero-value struct is
// always usable.
func DefaultPreprocessorOptions() *PreprocessorOptions { return &PreprocessorOptions{} }

// LoadPreprocessorOptions loads a PreprocessorOptions from a JSON file.
func LoadPreprocessorOptions(path string) (*PreprocessorOptions, error) {
	data, err := readValidatedJSONFile(path)
	if err != nil {
		return nil, err
	}
	opts := DefaultPreprocessorOptions()
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse preprocessor options JSON: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocessor options: %w", err)
	}
	return opts, nil
}

// Validate checks that any explicitly set field is within a sane range.
func (o *PreprocessorOptions) Validate() error {
	if o.MaximumKappa != nil && *o.MaximumKappa <= 0 {
		return fmt.Errorf("maximum_kappa must be positive, got %f", *o.MaximumKappa)
	}
	if o.MaximumDKappa != nil && *o.MaximumDKappa <= 0 {
		return fmt.Errorf("maximum_dkappa must be positive, got %f", *o.MaximumDKappa)
	}
	if o.MaximumDN != nil && *o.MaximumDN <= 0 {
		return fmt.Errorf("maximum_dn must be positive, got %f", *o.MaximumDN)
	}
	if o.AdaptionAspectRatioMax != nil && *o.AdaptionAspectRatioMax <= 0 {
		return fmt.Errorf("adaption_aspect_ratio_max must be positive, got %f", *o.AdaptionAspectRatioMax)
	}
	return nil
}

func (o *PreprocessorOptions) GetEpsD() float64 {
	if o.EpsD == nil {
		return 1.0e-1
	}
	return *o.EpsD
}

func (o *PreprocessorOptions) GetEpsK() float64 {
	if o.EpsK == nil {
		return 5.0e4
	}
	return *o.EpsK
}

func (o *PreprocessorOptions) GetEpsN() float64 {
	if o.EpsN == nil {
		return 1.0e-1
	}
	return *o.EpsN
}

func (o *PreprocessorOptions) GetEpsC() float64 {
	if o.EpsC == nil {
		return 1.0e-1
	}
	return *o.EpsC
}

func (o *PreprocessorOptions) GetMaximumKappa() float64 {
	if o.MaximumKappa == nil {
		return 0.1
	}
	return *o.MaximumKappa
}

func (o *PreprocessorOptions) GetMaximumDKappa() float64 {
	if o.MaximumDKappa == nil {
		return 2.0e-2
	}
	return *o.MaximumDKappa
}

func (o *PreprocessorOptions) GetMaximumDN() float64 {
	if o.MaximumDN == nil {
		return 1.0
	}
	return *o.MaximumDN
}

func (o *PreprocessorOptions) GetMaximumDistanceFind() float64 {
	if o.MaximumDistanceFind == nil {
		return 50.0
	}
	return *o.MaximumDistanceFind
}

func (o *PreprocessorOptions) GetAdaptionAspectRatioMax() float64 {
	if o.AdaptionAspectRatioMax == nil {
		return 1.2
	}
	return *o.AdaptionAspectRatioMax
}

func (o *PreprocessorOptions) GetPrintLevel() int {
	if o.PrintLevel == nil {
		return 0
	}
	return *o.PrintLevel
}

// readValidatedJSONFile is shared by every Load* in this package: it
// enforces a .json extension and a size ceiling before reading, the same
// guard the teacher's LoadTuningConfig applies.
func readValidatedJSONFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}
