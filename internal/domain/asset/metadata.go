package asset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MetadataFilename is the descriptor expected in every asset directory.
const MetadataFilename = "asset_metadata.json"

// Metadata is the per-asset build descriptor.
type Metadata struct {
	// SensuName is the asset name registered in Sensu.
	SensuName string `json:"asset_name"`
	// Version is the asset release version.
	Version string `json:"version"`
	// Requirements are pip package specifiers installed into the asset, in order.
	Requirements []string `json:"requirements"`
	// PythonVersion selects the runtime, e.g. "3.9.10".
	PythonVersion string `json:"python_version"`
	// IsCompiled switches the build from dependency installation to compilation.
	IsCompiled bool `json:"is_compiled"`
	// Systems are the declared build targets.
	Systems []SystemTarget `json:"systems"`
}

// SystemTarget is a declared build target as written in asset_metadata.json.
type SystemTarget struct {
	// OS is the target operating system, e.g. "linux".
	OS string `json:"os"`
	// PlatformFamily is the distribution lineage, e.g. "rhel" or "alpine".
	PlatformFamily string `json:"platform_family,omitempty"`
	// PlatformVersion is the optional distribution major version.
	PlatformVersion PlatformVersion `json:"platform_version,omitempty"`
	// Arch is the optional architecture; the host architecture is used when empty.
	Arch string `json:"arch,omitempty"`
	// SensuFilters are copied verbatim into the manifest build entry.
	SensuFilters []string `json:"sensu_filters"`
}

// PlatformVersion accepts both JSON numbers and strings, so 7 and "7" are equal.
type PlatformVersion string

// UnmarshalJSON implements json.Unmarshaler.
func (v *PlatformVersion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("platform_version: %w", err)
		}

		*v = PlatformVersion(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("platform_version: %w", err)
	}

	*v = PlatformVersion(normalizeNumber(n))

	return nil
}

// normalizeNumber drops the fraction of integral numbers, so 7.0 reads as "7".
func normalizeNumber(n json.Number) string {
	if _, err := n.Int64(); err == nil {
		return n.String()
	}

	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return n.String()
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}
