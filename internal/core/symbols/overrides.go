package symbols

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

// VenueOverride redirects a ticker to a specific query symbol and exchange.
type VenueOverride struct {
	Query    string `yaml:"query"`
	Exchange string `yaml:"exchange"`
}

type overridesFile struct {
	Symbols map[string]VenueOverride `yaml:"symbols"`
}

// defaultVenueOverrides is the hardcoded fallback when no override file is
// found. BYD Company Limited trades on the Hong Kong exchange as 1211.HK;
// the bare US ticker never resolves.
func defaultVenueOverrides() map[string]VenueOverride {
	return map[string]VenueOverride{
		"BYD": {Query: "1211", Exchange: "SEHK"},
	}
}

// LoadVenueOverrides reads the YAML override table at path and returns it
// with uppercased symbols. Returns the hardcoded defaults when path is empty
// or the file cannot be read.
func LoadVenueOverrides(path string) map[string]VenueOverride {
	if path == "" {
		return defaultVenueOverrides()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		telemetry.Warnf("symbols: override file %s not found, using built-in defaults", path)
		return defaultVenueOverrides()
	}

	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		telemetry.Warnf("symbols: failed to parse %s: %v, using built-in defaults", path, err)
		return defaultVenueOverrides()
	}
	if len(f.Symbols) == 0 {
		telemetry.Warnf("symbols: %s has no symbol overrides, using built-in defaults", path)
		return defaultVenueOverrides()
	}

	out := make(map[string]VenueOverride, len(f.Symbols))
	for sym, ov := range f.Symbols {
		out[strings.ToUpper(sym)] = ov
	}
	telemetry.Infof("symbols: loaded %d venue overrides from %s", len(out), path)
	return out
}
