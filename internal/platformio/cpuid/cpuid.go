// Package cpuid identifies the host's (vendor, family, model) triple
// and resolves it to a platform family entry describing the register
// layout IOGroups should use — frequency step size, min/max ratio, and
// MSR offset variants differ across CPU families, so this table keyed
// on the triple replaces an inheritance hierarchy per family. Parsing
// is grounded on internal/collector/cpu.go's /proc/cpuinfo-adjacent
// text-field scanning idiom.
package cpuid

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/geopmd/core/internal/geopmerr"
)

// ID identifies a CPU by vendor string, family, and model, as reported
// by /proc/cpuinfo.
type ID struct {
	VendorID string
	Family   int
	Model    int
}

// Family describes the register layout conventions for a group of CPU
// models sharing the same frequency-step and MSR offset scheme.
type Family struct {
	Name           string
	FreqStepHz     float64
	MinFreqHz      float64
	MaxFreqHz      float64
	EnergyUnitUJ   float64 // RAPL energy-status scale, microjoules per raw unit
}

var genericFamily = Family{
	Name:         "generic",
	FreqStepHz:   1e8, // 100 MHz
	MinFreqHz:    8e8,
	MaxFreqHz:    5e9,
	EnergyUnitUJ: 1e6 / 65536, // matches msrfs.energyUnitMicrojoules's default RAPL resolution
}

// families is keyed by "vendor/family/model"; entries not present here
// fall back to genericFamily rather than erroring, since the core does
// not need an exhaustive model database to function.
var families = map[string]Family{
	"GenuineIntel/6/143": {Name: "sapphirerapids", FreqStepHz: 1e8, MinFreqHz: 8e8, MaxFreqHz: 3.8e9, EnergyUnitUJ: 1e6 / 65536},
	"GenuineIntel/6/106": {Name: "icelake-sp", FreqStepHz: 1e8, MinFreqHz: 8e8, MaxFreqHz: 3.5e9, EnergyUnitUJ: 1e6 / 65536},
	"AuthenticAMD/25/1":  {Name: "genoa", FreqStepHz: 2.5e7, MinFreqHz: 1.5e9, MaxFreqHz: 3.7e9, EnergyUnitUJ: 1e6 / 65536},
}

// Detect reads /proc/cpuinfo at procRoot (normally "/proc") and returns
// the ID of CPU 0.
func Detect(procRoot string) (ID, error) {
	f, err := os.Open(procRoot + "/cpuinfo")
	if err != nil {
		return ID{}, geopmerr.Wrap(geopmerr.NotSupported, err, "cpuid: open %s/cpuinfo", procRoot)
	}
	defer f.Close()

	var id ID
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			if line == "" && id.VendorID != "" {
				break // end of the first logical CPU's block
			}
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		switch key {
		case "vendor_id":
			id.VendorID = val
		case "cpu family":
			id.Family, _ = strconv.Atoi(val)
		case "model":
			id.Model, _ = strconv.Atoi(val)
		}
	}
	if id.VendorID == "" {
		return ID{}, geopmerr.New(geopmerr.Platform, "cpuid: no vendor_id found in %s/cpuinfo", procRoot)
	}
	return id, nil
}

// Resolve looks up id's register-layout family, falling back to a
// generic conservative family when the exact model is not in the
// table.
func Resolve(id ID) Family {
	key := id.VendorID + "/" + strconv.Itoa(id.Family) + "/" + strconv.Itoa(id.Model)
	if f, ok := families[key]; ok {
		return f
	}
	return genericFamily
}
