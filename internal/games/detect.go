package games

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Detector matches the catalog against running processes.
type Detector struct {
	catalog  *Catalog
	snapshot func() (map[string]bool, error)
}

// NewDetector builds a detector over a catalog.
func NewDetector(catalog *Catalog) *Detector {
	if catalog == nil {
		catalog = BuiltinCatalog()
	}
	return &Detector{catalog: catalog, snapshot: processSnapshot}
}

// Detect returns the first catalog game with a running process. The
// process list is sampled once per call.
func (d *Detector) Detect() (Game, bool) {
	names, err := d.snapshot()
	if err != nil {
		log.Warn("process snapshot failed", "error", err.Error())
		return Game{}, false
	}
	for _, g := range d.catalog.All() {
		for _, proc := range g.Processes {
			if names[strings.ToLower(proc)] {
				return g, true
			}
		}
	}
	return Game{}, false
}

// processSnapshot caches all process names for batch matching,
// lowercased.
func processSnapshot() (map[string]bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(procs))
	skipped := 0
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			skipped++
			continue
		}
		names[strings.ToLower(name)] = true
	}

	if skipped > 0 {
		log.Debug("process snapshot skipped processes", "skipped", skipped, "total", len(procs))
	}
	return names, nil
}
