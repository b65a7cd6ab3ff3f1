package scanner

import (
	"time"

	"github.com/nao1215/portsweep/internal/model"
)

// StealthTimeout is the per-probe timeout forced by stealth mode.
const StealthTimeout = 5 * time.Second

// stealthWorkers is the worker count forced by stealth mode.
const stealthWorkers = 1

// ApplyStealth returns req with the stealth policy applied. When Stealth is
// set the scan runs a single worker with StealthTimeout, whatever the caller
// asked for; otherwise req is returned unchanged.
func ApplyStealth(req model.ScanRequest) model.ScanRequest {
	if !req.Stealth {
		return req
	}
	req.Workers = stealthWorkers
	req.Timeout = StealthTimeout
	return req
}
