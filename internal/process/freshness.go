package process

import (
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// TimeResolution is the coarsest modification time granularity assumed for
// the filesystem. A target modified more recently than this is not
// guaranteed to get a distinct time when rewritten.
const TimeResolution = 1001 * time.Millisecond

type outputState struct {
	path    string
	existed bool
	// modTime is nil when the file existed but its time could not be read.
	modTime *time.Time
}

// snapshot records each declared output before the run and returns the
// pause needed so that rewrites get a distinguishable modification time.
func (r *Runner) snapshot(inv Invocation, diags *[]report.Diagnostic) ([]outputState, time.Duration) {
	now := r.now()
	minAge := time.Duration(-1)
	states := make([]outputState, 0, len(inv.Outputs))
	for _, out := range inv.Outputs {
		p := out
		if !filepath.IsAbs(p) {
			p = filepath.Join(inv.Dir, p)
		}
		st := outputState{path: p}
		fi, err := r.stat(p)
		switch {
		case err == nil:
			st.existed = true
			mt := fi.ModTime()
			st.modTime = &mt
			age := now.Sub(mt)
			if age < 0 {
				age = 0
			}
			if minAge < 0 || age < minAge {
				minAge = age
			}
		case !os.IsNotExist(err):
			st.existed = true
			*diags = append(*diags, unreadable(p))
		}
		states = append(states, st)
	}
	if minAge >= 0 && minAge < TimeResolution {
		return states, TimeResolution - minAge
	}
	return states, 0
}

func (r *Runner) verify(command string, st outputState, diags *[]report.Diagnostic) {
	fi, err := r.stat(st.path)
	if err != nil && os.IsNotExist(err) {
		*diags = append(*diags, report.New(report.CodeNoTarget,
			"running %s failed: no target file '%s' written", command, filepath.Base(st.path)))
		return
	}
	if !st.existed {
		return
	}
	if st.modTime == nil {
		// already reported before the run
		return
	}
	if err != nil {
		*diags = append(*diags, unreadable(st.path))
		return
	}
	if !fi.ModTime().After(*st.modTime) {
		*diags = append(*diags, report.New(report.CodeTargetNotUpdated,
			"running %s failed: target file '%s' is not updated", command, filepath.Base(st.path)))
	}
}

func unreadable(path string) report.Diagnostic {
	return report.New(report.CodeTargetUnreadable,
		"cannot read target file '%s'; may be outdated", filepath.Base(path))
}
