// Package compileinfo reports the module, toolchain and VCS revision the
// running binary was built from, so that exported volumes and images can be
// traced back to the code that produced them.
package compileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/carbocation/cbctmar/logger"
)

// Revisions are shortened to this many characters.
const shortRevision = 12

type CompileInfo struct {
	Binary       string
	Module       string
	GoVersion    string
	Revision     string
	RevisionTime string
	Dirty        bool
}

func (c CompileInfo) String() string {
	rev := c.Revision
	if rev == "" {
		rev = "unknown"
	}
	if c.Dirty {
		rev += "+dirty"
	}

	return fmt.Sprintf("%s (%s) %s rev %s", c.Binary, c.Module, c.GoVersion, rev)
}

// Fields renders the info as alternating keys and values for structured
// logging.
func (c CompileInfo) Fields() []interface{} {
	return []interface{}{
		"binary", c.Binary,
		"module", c.Module,
		"go", c.GoVersion,
		"revision", c.Revision,
		"revision_time", c.RevisionTime,
		"dirty", c.Dirty,
	}
}

func Get() CompileInfo {
	out := CompileInfo{Binary: filepath.Base(os.Args[0])}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Module = z.Main.Path
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Revision = s.Value
			if len(out.Revision) > shortRevision {
				out.Revision = out.Revision[:shortRevision]
			}
		case "vcs.time":
			out.RevisionTime = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		}
	}

	return out
}

// Log emits the build info of the running binary at info level.
func Log(log *logger.Logger) {
	log.Info("build", Get().Fields()...)
}
