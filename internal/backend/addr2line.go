package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/berrill/StackTrace/internal/execcmd"
)

// Addr2Line wraps the binutils addr2line tool. One synchronous invocation
// yields at most one frame record; missing tools or stripped binaries
// produce empty fields, never a hard failure upstream.
type Addr2Line struct {
	Runner execcmd.Runner
}

func NewAddr2Line() *Addr2Line {
	return &Addr2Line{Runner: execcmd.NewSystemRunner()}
}

func (a *Addr2Line) Symbolise(object string, addr uint64) (Offline, error) {
	if object == "" {
		return Offline{}, ErrSymboliserFailed
	}
	out, code, err := a.Runner.Run("addr2line", "-C", "-f", "-e", object, fmt.Sprintf("0x%x", addr))
	if err != nil || code != 0 {
		return Offline{}, fmt.Errorf("%w: addr2line: %v (exit %d)", ErrSymboliserFailed, err, code)
	}
	return parseAddr2Line(out), nil
}

// parseAddr2Line decodes the two-line `addr2line -f` output:
//
//	function_name
//	/path/to/file.c:123
//
// Unknown entries are "??" and "??:0" and map to empty fields.
func parseAddr2Line(out string) Offline {
	lines := strings.SplitN(out, "\n", 3)
	var off Offline
	if len(lines) >= 1 {
		fn := strings.TrimSpace(lines[0])
		if fn != "" && fn != "??" {
			off.Function = fn
		}
	}
	if len(lines) >= 2 {
		loc := strings.TrimSpace(lines[1])
		// "(discriminator N)" may trail the location
		if sp := strings.IndexByte(loc, ' '); sp > 0 {
			loc = loc[:sp]
		}
		if i := strings.LastIndex(loc, ":"); i > 0 {
			file := loc[:i]
			if file != "" && !strings.HasPrefix(file, "?") {
				off.Filename = file
				if n, err := strconv.Atoi(loc[i+1:]); err == nil && n > 0 {
					off.Line = n
				}
			}
		}
	}
	return off
}
