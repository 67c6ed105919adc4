package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/berrill/StackTrace/internal/execcmd"
)

// Atos wraps the Darwin atos tool, the addr2line counterpart. Output form:
//
//	main (in myprog) (main.c:42)
type Atos struct {
	Runner execcmd.Runner
}

func NewAtos() *Atos {
	return &Atos{Runner: execcmd.NewSystemRunner()}
}

func (a *Atos) Symbolise(object string, addr uint64) (Offline, error) {
	if object == "" {
		return Offline{}, ErrSymboliserFailed
	}
	out, code, err := a.Runner.Run("atos", "-o", object, fmt.Sprintf("0x%x", addr))
	if err != nil || code != 0 {
		return Offline{}, fmt.Errorf("%w: atos: %v (exit %d)", ErrSymboliserFailed, err, code)
	}
	return parseAtos(out), nil
}

func parseAtos(out string) Offline {
	line := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	var off Offline
	if line == "" || strings.HasPrefix(line, "0x") {
		// atos echoes the address back when it cannot resolve it
		return off
	}
	name := line
	if i := strings.Index(line, " (in "); i > 0 {
		name = line[:i]
	}
	off.Function = name
	if i := strings.LastIndex(line, "("); i >= 0 && strings.HasSuffix(line, ")") {
		loc := line[i+1 : len(line)-1]
		if j := strings.LastIndex(loc, ":"); j > 0 {
			if n, err := strconv.Atoi(loc[j+1:]); err == nil && n > 0 {
				off.Filename = loc[:j]
				off.Line = n
			}
		}
	}
	return off
}
