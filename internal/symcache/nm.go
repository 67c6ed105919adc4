package symcache

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/berrill/StackTrace/internal/execcmd"
)

// NMLister obtains symbols for an executable from the system nm tool:
// `nm -n --demangle` on Linux, `nm -n | c++filt` on Darwin. On Windows the
// lister yields no lines and the cache stays empty (symbol resolution there
// goes through the debug-help backend instead).
type NMLister struct {
	Executable string
	Runner     execcmd.Runner
	GOOS       string
}

func NewNMLister(executable string) *NMLister {
	return &NMLister{Executable: executable, Runner: execcmd.NewSystemRunner(), GOOS: runtime.GOOS}
}

func (l *NMLister) List() ([]string, error) {
	if l.Executable == "" {
		return nil, fmt.Errorf("no executable path")
	}
	var out string
	var code int
	var err error
	switch l.GOOS {
	case "linux":
		out, code, err = l.Runner.Run("nm", "-n", "--demangle", l.Executable)
	case "darwin":
		out, code, err = l.Runner.Run("sh", "-c", fmt.Sprintf("nm -n %q | c++filt", l.Executable))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("nm exited with code %d", code)
	}
	return strings.Split(out, "\n"), nil
}
