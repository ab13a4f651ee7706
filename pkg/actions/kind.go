package actions

import (
	"fmt"
	"strings"

	"github.com/yaklabco/fwstat/config"
)

// Kind identifies a post action.
type Kind int

//go:generate go tool golang.org/x/tools/cmd/stringer -type=Kind -linecomment
const (
	KindStatus    Kind = iota + 1 // status
	KindEnvDump                   // envdump
	KindSizeCheck                 // sizecheck
)

// ParseKind returns the Kind named by name.
func ParseKind(name string) (Kind, error) {
	for _, kind := range []Kind{KindStatus, KindEnvDump, KindSizeCheck} {
		if name == kind.String() {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q (known: %s)", name, strings.Join(config.KnownActionNames(), ", "))
}
