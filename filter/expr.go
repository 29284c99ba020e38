// Package filter evaluates expr-lang expressions against torrents.
//
// Expressions see the torrent's fields as variables and a small set of
// helpers, for example:
//
//	Progress < 1 and Category == "movies"
//	hasTag("hd") and Size > gib(4)
//	daysSince(AddedOn) > 30 and Seeding
package filter

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/qbitctl/qbittorrent"
)

// Expression is a compiled torrent filter expression
type Expression struct {
	source  string
	program *vm.Program
}

// Compile compiles an expression. Unknown variables are rejected so typos
// do not silently match nothing.
func Compile(expression string) (*Expression, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(newEnvironment(qbittorrent.Torrent{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	return &Expression{source: expression, program: program}, nil
}

// String returns the source expression
func (e *Expression) String() string {
	return e.source
}

// Match evaluates the expression against t. Evaluation errors count as no match.
func (e *Expression) Match(t qbittorrent.Torrent) bool {
	result, err := expr.Run(e.program, newEnvironment(t))
	if err != nil {
		return false
	}
	// AsBool guarantees the type
	return result.(bool)
}

// Apply returns the torrents matching the expression, in input order.
func (e *Expression) Apply(torrents []qbittorrent.Torrent) []qbittorrent.Torrent {
	out := make([]qbittorrent.Torrent, 0, len(torrents))
	for _, t := range torrents {
		if e.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// newEnvironment creates the evaluation environment for a torrent
func newEnvironment(t qbittorrent.Torrent) map[string]any {
	env := make(map[string]any, 32)
	addHelperFunctions(env)

	completedAt, _ := t.CompletedAt()

	env["Name"] = t.Name
	env["Hash"] = t.Hash
	env["State"] = t.State
	env["Progress"] = t.Progress
	env["Size"] = t.TotalSize
	env["DownloadSpeed"] = t.DownloadSpeed
	env["UploadSpeed"] = t.UploadSpeed
	env["ETA"] = t.ETA
	env["Ratio"] = t.Ratio
	env["Category"] = t.Category
	env["Tags"] = t.Tags
	env["SavePath"] = t.SavePath
	env["AddedOn"] = t.AddedAt()
	env["CompletionOn"] = completedAt
	env["Complete"] = t.IsComplete()
	env["Seeding"] = t.IsActivelySeeding()

	env["hasTag"] = createHasTagFunc(t.Tags)
	return env
}

// addHelperFunctions adds the torrent independent helpers. Names must not
// collide with expr operators such as contains or startsWith.
func addHelperFunctions(env map[string]any) {
	env["daysSince"] = func(at time.Time) int {
		if at.IsZero() {
			return 0
		}
		return int(time.Since(at).Hours() / 24)
	}
	env["gib"] = func(n float64) float64 {
		return n * humanize.GiByte
	}
	env["mib"] = func(n float64) float64 {
		return n * humanize.MiByte
	}
	env["containsFold"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["hasPrefix"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["hasSuffix"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper
	env["now"] = time.Now
}

func createHasTagFunc(tags []string) func(string) bool {
	return func(tag string) bool {
		for _, t := range tags {
			if strings.EqualFold(t, tag) {
				return true
			}
		}
		return false
	}
}
