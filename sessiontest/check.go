package sessiontest

import (
	"context"
	"fmt"
	"os"
)

// Status is the outcome of one contract run outside go test.
type Status string

// Contract outcomes.
const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Outcome records how one contract behaved against an Env.
type Outcome struct {
	Case    TestCase
	Status  Status
	Message string
}

// Check runs every contract against env without the testing package,
// converting assertion failures into Outcomes.
func Check(ctx context.Context, env Env) []Outcome {
	contracts := AllContracts()
	outcomes := make([]Outcome, 0, len(contracts))

	for _, tc := range contracts {
		outcomes = append(outcomes, execute(ctx, env, tc))
	}

	return outcomes
}

func execute(ctx context.Context, env Env, tc TestCase) Outcome {
	rec := &recorder{ctx: ctx, name: tc.ID()}
	defer rec.cleanup()

	runWithRecovery(rec, tc, env)

	out := Outcome{Case: tc, Status: StatusPassed}

	switch {
	case rec.skipped:
		out.Status = StatusSkipped
		out.Message = rec.skipMsg
	case rec.failed:
		out.Status = StatusFailed
		out.Message = rec.errMsg
	}

	return out
}

func runWithRecovery(rec *recorder, tc TestCase, env Env) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case failNow, skipNow:
				return
			default:
				rec.failed = true
				rec.errMsg = fmt.Sprintf("panic: %v", r)
			}
		}
	}()

	tc.Run(rec, env)
}

// recorder implements T by capturing failures instead of reporting them.
type recorder struct {
	ctx      context.Context //nolint:containedctx
	name     string
	failed   bool
	skipped  bool
	errMsg   string
	skipMsg  string
	cleanups []func()
}

type failNow struct{}

type skipNow struct{}

func (r *recorder) Errorf(f string, a ...any) {
	r.failed = true

	// Keep the first failure; later ones are usually consequences of it.
	if r.errMsg == "" {
		r.errMsg = fmt.Sprintf(f, a...)
	}
}

func (r *recorder) FailNow() {
	r.failed = true

	panic(failNow{})
}

func (r *recorder) Skipf(f string, a ...any) {
	r.skipped = true
	r.skipMsg = fmt.Sprintf(f, a...)

	panic(skipNow{})
}

func (r *recorder) Context() context.Context {
	return r.ctx
}

func (r *recorder) Name() string {
	return r.name
}

func (r *recorder) TempDir() string {
	dir, err := os.MkdirTemp("", "russh-check-*")
	if err != nil {
		panic(err)
	}

	r.Cleanup(func() { _ = os.RemoveAll(dir) })

	return dir
}

func (r *recorder) Cleanup(fn func()) {
	r.cleanups = append(r.cleanups, fn)
}

func (r *recorder) cleanup() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}
