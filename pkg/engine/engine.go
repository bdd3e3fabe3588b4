// Package engine evaluates scene scripts. It wraps zygomys in a sandboxed
// environment and produces a validated DesignGraph from user source code.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/brepmesh/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError is a non-fatal problem in user code: a parse error, a runtime
// error, or a validation error in the resulting graph.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is an advisory finding about the resulting graph.
type EvalWarning struct {
	Message string
	NodeID  graph.NodeID
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Graph    *graph.DesignGraph
	Errors   []EvalError
	Warnings []EvalWarning
}

// sandboxMu serializes sandbox construction. zygomys sets up its infix
// operator tables in shared state while building an environment, so two
// environments must not be created at once, even by different Engines.
var sandboxMu sync.Mutex

// Engine evaluates scripts. It is safe for concurrent use; each evaluation
// gets a fresh sandbox, and only the most recent one may return a graph.
// Sandboxes are built one at a time, then run in parallel.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate takes script source and produces a new DesignGraph.
//
// Return semantics:
//   - On success: graph, nil errors, nil error
//   - On parse, eval or validation failure: nil graph, eval errors, nil error
//   - On fatal failure (timeout, panic, superseded): nil, nil, error
func (e *Engine) Evaluate(source string) (*graph.DesignGraph, []EvalError, error) {
	res, err := e.Run(context.Background(), source)
	if err != nil {
		return nil, nil, err
	}
	return res.Graph, res.Errors, nil
}

// Run is Evaluate with cancellation and validation warnings.
func (e *Engine) Run(ctx context.Context, source string) (EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		ch <- e.evaluate(source)
	}()

	return waitWithTimeout(ctx, ch, gen, &e.mu, &e.generation)
}

// evaluate runs source in a fresh sandbox and validates the result.
func (e *Engine) evaluate(source string) evalResult {
	if strings.TrimSpace(source) == "" {
		return evalResult{res: EvalResult{Graph: graph.New()}}
	}

	// The sandbox keeps scripts away from the filesystem and syscalls.
	sandboxMu.Lock()
	env := zygo.NewZlispSandbox()
	b := newBuilder()
	registerBuiltins(env, b)
	sandboxMu.Unlock()
	defer env.Stop()

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return evalResult{res: EvalResult{Errors: parseZygomysError(err)}}
	}
	if _, err := env.Run(); err != nil {
		return evalResult{res: EvalResult{Errors: parseZygomysError(err)}}
	}

	return evalResult{res: check(b.finish())}
}

// check validates g. Warnings never withhold the graph; any error does.
func check(g *graph.DesignGraph) EvalResult {
	var res EvalResult
	for _, v := range graph.Validate(g) {
		if v.Severity == graph.SeverityWarning {
			res.Warnings = append(res.Warnings, EvalWarning{Message: v.Message, NodeID: v.NodeID})
			continue
		}
		res.Errors = append(res.Errors, EvalError{Message: v.Error()})
	}
	if len(res.Errors) == 0 {
		res.Graph = g
	}
	return res
}

// linePattern matches zygomys messages like "Error on line N: ...".
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches "line N: ...".
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
