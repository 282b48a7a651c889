// Package policy evaluates the severity display rules. A rule is a boolean
// expression over step fields; the first matching rule decides how a step
// is emphasized in the UI. Rules only affect rendering, never execution or
// gating.
package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/remex/pkg/config"
	"github.com/ormasoftchile/remex/pkg/model"
)

// Emphasis is a rendering weight for a step row.
type Emphasis string

const (
	EmphasisNormal Emphasis = "normal"
	EmphasisNotice Emphasis = "notice"
	EmphasisDanger Emphasis = "danger"
)

type compiledRule struct {
	program  *vm.Program
	emphasis Emphasis
	source   string
}

// Policy is a compiled, ordered rule set.
type Policy struct {
	rules []compiledRule
}

// stepEnv is the expression environment: one entry per step field a rule
// may reference.
func stepEnv(st model.Step) map[string]any {
	return map[string]any{
		"severity":         st.Severity,
		"type":             string(st.Type),
		"requiresApproval": st.RequiresApproval,
		"completed":        st.Completed,
		"failed":           st.Completed && st.Success.False(),
		"running":          st.Running(),
	}
}

// Compile builds a Policy from config rules. Every expression must compile
// to a boolean against the step environment.
func Compile(rules []config.DisplayRule) (*Policy, error) {
	p := &Policy{}
	env := stepEnv(model.Step{})
	for i, r := range rules {
		program, err := expr.Compile(r.When, expr.Env(env), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile display rule %d %q: %w", i, r.When, err)
		}
		p.rules = append(p.rules, compiledRule{
			program:  program,
			emphasis: Emphasis(r.Emphasis),
			source:   r.When,
		})
	}
	return p, nil
}

// Evaluate returns the emphasis of the first matching rule, or normal.
// A rule that fails at runtime is skipped rather than failing the render.
func (p *Policy) Evaluate(st model.Step) Emphasis {
	env := stepEnv(st)
	for _, r := range p.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return r.emphasis
		}
	}
	return EmphasisNormal
}
