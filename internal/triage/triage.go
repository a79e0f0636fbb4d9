// Package triage provides the CEL-Go based flagging engine.
//
// Flags are advisory annotations for analysts, attached to scoring
// responses and alert reasons. They never change the risk level or the
// recommended action: the decision policy is fixed by the trained model
// contract.
package triage

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Rule is a named CEL expression over the canonical feature record and the
// scoring result. The expression must evaluate to a bool.
type Rule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

type compiledRule struct {
	rule    *Rule
	program cel.Program
}

// Engine evaluates triage flag rules.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules map[string]*compiledRule
}

// NewEngine creates a flag engine with the scoring pipeline variables
// declared.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("amount_to_balance_ratio", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("is_night_time", cel.BoolType),
		cel.Variable("is_weekend", cel.BoolType),
		cel.Variable("is_cross_border", cel.BoolType),
		cel.Variable("is_currency_mismatch", cel.BoolType),
		cel.Variable("hours_since_prev", cel.DoubleType),
		cel.Variable("login_attempts", cel.DoubleType),
		cel.Variable("pin_retry_count", cel.DoubleType),
		cel.Variable("pin_retry_limit", cel.DoubleType),
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("is_fraud", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:   env,
		rules: make(map[string]*compiledRule),
	}, nil
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}
	e.rules[rule.Name] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []*Rule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Evaluate returns the names of all rules matching the record/prediction
// pair. A rule that fails to evaluate is skipped; flags are advisory and
// must not fail a scoring call.
func (e *Engine) Evaluate(rec *domain.FeatureRecord, pred *domain.Prediction) []string {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"amount":                  rec.Amount,
		"balance":                 rec.Balance,
		"amount_to_balance_ratio": rec.AmountToBalanceRatio,
		"hour":                    int64(rec.Hour),
		"is_night_time":           rec.IsNightTime == 1,
		"is_weekend":              rec.IsWeekend == 1,
		"is_cross_border":         rec.IsCrossBorder == 1,
		"is_currency_mismatch":    rec.IsCurrencyMismatch == 1,
		"hours_since_prev":        rec.HoursSincePrev,
		"login_attempts":          rec.LoginAttempts,
		"pin_retry_count":         rec.PinRetryCount,
		"pin_retry_limit":         rec.PinRetryLimit,
		"probability":             pred.Probability,
		"is_fraud":                pred.IsFraud,
	}

	var flags []string
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			flags = append(flags, r.rule.Name)
		}
	}
	return flags
}

func (e *Engine) compile(rule *Rule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile flag rule %s: %w", rule.Name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("flag rule %s: expression must return bool, got %s", rule.Name, ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for flag rule %s: %w", rule.Name, err)
	}
	return &compiledRule{rule: rule, program: program}, nil
}
