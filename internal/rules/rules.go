// Package rules implements the account-classification rule engine. Rule files
// are compiled once, ahead of time, into match/set nodes with precompiled
// expressions; applying them to a transaction projection is stateless and safe
// for concurrent readers.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Projection is the read-only view of a transaction the rules run against.
// Rules may rewrite the destination account, payee, or narration; everything
// else is carried through untouched.
type Projection struct {
	SourceAccount string
	DestAccount   string
	Amount        decimal.Decimal
	Currency      string
	Payee         string
	Narration     string
	Pending       bool
	Date          time.Time
}

// NewProjection builds the rule input from a canonical transaction. The
// funding leg is the first posting, the synthesized offset the second.
func NewProjection(txn domain.Transaction) Projection {
	p := Projection{
		DestAccount: domain.UnclassifiedAccount,
		Payee:       txn.Payee,
		Narration:   txn.Narration,
		Pending:     txn.Status == domain.Pending,
		Date:        txn.Date,
	}
	if len(txn.Postings) >= 2 {
		p.SourceAccount = txn.Postings[0].Account
		p.DestAccount = txn.Postings[1].Account
		p.Amount = txn.Postings[1].Amount
		p.Currency = txn.Postings[1].Currency
	}
	return p
}

// ruleFile is the YAML document shape of one rule file.
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Match matchSpec `yaml:"match"`
	Set   setSpec   `yaml:"set"`
}

type matchSpec struct {
	Payee     string `yaml:"payee"`
	Narration string `yaml:"narration"`
	Account   string `yaml:"account"`
	Pending   *bool  `yaml:"pending"`
}

type setSpec struct {
	Account   string `yaml:"account"`
	Payee     string `yaml:"payee"`
	Narration string `yaml:"narration"`
}

// compiledRule is one match/set node with its expressions compiled.
type compiledRule struct {
	payee     *regexp.Regexp
	narration *regexp.Regexp
	account   string
	pending   *bool

	setAccount   string
	setPayee     string
	setNarration string

	origin string
}

// Engine evaluates an ordered list of compiled rules. A nil or empty engine is
// the identity transform.
type Engine struct {
	rules []compiledRule
}

// Load reads and compiles the given rule files in order. A load failure names
// the offending file and rule.
func Load(paths []string) (*Engine, error) {
	engine := &Engine{}
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", path, err)
		}

		var file ruleFile
		if err := yaml.Unmarshal(content, &file); err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", path, err)
		}

		for i, spec := range file.Rules {
			compiled, err := compile(spec, fmt.Sprintf("%s rule %d", path, i+1))
			if err != nil {
				return nil, err
			}
			engine.rules = append(engine.rules, compiled)
		}
	}
	return engine, nil
}

func compile(spec ruleSpec, origin string) (compiledRule, error) {
	rule := compiledRule{
		account:      spec.Match.Account,
		pending:      spec.Match.Pending,
		setAccount:   spec.Set.Account,
		setPayee:     spec.Set.Payee,
		setNarration: spec.Set.Narration,
		origin:       origin,
	}

	if spec.Set.Account == "" && spec.Set.Payee == "" && spec.Set.Narration == "" {
		return compiledRule{}, fmt.Errorf("%s: rule sets nothing", origin)
	}

	var err error
	if spec.Match.Payee != "" {
		if rule.payee, err = regexp.Compile(spec.Match.Payee); err != nil {
			return compiledRule{}, fmt.Errorf("%s: invalid payee pattern: %w", origin, err)
		}
	}
	if spec.Match.Narration != "" {
		if rule.narration, err = regexp.Compile(spec.Match.Narration); err != nil {
			return compiledRule{}, fmt.Errorf("%s: invalid narration pattern: %w", origin, err)
		}
	}
	return rule, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Apply runs every rule in order against the projection and returns the
// rewritten result. Later rules observe earlier rewrites. Any evaluation
// failure aborts the whole application; a partially rewritten record must not
// be rendered.
func (e *Engine) Apply(p Projection) (Projection, error) {
	if e == nil {
		return p, nil
	}
	for _, rule := range e.rules {
		rewritten, err := rule.apply(p)
		if err != nil {
			return Projection{}, err
		}
		p = rewritten
	}
	return p, nil
}

func (r compiledRule) apply(p Projection) (Projection, error) {
	if r.account != "" && r.account != p.SourceAccount && r.account != p.DestAccount {
		return p, nil
	}
	if r.pending != nil && *r.pending != p.Pending {
		return p, nil
	}
	if r.payee != nil && !r.payee.MatchString(p.Payee) {
		return p, nil
	}

	// The narration pattern's submatches are available to the set fields via
	// $1-style references.
	var narrationMatch []int
	if r.narration != nil {
		narrationMatch = r.narration.FindStringSubmatchIndex(p.Narration)
		if narrationMatch == nil {
			return p, nil
		}
	}

	expand := func(template string) (string, error) {
		if template == "" || r.narration == nil || narrationMatch == nil {
			return template, nil
		}
		expanded := string(r.narration.ExpandString(nil, template, p.Narration, narrationMatch))
		if expanded == "" {
			return "", fmt.Errorf("%s: expansion of %q produced an empty value", r.origin, template)
		}
		return expanded, nil
	}

	var err error
	if r.setAccount != "" {
		if p.DestAccount, err = expand(r.setAccount); err != nil {
			return Projection{}, err
		}
	}
	if r.setPayee != "" {
		if p.Payee, err = expand(r.setPayee); err != nil {
			return Projection{}, err
		}
	}
	if r.setNarration != "" {
		if p.Narration, err = expand(r.setNarration); err != nil {
			return Projection{}, err
		}
	}
	return p, nil
}
