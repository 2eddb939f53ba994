package dep

import (
	"strings"

	"src.kati.dev/pkg/eval"
)

// ruleTrie indexes pattern rules by the non-% prefix of their output
// pattern, so that matching a target walks at most len(target) nodes.
type ruleTrie struct {
	entries  []ruleTrieEntry
	children map[byte]*ruleTrie
}

// ruleTrieEntry holds a rule at the trie node where its prefix ends; suffix
// keeps the rest of the pattern, '%' included.
type ruleTrieEntry struct {
	rule   *eval.Rule
	suffix string
}

func newRuleTrie() *ruleTrie {
	return &ruleTrie{children: make(map[byte]*ruleTrie)}
}

func (rt *ruleTrie) Add(pat string, rule *eval.Rule) {
	if pat == "" || pat[0] == '%' {
		rt.entries = append(rt.entries, ruleTrieEntry{rule, pat})
		return
	}
	child, ok := rt.children[pat[0]]
	if !ok {
		child = newRuleTrie()
		rt.children[pat[0]] = child
	}
	child.Add(pat[1:], rule)
}

// Get collects the rules whose pattern matches name, in trie-encounter
// order: shortest prefix first, insertion order within a node.
func (rt *ruleTrie) Get(name string, rules *[]*eval.Rule) {
	for _, ent := range rt.entries {
		if ent.suffix == "%" || strings.HasSuffix(name, ent.suffix[1:]) {
			*rules = append(*rules, ent.rule)
		}
	}
	if name == "" {
		return
	}
	if child, ok := rt.children[name[0]]; ok {
		child.Get(name[1:], rules)
	}
}

func (rt *ruleTrie) size() int {
	n := len(rt.entries)
	for _, child := range rt.children {
		n += child.size()
	}
	return n
}
