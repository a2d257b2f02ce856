// Package target implements the rule-group grammar and the freshness check
// behind it: outputs and inputs are parsed from the positional arguments,
// their modification times are collected (recursing into directories), and
// each group is decided stale or up to date.
package target
