// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package flagutil provides the repeatable flag types shared by the
// cbi subcommands.
package flagutil

import "fmt"

// MultiFlag collects every occurrence of a repeatable string flag.
type MultiFlag []string

// String implements flag.Value.
func (m *MultiFlag) String() string { return fmt.Sprintf("%v", []string(*m)) }

// Set implements flag.Value.
func (m *MultiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// ChoiceFlag collects occurrences of a repeatable flag restricted to a
// fixed set of values.
type ChoiceFlag struct {
	Choices []string
	Values  []string
}

// String implements flag.Value.
func (c *ChoiceFlag) String() string { return fmt.Sprintf("%v", c.Values) }

// Set implements flag.Value.
func (c *ChoiceFlag) Set(v string) error {
	for _, choice := range c.Choices {
		if v == choice {
			c.Values = append(c.Values, v)
			return nil
		}
	}
	return fmt.Errorf("invalid choice %q (allowed: %v)", v, c.Choices)
}

// CountFlag counts boolean flag repetitions, for -v -v style
// verbosity.
type CountFlag int

// String implements flag.Value.
func (c *CountFlag) String() string { return fmt.Sprintf("%d", int(*c)) }

// Set implements flag.Value.
func (c *CountFlag) Set(string) error {
	*c++
	return nil
}

// IsBoolFlag marks the flag as valueless.
func (c *CountFlag) IsBoolFlag() bool { return true }
