/*
 * stencilc - pipeline build configuration
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package buildcfg reads the pipeline's build-wide configuration: which
// tiers to generate wrappers for, the target triple, the VM's stack-slot
// width and minimum return-slot count, and the inline-cache fragment
// budget. It is a thin gopkg.in/yaml.v3 document, not the hand-rolled
// line-oriented format internal/manifest reads for the per-bytecode input
// artifact.
package buildcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level build configuration document.
type Config struct {
	TargetTriple      string   `yaml:"target_triple"`
	Tiers             []string `yaml:"tiers"`
	SlotWidthBytes    int      `yaml:"slot_width_bytes"`
	ReturnSlotMinimum int      `yaml:"return_slot_minimum"`
	TierUpEnabled     bool     `yaml:"tier_up_enabled"`
	ICFragmentBudget  int      `yaml:"ic_fragment_budget"`
}

// defaults mirror the VM-mandated constants section 4.D names: a 4-slot
// frame header at 8-byte slots, and a minimum of 3 return slots.
func defaults() Config {
	return Config{
		TargetTriple:      "x86_64-unknown-linux-gnu",
		Tiers:             []string{"interpreter", "baseline", "optimizing"},
		SlotWidthBytes:    8,
		ReturnSlotMinimum: 3,
		TierUpEnabled:     true,
		ICFragmentBudget:  8,
	}
}

// Load reads and validates a YAML build configuration file at path. Fields
// absent from the document keep their documented default.
func Load(path string) (Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("buildcfg: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("buildcfg: parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects a configuration the rest of the pipeline cannot act on.
func (c Config) Validate() error {
	if c.SlotWidthBytes <= 0 {
		return fmt.Errorf("buildcfg: slot_width_bytes must be positive, got %d", c.SlotWidthBytes)
	}
	if c.ReturnSlotMinimum <= 0 {
		return fmt.Errorf("buildcfg: return_slot_minimum must be positive, got %d", c.ReturnSlotMinimum)
	}
	if c.TargetTriple != "x86_64-unknown-linux-gnu" {
		// Non-goal per section 1: only the 64-bit small-code-model
		// target is supported.
		return fmt.Errorf("buildcfg: unsupported target triple %q", c.TargetTriple)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("buildcfg: at least one tier must be enabled")
	}
	seen := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		switch t {
		case "interpreter", "baseline", "optimizing":
		default:
			return fmt.Errorf("buildcfg: unrecognized tier %q", t)
		}
		if seen[t] {
			return fmt.Errorf("buildcfg: tier %q listed more than once", t)
		}
		seen[t] = true
	}
	if c.ICFragmentBudget < 0 {
		return fmt.Errorf("buildcfg: ic_fragment_budget must not be negative, got %d", c.ICFragmentBudget)
	}
	return nil
}

// HasTier reports whether name is among the enabled tiers.
func (c Config) HasTier(name string) bool {
	for _, t := range c.Tiers {
		if t == name {
			return true
		}
	}
	return false
}
