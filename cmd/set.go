// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"dspctl/internal/dsp"
	"dspctl/internal/normalize"
	"dspctl/internal/settings"

	"github.com/spf13/cobra"
)

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <namespace> <key> <value>",
		Short: "Write one preference",
		Long: "Write one preference to the preference file. Editing strength_percent or\n" +
			"strength_db of spectrum_extension or clarity recomputes the other unit.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := dsp.ParseNamespace(args[0])
			if err != nil {
				return err
			}
			store, err := settings.OpenFile(opts.cfg.Settings.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			values, err := preferenceUpdate(store.Select(ns), ns, args[1], args[2])
			if err != nil {
				return err
			}
			if err := store.Put(ns, values); err != nil {
				return err
			}
			for k, v := range values {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s = %v\n", ns, k, v)
			}
			return nil
		},
	}
}

// strengthRanges lists the namespaces with a percent/dB strength pair.
var strengthRanges = map[dsp.Namespace]normalize.StrengthRange{
	dsp.SpectrumExtension: normalize.SpectrumExtensionStrength,
	dsp.Clarity:           normalize.ClarityStrength,
}

// preferenceUpdate turns one edited key into the values to store.
func preferenceUpdate(cur settings.Section, ns dsp.Namespace, key, raw string) (map[string]any, error) {
	value := parseValue(raw)
	r, ok := strengthRanges[ns]
	if !ok || (key != settings.KeyStrengthPercent && key != settings.KeyStrengthDb) {
		return map[string]any{key: value}, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %q is not a number", ns, key, raw)
	}
	percent := cur.Float(settings.KeyStrengthPercent, 100)
	db := cur.Float(settings.KeyStrengthDb, 0)
	unit := settings.UnitPercent
	if key == settings.KeyStrengthDb {
		unit, db = settings.UnitDb, v
	} else {
		percent = v
	}
	percent, db = r.Reconcile(unit, percent, db)
	return map[string]any{
		settings.KeyStrengthUnit:    unit,
		settings.KeyStrengthPercent: percent,
		settings.KeyStrengthDb:      db,
	}, nil
}

// parseValue stores booleans and numbers typed; delimited lists and other
// text stay strings.
func parseValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
