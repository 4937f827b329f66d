package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/watchzerg/magnet-picker-sub000/internal/engine"
	"github.com/watchzerg/magnet-picker-sub000/internal/rulefile"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules.yml>",
		Short: "Check every rule of a rules file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(afero.NewOsFs(), cmd.OutOrStdout(), args[0])
		},
	}
}

func runValidate(fs afero.Fs, w io.Writer, path string) error {
	set, err := rulefile.Load(fs, path)
	if err != nil {
		return err
	}

	invalid := 0
	for _, rule := range set.Rules {
		res := engine.Validate(rule, set.Rules)
		ov := engine.Overview(rule)

		state := "on"
		if !rule.Enabled {
			state = "off"
		}

		fmt.Fprintf(w, "%3d %-4s %-36s %-6s %s\n", rule.Order, state, rule.ID, ov.DeltaText, ov.Condition)
		if !res.IsValid {
			invalid++
			fmt.Fprintf(w, "    invalid: %s\n", res.Message)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules are invalid", invalid, len(set.Rules))
	}

	return nil
}
