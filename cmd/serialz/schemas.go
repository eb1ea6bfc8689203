package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zoobzio/serialz"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Validate the configuration and list loaded schemas",
	Long: `Load the configuration and schema directory exactly as "serve" does,
reporting any configuration error, then print each schema and its fields.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		o, err := serialz.FromConfig(cfg)
		if err != nil {
			return err
		}
		defer o.Close()

		out := cmd.OutOrStdout()
		registry := o.Formatter().Registry()
		if registry == nil {
			fmt.Fprintf(out, "%s: plain variant, no schemas\n", o.Name())
			return nil
		}

		fmt.Fprintf(out, "%s: %d schemas from %s\n", o.Name(), registry.Len(), cfg.Schemas)
		for _, name := range registry.Names() {
			schema, _ := registry.Lookup(name)
			fmt.Fprintf(out, "\n  %s\n", name)

			fields := make([]string, 0, len(schema.Fields))
			for field := range schema.Fields {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				f := schema.Fields[field]
				fmt.Fprintf(out, "    %-16s %-8s%s\n", field, typeOf(f), describe(f))
			}
		}
		return nil
	},
}

func typeOf(f serialz.Field) string {
	if f.Type == "" {
		return string(serialz.TypeAny)
	}
	return string(f.Type)
}

func describe(f serialz.Field) string {
	var s string
	if f.Required {
		s += " required"
	}
	if f.Default != nil {
		s += fmt.Sprintf(" default=%v", f.Default)
	}
	if f.Validate != "" {
		s += " validate=" + f.Validate
	}
	return s
}
