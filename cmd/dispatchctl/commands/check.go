package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/closeout"
	"github.com/spec-kit/dispatch-service/internal/policy"
)

func newPolicyCmd() *cobra.Command {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect authorization policy tables",
	}
	policyCmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate a policy file, or the embedded table when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := policy.LoadFile(firstArg(args))
			if err != nil {
				return err
			}
			if missing := table.Missing(); len(missing) > 0 {
				return fmt.Errorf("policy has no entry for: %s", strings.Join(missing, ", "))
			}
			for _, role := range table.Roles() {
				if !auth.IsKnownRole(role) {
					return fmt.Errorf("policy names unknown role %q", role)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy ok: %d endpoints, roles %s\n",
				len(table.Endpoints()), strings.Join(table.Roles(), ", "))
			return nil
		},
	})
	return policyCmd
}

func newTemplatesCmd() *cobra.Command {
	templatesCmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect incident closeout templates",
	}
	templatesCmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate a template file, or the embedded set when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := closeout.LoadRegistry(firstArg(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, tpl := range registry.Templates {
				if len(tpl.RequiredEvidenceKeys) == 0 {
					return fmt.Errorf("template %s requires no evidence", tpl.IncidentType)
				}
				fmt.Fprintf(out, "%s v%s: %d evidence keys, %d checklist keys\n",
					tpl.IncidentType, tpl.TemplateVersion, len(tpl.RequiredEvidenceKeys), len(tpl.RequiredChecklistKeys))
			}
			fmt.Fprintf(out, "templates ok: %d incident types\n", len(registry.Templates))
			return nil
		},
	})
	return templatesCmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
