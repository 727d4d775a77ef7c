package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fuzzidx/internal/output"
)

func newForgetCmd() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "forget OwnerType OWNER_ID",
		Short: "Remove an owner from the index",
		Long: `Remove the trigram rows of an owner, for one field or every configured
field of its type. Run it when the owner is deleted.`,
		Example: `  fuzzidx forget User 42
  fuzzidx forget User 42 --field email`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(cmd, args[0], args[1], field)
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Only forget this field")

	return cmd
}

func runForget(cmd *cobra.Command, ownerType, ownerID, field string) error {
	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openProject(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	var rows int
	if field == "" {
		rows, err = p.reg.Forget(cmd.Context(), ownerType, ownerID)
	} else {
		f, ferr := p.reg.Field(ownerType, field)
		if ferr != nil {
			return ferr
		}
		rows, err = f.Forget(cmd.Context(), ownerID)
	}
	if err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Successf("Forgot %s %s: %d rows removed", ownerType, ownerID, rows)
	return nil
}
