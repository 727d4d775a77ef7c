package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/output"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update OwnerType.field OWNER_ID [text...]",
		Short: "Reindex one owner field",
		Long: `Replace the trigram rows of one owner field with rows built from text.
An empty text removes the owner from results for that field.`,
		Example: `  fuzzidx update User.name 42 "Zoë Saldaña"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, args[0], args[1], strings.Join(args[2:], " "))
		},
	}
}

func runUpdate(cmd *cobra.Command, key, ownerID, text string) error {
	ownerType, fieldName, ok := strings.Cut(key, ".")
	if !ok {
		return fzerrors.ValidationError("field must be written as OwnerType.field", nil).
			WithDetail("field", key)
	}

	root, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openProject(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	f, err := p.reg.Field(ownerType, fieldName)
	if err != nil {
		return err
	}
	rows, err := f.Update(cmd.Context(), ownerID, text)
	if err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Successf("%s %s: %d rows", f, ownerID, rows)
	return nil
}
