package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aivexl/tamuu-sub000/internal/doc"
	"github.com/aivexl/tamuu-sub000/internal/schema"
)

// NewValidateCommand creates the validate command. It checks an exported
// document JSON file against the payload schema without touching a store.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "validate <document.json>",
		Short:        "Validate a document export against the schema",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var d doc.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	validator, err := schema.Default()
	if err != nil {
		return err
	}

	var problems []string
	if err := validator.ValidateStatus(d.Status); err != nil {
		problems = append(problems, err.Error())
	}
	for key, section := range d.Sections {
		if err := validator.ValidateSectionKey(key); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		for _, el := range section.Elements {
			if err := validator.ValidateElement(el.Kind, el.Payload); err != nil {
				problems = append(problems, fmt.Sprintf("element %s: %v", el.ID, err))
			}
		}
	}

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(cmd.ErrOrStderr(), p)
		}
		return fmt.Errorf("%d validation problem(s)", len(problems))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}
