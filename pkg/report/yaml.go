package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func renderYAML(w io.Writer, sum Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	return nil
}
