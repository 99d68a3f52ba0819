package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildSchema(t *testing.T) {
	root := &cobra.Command{Use: "moltrades"}
	child := &cobra.Command{Use: "solana", Short: "solana source leg"}
	leaf := &cobra.Command{
		Use:         "run",
		Short:       "sign and submit",
		Annotations: map[string]string{AnnotationSigning: "true"},
		Run:         func(*cobra.Command, []string) {},
	}
	leaf.Flags().String("to-chain", "", "destination chain")
	leaf.Flags().Bool("yes", false, "confirm")
	_ = leaf.MarkFlagRequired("to-chain")
	child.AddCommand(leaf)
	root.AddCommand(child)

	s, err := Build(root, "solana run")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "moltrades solana run" || !s.Signing {
		t.Fatalf("unexpected schema: %+v", s)
	}
	if len(s.Flags) != 2 || s.Flags[0].Name != "to-chain" || !s.Flags[0].Required || s.Flags[1].Required {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}

	if _, err := Build(root, "solana swap"); err == nil {
		t.Fatal("expected error for unknown command path")
	}
}
