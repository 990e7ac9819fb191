package main

import (
	"fmt"

	"github.com/deskmate-ai/deskmate"
)

// VersionCmd prints the release version.
type VersionCmd struct{}

// Execute implements flags.Commander.
func (v *VersionCmd) Execute(args []string) error {
	fmt.Println(deskmate.Version)

	return nil
}
