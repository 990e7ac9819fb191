// Command deskmate runs the ServiceNow service-desk assistant: an
// interactive terminal chat, a web chat server and a one-shot remote query
// client.
package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

// Options is the root command grouping the sub-commands. The struct tags
// are interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Chat    ChatCmd    `command:"chat" description:"Chat with the assistant in the terminal"`
	Serve   ServeCmd   `command:"serve" description:"Start the web chat server"`
	Query   QueryCmd   `command:"query" description:"Send one query to a served Deskmate"`
	Version VersionCmd `command:"version" description:"Print the version"`
}

// configFlag is embedded by the commands that boot the full runtime.
type configFlag struct {
	Config string `short:"f" long:"config" description:"config file path (YAML); defaults to $DESKMATE_CONFIG"`
}

func main() {
	parser := flags.NewParser(&Options{}, flags.Default)

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}
}
