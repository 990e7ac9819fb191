package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deskmate-ai/deskmate/remote"
)

// QueryCmd sends one query to a served Deskmate and prints the response.
type QueryCmd struct {
	URL string `short:"u" long:"url" description:"base URL of a served Deskmate" default:"http://localhost:8080"`

	Args struct {
		Text []string `positional-arg-name:"text" required:"1" description:"query text"`
	} `positional-args:"yes"`
}

// Execute implements flags.Commander.
func (q *QueryCmd) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := remote.NewClient(q.URL)

	response, err := client.Query(ctx, strings.Join(q.Args.Text, " "))
	if err != nil {
		return err
	}

	fmt.Println(response)

	return nil
}
