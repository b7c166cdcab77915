package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mastermechanic/mmserver/client"
	"github.com/mastermechanic/mmserver/models"
)

type ContextCommand struct {
	ServerURL string `help:"The URL of the MasterMechanic server." env:"MM_SERVER_URL" default:"http://localhost:9020"`
	Text      string `help:"The text to send." required:""`
	Namespace string `help:"The index namespace to search, defaults to the server's namespace." default:""`
	Pretty    bool   `help:"Pretty print the JSON output." default:"true"`
	Rendered  bool   `help:"Print the rendered context instead of JSON." default:"false"`
}

func (c ContextCommand) Run(ctx context.Context) (err error) {
	mmc := client.New(c.ServerURL).WithSource("cli")
	resp, err := mmc.ContextPost(ctx, models.ContextPostRequest{
		Text:      c.Text,
		Namespace: c.Namespace,
	})
	if err != nil {
		return fmt.Errorf("failed to get context: %w", err)
	}
	if c.Rendered {
		_, err = fmt.Fprint(os.Stdout, resp.Context)
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if c.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}
