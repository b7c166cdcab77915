package main

import (
	"context"
	"fmt"

	"github.com/mastermechanic/mmserver"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(mmserver.Version)
	return nil
}
