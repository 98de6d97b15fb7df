package main

import (
	"context"
	"fmt"

	"github.com/a-h/penaltysearch"
)

type VersionCommand struct {
}

func (c VersionCommand) Run(ctx context.Context) (err error) {
	fmt.Println(penaltysearch.Version)
	return nil
}
