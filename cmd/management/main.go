package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/niksmo/pmp-sync/config"
	"github.com/niksmo/pmp-sync/internal/app"
	"github.com/niksmo/pmp-sync/pkg/sigctx"
)

func main() {
	ctx, stop := sigctx.NotifyContext(context.Background())
	defer stop()

	cfg := config.Load()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Printf("failed to initialize management: %v\n", err)
		os.Exit(1)
	}

	lambda.StartWithOptions(a.HandleManagement, lambda.WithEnableSIGTERM(stop))
}
