package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/MrEthical07/donorhub/internal/config"
	"github.com/MrEthical07/donorhub/internal/server"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// main serves the same echo application behind API Gateway. Settings come
// from environment variables and the optional config file only.
func main() {
	cmd := &cli.Command{
		Name:  "donorhub-lambda",
		Flags: config.Flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, _, err := server.Setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Echo.IPExtractor = sourceIP
			adapter := echoadapter.New(app.Echo)
			lambda.Start(adapter.ProxyWithContext)
			return nil
		},
	}

	if err := cmd.Run(context.Background(), []string{"donorhub-lambda"}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// sourceIP takes the caller address API Gateway observed. Headers are
// client controlled and never consulted.
func sourceIP(req *http.Request) string {
	if rc, ok := core.GetAPIGatewayContextFromContext(req.Context()); ok && rc.Identity.SourceIP != "" {
		return rc.Identity.SourceIP
	}
	return echo.ExtractIPDirect()(req)
}
