package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndsev/zswag-sub000/pkg/client"
	"github.com/ndsev/zswag-sub000/pkg/httpsettings"
	"github.com/ndsev/zswag-sub000/pkg/logger"
	"github.com/ndsev/zswag-sub000/pkg/oauth2cc"
	"github.com/ndsev/zswag-sub000/pkg/openapi"
	"github.com/ndsev/zswag-sub000/pkg/paramvalue"
	"github.com/ndsev/zswag-sub000/pkg/secrets"
	"github.com/ndsev/zswag-sub000/pkg/security"
	"github.com/ndsev/zswag-sub000/pkg/transport"
)

func newCallCmd() *cobra.Command {
	var specURL string
	var methodID string
	var params []string
	var serverIndex int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Invoke a single OpenAPI operation and print its response body",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, specURL, methodID, params, serverIndex, timeout)
		},
	}

	cmd.Flags().StringVar(&specURL, "spec", "", "URL of the OpenAPI document to load (required)")
	cmd.Flags().StringVar(&methodID, "method", "", "operationId of the method to invoke (required)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "name=value pair bound to a parameter, repeatable")
	cmd.Flags().IntVar(&serverIndex, "server-index", 0, "index into the spec's servers list")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	_ = cmd.MarkFlagRequired("spec")
	_ = cmd.MarkFlagRequired("method")

	return cmd
}

func runCall(cmd *cobra.Command, specURL, methodID string, params []string, serverIndex int, timeout time.Duration) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	values, err := parseParams(params)
	if err != nil {
		return err
	}

	httpClient := transport.NewHTTPClient(timeout)

	spec, err := openapi.Fetch(ctx, specURL, httpClient)
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	settings, err := httpsettings.Load()
	if err != nil {
		return fmt.Errorf("failed to load HTTP settings: %w", err)
	}

	tokens := oauth2cc.NewTokenSource(httpClient, settings, secrets.NewStore())
	registry := security.NewRegistry(tokens)

	c, err := client.New(spec, serverIndex, httpClient, settings, registry, httpsettings.HTTPConfig{})
	if err != nil {
		return fmt.Errorf("failed to construct client: %w", err)
	}

	resolver := func(ident, field string) (paramvalue.Value, error) {
		if field == openapi.RequestPartWhole {
			return paramvalue.Scalar(values["*"]), nil
		}
		return paramvalue.Scalar(values[ident]), nil
	}

	logger.Get().Debug("invoking method", "method", methodID, "spec", specURL)

	body, err := c.Call(ctx, methodID, resolver)
	if err != nil {
		return fmt.Errorf("call failed: %w", err)
	}

	cmd.Println(body)
	return nil
}

func parseParams(raw []string) (map[string]string, error) {
	values := make(map[string]string, len(raw))
	for _, pair := range raw {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --param %q, expected name=value", pair)
		}
		values[name] = value
	}
	return values, nil
}
