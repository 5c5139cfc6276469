package openapi

import (
	"context"
	"fmt"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/transport"
	"github.com/ndsev/zswag-sub000/pkg/uri"
)

// Fetch retrieves and parses an OpenAPI document from specURL. Any server
// entry in the document given as a bare path (no scheme/host) is completed
// with specURL's scheme and host, matching the behavior of an OpenAPI
// document hosted next to the service it describes.
func Fetch(ctx context.Context, specURL string, client transport.Client) (*Spec, error) {
	reqComponents, err := uri.ParseRfc3986(specURL)
	if err != nil {
		return nil, err
	}

	built, err := reqComponents.Build()
	if err != nil {
		return nil, err
	}

	res, err := client.Do(ctx, transport.Request{Method: "GET", URL: built})
	if err != nil {
		return nil, zerrors.NewTransportError("failed to fetch OpenAPI document from "+specURL, err)
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, zerrors.NewHTTPError(
			fmt.Sprintf("fetching OpenAPI document from %s returned status %d", specURL, res.Status), nil)
	}

	spec, err := ParseYAML(res.Content)
	if err != nil {
		return nil, err
	}

	for i := range spec.Servers {
		if spec.Servers[i].Scheme == "" {
			spec.Servers[i].Scheme = reqComponents.Scheme
		}
		if spec.Servers[i].Host == "" {
			spec.Servers[i].Host = reqComponents.Host
			spec.Servers[i].Port = reqComponents.Port
		}
	}

	if len(spec.Servers) == 0 {
		spec.Servers = append(spec.Servers, uri.Components{
			Scheme: reqComponents.Scheme,
			Host:   reqComponents.Host,
			Port:   reqComponents.Port,
		})
	}

	return spec, nil
}
