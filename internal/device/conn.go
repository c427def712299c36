package device

import (
	"context"
	"crypto/tls"

	"github.com/go-routeros/routeros/v3"

	"hotspotctl/internal/model"
)

// Conn is the RPC transport to one router. It is injectable for unit tests;
// production sessions use DialRouterOS.
type Conn interface {
	Run(ctx context.Context, sentence ...string) (*routeros.Reply, error)
	Close() error
}

// Dialer opens a Conn for an endpoint.
type Dialer func(ctx context.Context, ep model.Endpoint) (Conn, error)

type routerConn struct {
	cl *routeros.Client
}

func (c *routerConn) Run(ctx context.Context, sentence ...string) (*routeros.Reply, error) {
	return c.cl.RunContext(ctx, sentence...)
}

func (c *routerConn) Close() error {
	c.cl.Close()
	return nil
}

// DialRouterOS opens a RouterOS API connection to the endpoint.
func DialRouterOS(ctx context.Context, ep model.Endpoint) (Conn, error) {
	if ep.UseTLS {
		// Router API certs are almost always self-signed.
		cl, err := routeros.DialTLSContext(ctx, ep.Addr(), ep.Username, ep.Password, &tls.Config{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return nil, err
		}
		return &routerConn{cl: cl}, nil
	}

	cl, err := routeros.DialContext(ctx, ep.Addr(), ep.Username, ep.Password)
	if err != nil {
		return nil, err
	}
	return &routerConn{cl: cl}, nil
}
