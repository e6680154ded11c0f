package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// #region client-struct
// PresenterClient calls a remote launchpredict.Presenter.
type PresenterClient struct {
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// #endregion client-struct

// #region constructor
// NewPresenterClient connects to the bridge at addr.
func NewPresenterClient(addr string, opts ...grpc.DialOption) (*PresenterClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &PresenterClient{conn: conn, own: conn}, nil
}

// NewPresenterClientWithConn uses an existing connection, which the caller closes.
func NewPresenterClientWithConn(conn grpc.ClientConnInterface) *PresenterClient {
	return &PresenterClient{conn: conn}
}

// #endregion constructor

// #region close
// Close shuts down a connection opened by NewPresenterClient.
func (c *PresenterClient) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

// #endregion close

// #region calls
func (c *PresenterClient) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, fromStatus(method, err)
	}
	return out, nil
}

// SetProfile switches the remote session's profile.
func (c *PresenterClient) SetProfile(ctx context.Context, profile occurrence.Profile) (StateView, error) {
	out, err := c.invoke(ctx, "SetProfile", map[string]any{"profile": profile.String()})
	if err != nil {
		return StateView{}, err
	}
	return decodeState(out), nil
}

// Choose reports the application the user launched.
func (c *PresenterClient) Choose(ctx context.Context, application string) (ChooseView, error) {
	out, err := c.invoke(ctx, "Choose", map[string]any{"application": application})
	if err != nil {
		return ChooseView{}, err
	}
	return decodeChoose(out), nil
}

// State fetches the current prediction and history.
func (c *PresenterClient) State(ctx context.Context) (StateView, error) {
	out, err := c.invoke(ctx, "State", map[string]any{})
	if err != nil {
		return StateView{}, err
	}
	return decodeState(out), nil
}

// Tree fetches the fitted tree as text, or as Graphviz DOT when dot is set.
func (c *PresenterClient) Tree(ctx context.Context, dot bool) (string, error) {
	format := "text"
	if dot {
		format = "dot"
	}
	out, err := c.invoke(ctx, "Tree", map[string]any{"format": format})
	if err != nil {
		return "", err
	}
	return out.GetFields()["tree"].GetStringValue(), nil
}

// #endregion calls

// #region errors
// fromStatus restores the session sentinel for a FailedPrecondition reply.
func fromStatus(method string, err error) error {
	if st, ok := status.FromError(err); ok && st.Code() == codes.FailedPrecondition {
		return fmt.Errorf("%s rpc: %w: %s", method, session.ErrNotPredicting, st.Message())
	}
	return fmt.Errorf("%s rpc: %w", method, err)
}

// #endregion errors
