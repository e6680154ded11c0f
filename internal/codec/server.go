// Package codec bridges the session controller to an out-of-process presenter
// over gRPC. Messages are google.protobuf.Struct values, so the service is
// described by hand instead of by generated stubs.
package codec

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/launch-predictor/internal/history"
	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
	"github.com/danielpatrickdp/launch-predictor/internal/predictor"
	"github.com/danielpatrickdp/launch-predictor/internal/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "launchpredict.Presenter"

// #region service
// PresenterService is the server-side contract of launchpredict.Presenter.
type PresenterService interface {
	SetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Choose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	State(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Tree(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PresenterService)(nil),
	Methods: []grpc.MethodDesc{
		unary("SetProfile", PresenterService.SetProfile),
		unary("Choose", PresenterService.Choose),
		unary("State", PresenterService.State),
		unary("Tree", PresenterService.Tree),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "launchpredict/presenter",
}

type unaryCall func(PresenterService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(PresenterService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// #endregion service

// #region server
// PresenterServer serves a session controller.
type PresenterServer struct {
	ctrl *session.Controller
	log  zerolog.Logger
}

// NewPresenterServer wraps ctrl. A nil logger discards output.
func NewPresenterServer(ctrl *session.Controller, logger *zerolog.Logger) *PresenterServer {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &PresenterServer{ctrl: ctrl, log: l.With().Str("component", "bridge").Logger()}
}

// Register attaches the service to g.
func (s *PresenterServer) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

func (s *PresenterServer) SetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	label := in.GetFields()["profile"].GetStringValue()
	profile, err := occurrence.ParseProfile(label)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if _, err := s.ctrl.SetProfile(ctx, profile); err != nil {
		return nil, toStatus(err)
	}
	s.log.Debug().Str("profile", profile.String()).Msg("profile set")
	return structpb.NewStruct(stateFields(s.snapshot()))
}

func (s *PresenterServer) Choose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	app := in.GetFields()["application"].GetStringValue()
	res, err := s.ctrl.Choose(ctx, app)

	view := ChooseView{
		Chosen:    res.Chosen,
		Predicted: predictionView(res.Predicted),
		Hit:       res.Hit(),
		Cursor:    res.Cursor,
		Unknown:   res.Unknown,
		Inserted:  res.Inserted,
		Persisted: res.Persisted,
	}
	switch {
	case err == nil:
	case errors.Is(err, occurrence.ErrStorageWrite):
		// the cycle completed; storage is behind
		view.Warning = err.Error()
		s.log.Warn().Err(err).Msg("choose persisted in memory only")
	default:
		return nil, toStatus(err)
	}
	view.State = s.snapshot()
	return structpb.NewStruct(chooseFields(view))
}

func (s *PresenterServer) State(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(stateFields(s.snapshot()))
}

func (s *PresenterServer) Tree(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	model := s.ctrl.Model()
	var (
		out string
		err error
	)
	switch format := in.GetFields()["format"].GetStringValue(); format {
	case "", "text":
		out = predictor.Render(model)
	case "dot":
		if out, err = predictor.RenderDOT(model); err != nil {
			return nil, status.Errorf(codes.Internal, "render dot: %v", err)
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown tree format %q", format)
	}
	return structpb.NewStruct(map[string]any{"tree": out})
}

func (s *PresenterServer) snapshot() StateView {
	st := s.ctrl.Status()
	return StateView{
		State:      st.State.String(),
		Profile:    st.Profile.String(),
		Prediction: predictionView(st.Prediction),
		History: HistoryView{
			Predicted: outcomes(st.History.Predicted),
			Actual:    outcomes(st.History.Actual),
			Cursor:    st.History.Cursor,
			Written:   st.History.Written,
		},
		HitRate: st.History.HitRate(),
	}
}

// #endregion server

// #region helpers
func predictionView(p predictor.Prediction) PredictionView {
	return PredictionView{Application: p.Application, Confidence: p.Confidence, OK: p.OK}
}

func outcomes(in []history.Outcome) []int {
	out := make([]int, len(in))
	for i, o := range in {
		out[i] = int(o)
	}
	return out
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, session.ErrNotPredicting):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, session.ErrEmptyApplication):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion helpers
