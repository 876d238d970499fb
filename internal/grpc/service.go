package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mr1hm/pest-forecast/internal/models"
)

const serviceName = "pestcast.v1.ForecastService"

type RecordObservationRequest struct {
	Observation models.Observation `json:"observation"`
	Source      string             `json:"source,omitempty"`
}

// StreamRiskAlertsRequest filters the alert stream. Empty fields match
// everything.
type StreamRiskAlertsRequest struct {
	MinCategory models.RiskCategory `json:"min_category,omitempty"`
	PestType    string              `json:"pest_type,omitempty"`
}

type ForecastServiceServer interface {
	GenerateForecast(context.Context, *models.ForecastRequest) (*models.ForecastResult, error)
	RecordObservation(context.Context, *RecordObservationRequest) (*models.Observation, error)
	StreamRiskAlerts(*StreamRiskAlertsRequest, grpc.ServerStream) error
}

var forecastServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ForecastServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateForecast", Handler: generateForecastHandler},
		{MethodName: "RecordObservation", Handler: recordObservationHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamRiskAlerts", Handler: streamRiskAlertsHandler, ServerStreams: true},
	},
}

func generateForecastHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.ForecastRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastServiceServer).GenerateForecast(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/GenerateForecast",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastServiceServer).GenerateForecast(ctx, req.(*models.ForecastRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func recordObservationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RecordObservationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastServiceServer).RecordObservation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/RecordObservation",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastServiceServer).RecordObservation(ctx, req.(*RecordObservationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamRiskAlertsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamRiskAlertsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ForecastServiceServer).StreamRiskAlerts(in, stream)
}
