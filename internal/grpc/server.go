// Package grpc serves the forecast engine over gRPC with a JSON codec and
// streams risk alerts to subscribers.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/pest-forecast/internal/forecast"
	"github.com/mr1hm/pest-forecast/internal/models"
)

// Engine is the part of forecast.Engine the service exposes.
type Engine interface {
	GenerateForecast(ctx context.Context, req models.ForecastRequest) *models.ForecastResult
	RecordObservation(ctx context.Context, o models.Observation, source string) (models.Observation, error)
}

type Server struct {
	engine      Engine
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(engine Engine, broadcaster *Broadcaster) *Server {
	s := &Server{
		engine:      engine,
		broadcaster: broadcaster,
	}
	s.grpcServer = grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	s.grpcServer.RegisterService(&forecastServiceDesc, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// GenerateForecast returns failures in the result body; only a missing
// request is a transport error.
func (s *Server) GenerateForecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return s.engine.GenerateForecast(ctx, *req), nil
}

func (s *Server) RecordObservation(ctx context.Context, req *RecordObservationRequest) (*models.Observation, error) {
	source := req.Source
	if source == "" {
		source = "grpc"
	}

	o, err := s.engine.RecordObservation(ctx, req.Observation, source)
	if err != nil {
		if forecast.KindOf(err) == forecast.KindInput {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "failed to record observation: %v", err)
	}
	return &o, nil
}

func (s *Server) StreamRiskAlerts(req *StreamRiskAlertsRequest, stream grpc.ServerStream) error {
	filter := AlertFilter{PestType: strings.TrimSpace(req.PestType)}
	if req.MinCategory != "" {
		c, ok := models.ParseRiskCategory(string(req.MinCategory))
		if !ok {
			return status.Errorf(codes.InvalidArgument, "unknown risk category: %q", req.MinCategory)
		}
		filter.MinCategory = c
	}

	id, ch := s.broadcaster.Subscribe(filter)
	defer s.broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to risk alert stream", "subscriber_id", id)

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from risk alert stream", "subscriber_id", id)
			return nil
		case a, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(a); err != nil {
				slog.Error("failed to send risk alert to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}
