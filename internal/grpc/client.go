package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mr1hm/pest-forecast/internal/models"
)

// Client calls ForecastService on an existing connection.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating client: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) GenerateForecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	out := new(models.ForecastResult)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GenerateForecast", &req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecordObservation(ctx context.Context, o models.Observation, source string) (*models.Observation, error) {
	out := new(models.Observation)
	in := &RecordObservationRequest{Observation: o, Source: source}
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/RecordObservation", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AlertStream yields alerts until the server closes the stream or ctx ends.
type AlertStream struct {
	stream grpc.ClientStream
}

func (s *AlertStream) Recv() (*models.RiskAlert, error) {
	a := new(models.RiskAlert)
	if err := s.stream.RecvMsg(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (c *Client) StreamRiskAlerts(ctx context.Context, req StreamRiskAlertsRequest) (*AlertStream, error) {
	stream, err := c.conn.NewStream(ctx, &forecastServiceDesc.Streams[0], "/"+serviceName+"/StreamRiskAlerts")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &AlertStream{stream: stream}, nil
}
