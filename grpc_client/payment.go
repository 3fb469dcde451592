package grpc_client

import (
	"context"
	"time"

	pb "davietech/proto/payment"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const callTimeout = 35 * time.Second

type PaymentClient struct {
	conn   *grpc.ClientConn
	client pb.PaymentServiceClient
}

// NewPaymentClient connects lazily; the first call dials addr.
func NewPaymentClient(addr string, opts ...grpc.DialOption) (*PaymentClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(pb.Codec{})),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &PaymentClient{conn: conn, client: pb.NewPaymentServiceClient(conn)}, nil
}

// Initiate asks the server to send an STK push for the order. The call waits
// on the provider, hence the long timeout.
func (pc *PaymentClient) Initiate(ctx context.Context, orderID uint32, phone string) (*pb.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := pc.client.InitiatePayment(ctx, &pb.InitiatePaymentRequest{OrderId: orderID, Phone: phone})
	if err != nil {
		return nil, err
	}
	return res.Payment, nil
}

func (pc *PaymentClient) Get(ctx context.Context, checkoutRequestID string) (*pb.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := pc.client.GetPayment(ctx, &pb.GetPaymentRequest{CheckoutRequestId: checkoutRequestID})
	if err != nil {
		return nil, err
	}
	return res.Payment, nil
}

func (pc *PaymentClient) Close() error {
	return pc.conn.Close()
}
