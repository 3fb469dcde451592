package grpc_server

import (
	"context"
	"errors"
	"time"

	"davietech/model"
	"davietech/mpesa"
	"davietech/payment"
	pb "davietech/proto/payment"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type PaymentServer struct {
	pb.UnimplementedPaymentServiceServer
	Payments *payment.Service
	Store    payment.Store
}

// NewServer builds a gRPC server exposing the PaymentService.
func NewServer(payments *payment.Service, store payment.Store, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(pb.Codec{})}, opts...)
	s := grpc.NewServer(opts...)
	pb.RegisterPaymentServiceServer(s, &PaymentServer{Payments: payments, Store: store})
	return s
}

func toProtoPayment(p *model.PendingPayment) *pb.Payment {
	if p == nil {
		return nil
	}
	out := &pb.Payment{
		Id:                uint32(p.ID),
		OrderId:           uint32(p.OrderID),
		MerchantRequestId: p.MerchantRequestID,
		CheckoutRequestId: p.CheckoutRequestID,
		Phone:             p.Phone,
		Amount:            p.Amount.StringFixed(2),
		Status:            string(p.Status),
		ReceiptNumber:     p.ReceiptNumber,
	}
	if !p.CreatedAt.IsZero() {
		out.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	if p.PaidAt != nil {
		out.PaidAt = p.PaidAt.Format(time.RFC3339)
	}
	return out
}

func (s *PaymentServer) InitiatePayment(ctx context.Context, req *pb.InitiatePaymentRequest) (*pb.PaymentResponse, error) {
	if req.OrderId == 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	p, err := s.Payments.Initiate(ctx, uint(req.OrderId), req.Phone)
	if err != nil {
		return nil, Status(err).Err()
	}
	return &pb.PaymentResponse{Payment: toProtoPayment(p)}, nil
}

func (s *PaymentServer) GetPayment(ctx context.Context, req *pb.GetPaymentRequest) (*pb.PaymentResponse, error) {
	if req.CheckoutRequestId == "" {
		return nil, status.Error(codes.InvalidArgument, "checkout_request_id is required")
	}

	p, err := s.Store.PendingByCheckoutID(ctx, req.CheckoutRequestId)
	if err != nil {
		return nil, Status(err).Err()
	}
	return &pb.PaymentResponse{Payment: toProtoPayment(p)}, nil
}

// Status maps payment errors onto gRPC status codes. The HTTP controllers
// translate the same codes, so both surfaces agree.
func Status(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}

	var (
		cfgErr *mpesa.ConfigurationError
		gwErr  *mpesa.GatewayError
	)
	switch {
	case errors.Is(err, model.ErrOrderNotFound), errors.Is(err, model.ErrPaymentNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, mpesa.ErrInvalidPhone), errors.Is(err, mpesa.ErrInvalidAmount):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, payment.ErrNotMobileMoney), errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrOrderCancelled):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, payment.ErrThrottled):
		return status.New(codes.ResourceExhausted, err.Error())
	case errors.As(err, &gwErr):
		return status.New(codes.Unavailable, "payment provider error: "+gwErr.Message())
	case errors.As(err, &cfgErr):
		return status.New(codes.Internal, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}
}
