// Package payment holds the wire types and service descriptor of the internal
// PaymentService. Messages travel as JSON; see Codec.
package payment

import (
	"context"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "davietech.payment.PaymentService"

	InitiatePaymentMethod = "/" + ServiceName + "/InitiatePayment"
	GetPaymentMethod      = "/" + ServiceName + "/GetPayment"
)

// Codec marshals messages as JSON. Both ends must force it: the server with
// grpc.ForceServerCodec, the client with grpc.ForceCodec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }

type InitiatePaymentRequest struct {
	OrderId uint32 `json:"order_id"`
	Phone   string `json:"phone,omitempty"`
}

type GetPaymentRequest struct {
	CheckoutRequestId string `json:"checkout_request_id"`
}

type Payment struct {
	Id                uint32 `json:"id"`
	OrderId           uint32 `json:"order_id"`
	MerchantRequestId string `json:"merchant_request_id"`
	CheckoutRequestId string `json:"checkout_request_id"`
	Phone             string `json:"phone"`
	Amount            string `json:"amount"`
	Status            string `json:"status"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
	PaidAt            string `json:"paid_at,omitempty"`
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type PaymentServiceServer interface {
	InitiatePayment(context.Context, *InitiatePaymentRequest) (*PaymentResponse, error)
	GetPayment(context.Context, *GetPaymentRequest) (*PaymentResponse, error)
}

type UnimplementedPaymentServiceServer struct{}

func (UnimplementedPaymentServiceServer) InitiatePayment(context.Context, *InitiatePaymentRequest) (*PaymentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method InitiatePayment not implemented")
}

func (UnimplementedPaymentServiceServer) GetPayment(context.Context, *GetPaymentRequest) (*PaymentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetPayment not implemented")
}

func RegisterPaymentServiceServer(s grpc.ServiceRegistrar, srv PaymentServiceServer) {
	s.RegisterService(&PaymentService_ServiceDesc, srv)
}

func initiatePaymentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InitiatePaymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentServiceServer).InitiatePayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InitiatePaymentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PaymentServiceServer).InitiatePayment(ctx, req.(*InitiatePaymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getPaymentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetPaymentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentServiceServer).GetPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetPaymentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PaymentServiceServer).GetPayment(ctx, req.(*GetPaymentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var PaymentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InitiatePayment", Handler: initiatePaymentHandler},
		{MethodName: "GetPayment", Handler: getPaymentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payment.proto",
}

type PaymentServiceClient interface {
	InitiatePayment(ctx context.Context, in *InitiatePaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error)
	GetPayment(ctx context.Context, in *GetPaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error)
}

type paymentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentServiceClient(cc grpc.ClientConnInterface) PaymentServiceClient {
	return &paymentServiceClient{cc}
}

func (c *paymentServiceClient) InitiatePayment(ctx context.Context, in *InitiatePaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error) {
	out := new(PaymentResponse)
	if err := c.cc.Invoke(ctx, InitiatePaymentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paymentServiceClient) GetPayment(ctx context.Context, in *GetPaymentRequest, opts ...grpc.CallOption) (*PaymentResponse, error) {
	out := new(PaymentResponse)
	if err := c.cc.Invoke(ctx, GetPaymentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
