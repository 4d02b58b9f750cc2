package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "choicetree.v1.RuleService"

// Full method names, as seen by interceptors.
const (
	MethodValidateRule  = "/" + ServiceName + "/ValidateRule"
	MethodSaveRule      = "/" + ServiceName + "/SaveRule"
	MethodDeleteRule    = "/" + ServiceName + "/DeleteRule"
	MethodSearchTree    = "/" + ServiceName + "/SearchTree"
	MethodEligibleItems = "/" + ServiceName + "/EligibleItems"
)

// RuleServiceServer is the server API for RuleService.
type RuleServiceServer interface {
	ValidateRule(context.Context, *ValidateRuleRequest) (*ValidateRuleResponse, error)
	SaveRule(context.Context, *SaveRuleRequest) (*SaveRuleResponse, error)
	DeleteRule(context.Context, *DeleteRuleRequest) (*DeleteRuleResponse, error)
	SearchTree(context.Context, *SearchTreeRequest) (*SearchTreeResponse, error)
	EligibleItems(context.Context, *EligibleItemsRequest) (*EligibleItemsResponse, error)
}

// RegisterRuleServiceServer registers srv on s.
func RegisterRuleServiceServer(s grpc.ServiceRegistrar, srv RuleServiceServer) {
	s.RegisterService(&RuleServiceDesc, srv)
}

// RuleServiceDesc describes RuleService without generated protobuf code;
// messages travel through the JSON codec.
var RuleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateRule", Handler: unaryHandler(MethodValidateRule, RuleServiceServer.ValidateRule)},
		{MethodName: "SaveRule", Handler: unaryHandler(MethodSaveRule, RuleServiceServer.SaveRule)},
		{MethodName: "DeleteRule", Handler: unaryHandler(MethodDeleteRule, RuleServiceServer.DeleteRule)},
		{MethodName: "SearchTree", Handler: unaryHandler(MethodSearchTree, RuleServiceServer.SearchTree)},
		{MethodName: "EligibleItems", Handler: unaryHandler(MethodEligibleItems, RuleServiceServer.EligibleItems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "choicetree/v1/rule_service",
}

// unaryHandler adapts a typed server method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(RuleServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RuleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RuleServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls RuleService over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ValidateRule(ctx context.Context, in *ValidateRuleRequest, opts ...grpc.CallOption) (*ValidateRuleResponse, error) {
	return invoke[ValidateRuleResponse](ctx, c.cc, MethodValidateRule, in, opts)
}

func (c *Client) SaveRule(ctx context.Context, in *SaveRuleRequest, opts ...grpc.CallOption) (*SaveRuleResponse, error) {
	return invoke[SaveRuleResponse](ctx, c.cc, MethodSaveRule, in, opts)
}

func (c *Client) DeleteRule(ctx context.Context, in *DeleteRuleRequest, opts ...grpc.CallOption) (*DeleteRuleResponse, error) {
	return invoke[DeleteRuleResponse](ctx, c.cc, MethodDeleteRule, in, opts)
}

func (c *Client) SearchTree(ctx context.Context, in *SearchTreeRequest, opts ...grpc.CallOption) (*SearchTreeResponse, error) {
	return invoke[SearchTreeResponse](ctx, c.cc, MethodSearchTree, in, opts)
}

func (c *Client) EligibleItems(ctx context.Context, in *EligibleItemsRequest, opts ...grpc.CallOption) (*EligibleItemsResponse, error) {
	return invoke[EligibleItemsResponse](ctx, c.cc, MethodEligibleItems, in, opts)
}
