package ledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "dmjr.ledger.v1.Ledger"

// Full method names, used by interceptors to pick scopes.
const (
	MethodIssue               = "/" + ServiceName + "/Issue"
	MethodTransfer            = "/" + ServiceName + "/Transfer"
	MethodGetBalance          = "/" + ServiceName + "/GetBalance"
	MethodListAccounts        = "/" + ServiceName + "/ListAccounts"
	MethodRecentTransactions  = "/" + ServiceName + "/RecentTransactions"
	MethodGetTransaction      = "/" + ServiceName + "/GetTransaction"
	MethodProvisionAccounts   = "/" + ServiceName + "/ProvisionAccounts"
	MethodValidateConsistency = "/" + ServiceName + "/ValidateConsistency"
)

type LedgerClient interface {
	Issue(ctx context.Context, in *IssueRequest, opts ...grpc.CallOption) (*Transaction, error)
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*Transaction, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error)
	ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error)
	RecentTransactions(ctx context.Context, in *RecentTransactionsRequest, opts ...grpc.CallOption) (*RecentTransactionsResponse, error)
	GetTransaction(ctx context.Context, in *GetTransactionRequest, opts ...grpc.CallOption) (*Transaction, error)
	ProvisionAccounts(ctx context.Context, in *ProvisionAccountsRequest, opts ...grpc.CallOption) (*ProvisionAccountsResponse, error)
	ValidateConsistency(ctx context.Context, in *ValidateConsistencyRequest, opts ...grpc.CallOption) (*ValidateConsistencyResponse, error)
}

type ledgerClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerClient returns a client that speaks the JSON codec on cc.
func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient {
	return &ledgerClient{cc: cc}
}

func (c *ledgerClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *ledgerClient) Issue(ctx context.Context, in *IssueRequest, opts ...grpc.CallOption) (*Transaction, error) {
	out := new(Transaction)
	if err := c.invoke(ctx, MethodIssue, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*Transaction, error) {
	out := new(Transaction)
	if err := c.invoke(ctx, MethodTransfer, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.invoke(ctx, MethodGetBalance, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	out := new(ListAccountsResponse)
	if err := c.invoke(ctx, MethodListAccounts, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) RecentTransactions(ctx context.Context, in *RecentTransactionsRequest, opts ...grpc.CallOption) (*RecentTransactionsResponse, error) {
	out := new(RecentTransactionsResponse)
	if err := c.invoke(ctx, MethodRecentTransactions, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) GetTransaction(ctx context.Context, in *GetTransactionRequest, opts ...grpc.CallOption) (*Transaction, error) {
	out := new(Transaction)
	if err := c.invoke(ctx, MethodGetTransaction, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) ProvisionAccounts(ctx context.Context, in *ProvisionAccountsRequest, opts ...grpc.CallOption) (*ProvisionAccountsResponse, error) {
	out := new(ProvisionAccountsResponse)
	if err := c.invoke(ctx, MethodProvisionAccounts, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) ValidateConsistency(ctx context.Context, in *ValidateConsistencyRequest, opts ...grpc.CallOption) (*ValidateConsistencyResponse, error) {
	out := new(ValidateConsistencyResponse)
	if err := c.invoke(ctx, MethodValidateConsistency, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// LedgerServer is the server API for the ledger service.
type LedgerServer interface {
	Issue(context.Context, *IssueRequest) (*Transaction, error)
	Transfer(context.Context, *TransferRequest) (*Transaction, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
	RecentTransactions(context.Context, *RecentTransactionsRequest) (*RecentTransactionsResponse, error)
	GetTransaction(context.Context, *GetTransactionRequest) (*Transaction, error)
	ProvisionAccounts(context.Context, *ProvisionAccountsRequest) (*ProvisionAccountsResponse, error)
	ValidateConsistency(context.Context, *ValidateConsistencyRequest) (*ValidateConsistencyResponse, error)
	mustEmbedUnimplementedLedgerServer()
}

// UnimplementedLedgerServer must be embedded by LedgerServer implementations.
type UnimplementedLedgerServer struct{}

func (UnimplementedLedgerServer) Issue(context.Context, *IssueRequest) (*Transaction, error) {
	return nil, status.Error(codes.Unimplemented, "method Issue not implemented")
}
func (UnimplementedLedgerServer) Transfer(context.Context, *TransferRequest) (*Transaction, error) {
	return nil, status.Error(codes.Unimplemented, "method Transfer not implemented")
}
func (UnimplementedLedgerServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}
func (UnimplementedLedgerServer) ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAccounts not implemented")
}
func (UnimplementedLedgerServer) RecentTransactions(context.Context, *RecentTransactionsRequest) (*RecentTransactionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RecentTransactions not implemented")
}
func (UnimplementedLedgerServer) GetTransaction(context.Context, *GetTransactionRequest) (*Transaction, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTransaction not implemented")
}
func (UnimplementedLedgerServer) ProvisionAccounts(context.Context, *ProvisionAccountsRequest) (*ProvisionAccountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProvisionAccounts not implemented")
}
func (UnimplementedLedgerServer) ValidateConsistency(context.Context, *ValidateConsistencyRequest) (*ValidateConsistencyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ValidateConsistency not implemented")
}
func (UnimplementedLedgerServer) mustEmbedUnimplementedLedgerServer() {}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unaryHandler adapts one typed server method to a grpc.MethodDesc handler.
func unaryHandler[Req any, Resp any](method string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the ledger service.
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Issue", Handler: unaryHandler(MethodIssue, LedgerServer.Issue)},
		{MethodName: "Transfer", Handler: unaryHandler(MethodTransfer, LedgerServer.Transfer)},
		{MethodName: "GetBalance", Handler: unaryHandler(MethodGetBalance, LedgerServer.GetBalance)},
		{MethodName: "ListAccounts", Handler: unaryHandler(MethodListAccounts, LedgerServer.ListAccounts)},
		{MethodName: "RecentTransactions", Handler: unaryHandler(MethodRecentTransactions, LedgerServer.RecentTransactions)},
		{MethodName: "GetTransaction", Handler: unaryHandler(MethodGetTransaction, LedgerServer.GetTransaction)},
		{MethodName: "ProvisionAccounts", Handler: unaryHandler(MethodProvisionAccounts, LedgerServer.ProvisionAccounts)},
		{MethodName: "ValidateConsistency", Handler: unaryHandler(MethodValidateConsistency, LedgerServer.ValidateConsistency)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dmjr/ledger/v1/ledger.proto",
}
