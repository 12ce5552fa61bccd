package leave

import (
	"context"
)

// StoreAPI persists leave types, balances and requests. Methods run on the
// transaction carried by ctx when there is one.
type StoreAPI interface {
	ListTypes(ctx context.Context) ([]LeaveType, error)
	GetType(ctx context.Context, id string) (LeaveType, error)
	GetTypeForUpdate(ctx context.Context, id string) (LeaveType, error)
	CodeTaken(ctx context.Context, code, excludeID string) (bool, error)
	CreateType(ctx context.Context, t LeaveType) error
	UpdateType(ctx context.Context, t LeaveType) error

	GetBalance(ctx context.Context, employeeID, leaveTypeID string, year int) (Balance, bool, error)
	GetBalanceForUpdate(ctx context.Context, employeeID, leaveTypeID string, year int) (Balance, bool, error)
	InsertBalance(ctx context.Context, b Balance) error
	UpdateBalance(ctx context.Context, b Balance) error
	ListBalances(ctx context.Context, employeeID string, year int) ([]Balance, error)

	InsertRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	GetRequestForUpdate(ctx context.Context, id string) (Request, error)
	UpdateRequestState(ctx context.Context, r Request, t Transition) error
	ListRequests(ctx context.Context, filter ListFilter, limit, offset int) (RequestList, error)
}
