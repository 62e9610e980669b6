package services

import (
	"context"
	"time"
)

// AccountHandler answers AccountService locally with signed-out defaults.
type AccountHandler struct {
	base
	now func() time.Time
}

func (h *AccountHandler) Call(ctx context.Context, method string, payload any, opts StreamOptions) (any, error) {
	h.log.Debugf("answering %s locally", method)
	switch method {
	case "subscribeToAuthStatusUpdate":
		return map[string]any{"isAuthenticated": false, "user": nil, "timestamp": h.now().UnixMilli()}, nil
	case "authStateChanged":
		return map[string]any{"isAuthenticated": false, "user": nil}, nil
	case "getUserCredits":
		return map[string]any{
			"balance":             map[string]any{"currentBalance": 0},
			"usageTransactions":   []any{},
			"paymentTransactions": []any{},
		}, nil
	case "getOrganizationCredits":
		return map[string]any{
			"balance":           map[string]any{"currentBalance": 0},
			"usageTransactions": []any{},
			"organizationId":    "",
		}, nil
	case "getUserOrganizations":
		return map[string]any{"organizations": []any{}}, nil
	case "accountLoginClicked":
		return map[string]any{"loginUrl": "", "success": false}, nil
	default:
		return map[string]any{}, nil
	}
}
