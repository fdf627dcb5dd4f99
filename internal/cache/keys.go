// AngelaMos | 2026
// keys.go

package cache

import (
	"fmt"
	"strconv"
)

// Entity names label metrics and group keys.
const (
	EntityUsers    = "users"
	EntityProfiles = "profiles"
	EntityServices = "services"
	EntityCart     = "cart"
	EntityOrders   = "orders"
	EntityReviews  = "reviews"
)

// Identity renders the requesting user for a key. Zero is anonymous.
func Identity(userID int64) string {
	if userID == 0 {
		return "anonymous"
	}
	return strconv.FormatInt(userID, 10)
}

func UserListKey(actorID int64) string {
	return "user_queryset_" + Identity(actorID)
}

func ProfileListKey(actorID int64) string {
	return "client_profiles_" + Identity(actorID)
}

func ServiceListKey(search, sort string, actorID int64) string {
	return fmt.Sprintf("services_%s_%s_%s", search, sort, Identity(actorID))
}

// ServiceDetailKey is shared by every caller; a service page does not
// depend on who asks.
func ServiceDetailKey(serviceID int64) string {
	return fmt.Sprintf("service_detail_%d", serviceID)
}

func WebServiceListKey(search, sort string) string {
	return fmt.Sprintf("web_services_%s_%s", search, sort)
}

func CartKey(userID int64) string {
	return "cart_" + Identity(userID)
}

func WebCartKey(userID int64) string {
	return "cart_" + Identity(userID) + "_web"
}

func OrderListKey(userID int64) string {
	return "orders_" + Identity(userID)
}

func WebOrderListKey(userID int64) string {
	return "orders_" + Identity(userID) + "_web"
}

func ReviewListKey(actorID int64) string {
	return "reviews_" + Identity(actorID)
}

// ServiceReviewsKey holds the public review list of one service.
func ServiceReviewsKey(serviceID int64) string {
	return fmt.Sprintf("service_reviews_%d", serviceID)
}

// ScopedListKeys are the lists whose contents depend on the user's role.
// They go stale whenever that role changes.
func ScopedListKeys(userID int64) []string {
	return []string{
		UserListKey(userID),
		ProfileListKey(userID),
		OrderListKey(userID),
		WebOrderListKey(userID),
		ReviewListKey(userID),
	}
}

// SessionUserKeys are the per-user entries purged on logout.
func SessionUserKeys(userID int64) []string {
	return []string{
		CartKey(userID),
		WebCartKey(userID),
		OrderListKey(userID),
		WebOrderListKey(userID),
	}
}
